package store

import (
	"sync"

	"chronicle-chat/backend/internal/models"
)

// ProfileStore is the durable name -> profile mapping, backed by a single
// JSON file rewritten on every change.
type ProfileStore struct {
	mu       sync.Mutex
	path     string
	profiles map[string]models.Profile
}

// NewProfileStore loads the profile file at path, creating the directory if
// needed. A missing file yields an empty store.
func NewProfileStore(path string) (*ProfileStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	s := &ProfileStore{
		path:     path,
		profiles: make(map[string]models.Profile),
	}
	if err := loadFile(path, &s.profiles); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the profile stored under name.
func (s *ProfileStore) Get(name string) (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[name]
	return p, ok
}

// Upsert merges update into the profile stored under name, creating a record
// with defaults first when absent. The merged profile is persisted before the
// in-memory map is touched.
func (s *ProfileStore) Upsert(name string, update models.ProfileUpdate) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[name]
	if !ok {
		current = models.NewProfile()
	}
	merged := current.Merge(update)

	staged := s.snapshot()
	staged[name] = merged
	if err := writeFileAtomic(s.path, staged); err != nil {
		return models.Profile{}, err
	}

	s.profiles = staged
	return merged, nil
}

// Delete removes name's record. Deleting an absent name is a no-op.
func (s *ProfileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return nil
	}

	staged := s.snapshot()
	delete(staged, name)
	if err := writeFileAtomic(s.path, staged); err != nil {
		return err
	}

	s.profiles = staged
	return nil
}

// Len reports the number of stored profiles.
func (s *ProfileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *ProfileStore) snapshot() map[string]models.Profile {
	staged := make(map[string]models.Profile, len(s.profiles)+1)
	for k, v := range s.profiles {
		staged[k] = v
	}
	return staged
}
