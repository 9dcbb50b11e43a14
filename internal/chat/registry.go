package chat

import (
	"chronicle-chat/backend/internal/models"
	"chronicle-chat/backend/internal/store"
	apperrors "chronicle-chat/backend/pkg/errors"
)

// Registry maps connection ids to live sessions and hydrates character
// profiles on join. It is owned by the Coordinator, which serializes all
// access; the registry itself holds no lock.
type Registry struct {
	profiles        *store.ProfileStore
	storytellerName string
	sessions        map[string]models.Session
	order           []string // connection ids in join order, for stable rosters
}

// NewRegistry returns a registry over the given profile store.
// storytellerName is the reserved privileged identity.
func NewRegistry(profiles *store.ProfileStore, storytellerName string) *Registry {
	return &Registry{
		profiles:        profiles,
		storytellerName: storytellerName,
		sessions:        make(map[string]models.Session),
	}
}

// Join binds a session for connID under the given character name, creating
// and persisting a default profile when the name is unknown. The returned
// session is a snapshot; later profile edits do not change it.
func (r *Registry) Join(connID, name string) (models.Session, error) {
	if name == "" {
		return models.Session{}, apperrors.ErrEmptyName
	}

	profile, ok := r.profiles.Get(name)
	if !ok {
		created, err := r.profiles.Upsert(name, models.ProfileUpdate{})
		if err != nil {
			return models.Session{}, err
		}
		profile = created
	}

	session := models.Session{
		ID:            connID,
		Name:          name,
		Avatar:        profile.Avatar,
		Description:   profile.Description,
		Sheet:         profile.Sheet,
		IsStoryteller: name == r.storytellerName,
	}

	if _, exists := r.sessions[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.sessions[connID] = session
	return session, nil
}

// Get looks up the session bound to connID. Never mutates.
func (r *Registry) Get(connID string) (models.Session, bool) {
	s, ok := r.sessions[connID]
	return s, ok
}

// Sessions returns the roster in join order.
func (r *Registry) Sessions() []models.Session {
	out := make([]models.Session, 0, len(r.sessions))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// UpdateProfile re-resolves the session's identity. A rename persists the
// merged profile under the new name and deletes the old name's record, except
// when the old name is the reserved storyteller name: that record is the
// single canonical storyteller identity and is never discarded by a rename.
func (r *Registry) UpdateProfile(connID string, newName *string, update models.ProfileUpdate) (models.Session, error) {
	session, ok := r.sessions[connID]
	if !ok {
		return models.Session{}, apperrors.ErrNoSession
	}

	oldName := session.Name
	name := oldName
	if newName != nil && *newName != "" {
		name = *newName
	}

	// Unset fields fall back to the session snapshot, not to whatever is
	// currently stored under the target name.
	merged := models.Profile{
		Avatar:      session.Avatar,
		Description: session.Description,
		Sheet:       session.Sheet,
	}.Merge(update)

	stored, err := r.profiles.Upsert(name, models.ProfileUpdate{
		Avatar:      &merged.Avatar,
		Description: &merged.Description,
		Sheet:       &merged.Sheet,
	})
	if err != nil {
		return models.Session{}, err
	}

	if name != oldName && oldName != r.storytellerName {
		if err := r.profiles.Delete(oldName); err != nil {
			return models.Session{}, err
		}
	}

	session.Name = name
	session.Avatar = stored.Avatar
	session.Description = stored.Description
	session.Sheet = stored.Sheet
	session.IsStoryteller = name == r.storytellerName
	r.sessions[connID] = session
	return session, nil
}

// Remove detaches and returns the session bound to connID. Calling it again
// for the same connection is a no-op.
func (r *Registry) Remove(connID string) (models.Session, bool) {
	session, ok := r.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	delete(r.sessions, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return session, true
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
