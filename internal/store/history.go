package store

import (
	"sync"

	"chronicle-chat/backend/internal/models"
)

// HistoryLog is the durable append-only sequence of chat messages, loaded
// fully into memory at startup and rewritten as a whole on every change.
// There is no delete operation.
type HistoryLog struct {
	mu       sync.Mutex
	path     string
	messages []models.Message
}

// NewHistoryLog loads the history file at path, creating the directory if
// needed. A missing file yields an empty log.
func NewHistoryLog(path string) (*HistoryLog, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	h := &HistoryLog{
		path:     path,
		messages: []models.Message{},
	}
	if err := loadFile(path, &h.messages); err != nil {
		return nil, err
	}
	return h, nil
}

// Append adds msg to the tail. The extended sequence is persisted before the
// in-memory slice is committed, so a write failure leaves the log unchanged.
func (h *HistoryLog) Append(msg models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	staged := make([]models.Message, len(h.messages), len(h.messages)+1)
	copy(staged, h.messages)
	staged = append(staged, msg)

	if err := writeFileAtomic(h.path, staged); err != nil {
		return err
	}

	h.messages = staged
	return nil
}

// ReplaceByID locates the message with the given id, applies mutate to a copy,
// persists the sequence, and returns the updated record. The second return is
// false when no message matches.
func (h *HistoryLog) ReplaceByID(id string, mutate func(*models.Message)) (models.Message, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := -1
	for i := range h.messages {
		if h.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Message{}, false, nil
	}

	staged := make([]models.Message, len(h.messages))
	copy(staged, h.messages)
	mutate(&staged[idx])

	if err := writeFileAtomic(h.path, staged); err != nil {
		return models.Message{}, true, err
	}

	h.messages = staged
	return staged[idx], true, nil
}

// Get returns the message with the given id without mutating anything.
func (h *HistoryLog) Get(id string) (models.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.messages {
		if h.messages[i].ID == id {
			return h.messages[i], true
		}
	}
	return models.Message{}, false
}

// All returns the full ordered history as an independent copy.
func (h *HistoryLog) All() []models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len reports the number of stored messages.
func (h *HistoryLog) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
