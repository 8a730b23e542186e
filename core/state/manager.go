package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/storage"
)

// Manager is a journaled write overlay on top of a key-value database. All
// durable actor state flows through it: writes land in the overlay and are
// recorded in a journal, so a failed top-level call can be reverted as a
// unit and a successful one committed atomically.
type Manager struct {
	db      storage.Database
	overlay map[string]overlayEntry
	journal []journalEntry
}

type overlayEntry struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    overlayEntry
	hadPrev bool
}

// NewManager wraps db in an empty overlay.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		overlay: make(map[string]overlayEntry),
	}
}

// Get reads a key through the overlay. The second return reports presence.
func (m *Manager) Get(key []byte) ([]byte, bool, error) {
	if entry, ok := m.overlay[string(key)]; ok {
		if entry.deleted {
			return nil, false, nil
		}
		out := make([]byte, len(entry.value))
		copy(out, entry.value)
		return out, true, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: get %q: %w", key, err)
	}
	return value, true, nil
}

// Put stages a write in the overlay and journals the prior entry.
func (m *Manager) Put(key, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.record(string(key))
	m.overlay[string(key)] = overlayEntry{value: stored}
	return nil
}

// Delete stages a deletion.
func (m *Manager) Delete(key []byte) error {
	m.record(string(key))
	m.overlay[string(key)] = overlayEntry{deleted: true}
	return nil
}

func (m *Manager) record(key string) {
	prev, hadPrev := m.overlay[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, hadPrev: hadPrev})
}

// Snapshot marks the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertTo undoes every staged write back to a snapshot mark.
func (m *Manager) RevertTo(mark int) {
	if mark < 0 || mark > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= mark; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.overlay[entry.key] = entry.prev
		} else {
			delete(m.overlay, entry.key)
		}
	}
	m.journal = m.journal[:mark]
}

// Commit flushes the overlay to the database and clears the journal.
func (m *Manager) Commit() error {
	for key, entry := range m.overlay {
		if entry.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return fmt.Errorf("state: delete %q: %w", key, err)
			}
			continue
		}
		if err := m.db.Put([]byte(key), entry.value); err != nil {
			return fmt.Errorf("state: put %q: %w", key, err)
		}
	}
	m.overlay = make(map[string]overlayEntry)
	m.journal = m.journal[:0]
	return nil
}

// GetRLP decodes the value stored under key into out. The first return
// reports whether the key was present.
func (m *Manager) GetRLP(key []byte, out any) (bool, error) {
	raw, ok, err := m.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// PutRLP encodes v and stages it under key.
func (m *Manager) PutRLP(key []byte, v any) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.Put(key, raw)
}
