package store

import (
	"fmt"
	"sync"
)

// DocumentKey is the fixed key the document is stored under.
const DocumentKey = "tuimath.appdata"

// Backend persists a single serialized document.
// Read reports false when no document exists. Write replaces the document
// whole or fails leaving the previous one intact.
type Backend interface {
	Read() (string, bool, error)
	Write(doc string) error
}

// MemoryBackend keeps the document in memory. Quota, when positive, is the
// largest document in bytes Write accepts.
type MemoryBackend struct {
	Quota int

	mu     sync.Mutex
	doc    string
	exists bool
	writes int
}

// NewMemoryBackend returns an empty backend with the given quota (0 = unlimited).
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{Quota: quota}
}

// Read implements Backend.
func (b *MemoryBackend) Read() (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc, b.exists, nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(doc string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Quota > 0 && len(doc) > b.Quota {
		return fmt.Errorf("document is %d bytes, quota is %d: %w", len(doc), b.Quota, ErrQuotaExceeded)
	}
	b.doc = doc
	b.exists = true
	b.writes++
	return nil
}

// Seed stores raw content without any checks.
func (b *MemoryBackend) Seed(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = raw
	b.exists = true
}

// Writes returns the number of successful writes.
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
