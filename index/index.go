// Package index declares the narrow contract the Downloader uses to hand
// off retrieved artifact bytes to the external, content-addressed
// artifact index, plus an in-memory fake for tests.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// ArtifactIndex is the external collaborator contract: store bytes under
// a content-addressed name and return that name for the Maestro's
// tarball/wheel data slot.
type ArtifactIndex interface {
	FromData(filename string, data []byte) (storedName string, err error)
}

// Memory is an in-memory ArtifactIndex fake, content-addressed by the
// sha256 of the bytes, for use in tests that exercise the Downloader
// without a real build/index pipeline.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemory constructs an empty Memory index.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// FromData stores data and returns a stored name derived from its digest
// and original filename.
func (m *Memory) FromData(filename string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	stored := hex.EncodeToString(sum[:8]) + "-" + filename

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[stored] = append([]byte(nil), data...)
	return stored, nil
}

// Get returns the bytes stored under a name returned by FromData, for
// test assertions.
func (m *Memory) Get(storedName string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[storedName]
	return data, ok
}
