// Package output manages versioned named output blocks: long-lived
// artifacts (the running draft, a synopsis) that many phases read and
// update. It is separate from the thread ledger because consumers usually
// want the latest value, not every statement ever made about it.
package output

import (
	"fmt"
	"sync"
	"time"
)

// Version is one immutable revision of a block.
type Version struct {
	BlockID   string    `json:"id"`
	Version   int       `json:"version"` // starts at 1, strictly increasing
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Manager holds all blocks for one run. Writes are serialized so versions
// are totally ordered per block even when actions complete concurrently.
type Manager struct {
	mu     sync.RWMutex
	blocks map[string][]Version
}

// NewManager creates an empty block manager.
func NewManager() *Manager {
	return &Manager{blocks: make(map[string][]Version)}
}

// Write appends a new version of blockID. It never overwrites in place.
func (m *Manager) Write(blockID, content, authorID string) (Version, error) {
	if blockID == "" {
		return Version{}, fmt.Errorf("output: empty block id")
	}
	if authorID == "" {
		return Version{}, fmt.Errorf("output: empty author id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v := Version{
		BlockID:   blockID,
		Version:   len(m.blocks[blockID]) + 1,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: authorID,
	}
	m.blocks[blockID] = append(m.blocks[blockID], v)
	return v, nil
}

// Read returns the current version of blockID. The second return is false
// when the block has never been written.
func (m *Manager) Read(blockID string) (Version, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.blocks[blockID]
	if len(versions) == 0 {
		return Version{}, false
	}
	return versions[len(versions)-1], true
}

// ReadVersion returns a specific version of blockID.
func (m *Manager) ReadVersion(blockID string, version int) (Version, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.blocks[blockID]
	if version < 1 || version > len(versions) {
		return Version{}, false
	}
	return versions[version-1], true
}

// History returns up to limit most recent versions of blockID, newest
// first. Pass 0 for the full history.
func (m *Manager) History(blockID string, limit int) []Version {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.blocks[blockID]
	n := len(versions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Version, 0, n)
	for i := len(versions) - 1; i >= len(versions)-n; i-- {
		out = append(out, versions[i])
	}
	return out
}

// Blocks returns the IDs of all blocks with at least one version.
func (m *Manager) Blocks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.blocks))
	for id := range m.blocks {
		ids = append(ids, id)
	}
	return ids
}
