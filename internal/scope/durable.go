package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Durable persists named store namespaces across process restarts. The
// contract is at-least-once durability, not transactions; concurrent writers
// to the same key resolve last-writer-wins.
type Durable interface {
	// Load returns every key/value pair in the named store. A store that
	// has never been written loads as an empty map, not an error.
	Load(name string) (map[string]string, error)

	// Save writes one key/value pair into the named store.
	Save(name, key, value string) error
}

// entry is the on-disk record for one key. The write timestamp is recorded
// so last-writer-wins conflicts stay auditable.
type entry struct {
	Value     string    `yaml:"value"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// Compile-time interface checks.
var (
	_ Durable = (*FileDurable)(nil)
	_ Durable = (*MemDurable)(nil)
)

// FileDurable stores each named store as one YAML file under dir. It is
// process-wide: a single mutex serializes writes from concurrent runs.
type FileDurable struct {
	mu  sync.Mutex
	dir string
}

// NewFileDurable creates the backing directory if needed.
func NewFileDurable(dir string) (*FileDurable, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scope: create store dir: %w", err)
	}
	return &FileDurable{dir: dir}, nil
}

// Load reads <dir>/<name>.yaml. Missing files load as empty.
func (f *FileDurable) Load(name string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read(name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for k, e := range entries {
		out[k] = e.Value
	}
	return out, nil
}

// Save rewrites the store file with the updated key. The write goes to a
// temp file first and is renamed into place so a crash never leaves a
// half-written store.
func (f *FileDurable) Save(name, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read(name)
	if err != nil {
		return err
	}
	entries[key] = entry{Value: value, UpdatedAt: time.Now().UTC()}

	content, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("scope: marshal store %s: %w", name, err)
	}

	path := f.path(name)
	tmp, err := os.CreateTemp(f.dir, ".store-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("scope: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("scope: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("scope: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("scope: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("scope: atomic rename: %w", err)
	}
	return nil
}

func (f *FileDurable) path(name string) string {
	return filepath.Join(f.dir, name+".yaml")
}

func (f *FileDurable) read(name string) (map[string]entry, error) {
	data, err := os.ReadFile(f.path(name))
	if os.IsNotExist(err) {
		return make(map[string]entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scope: read store %s: %w", name, err)
	}
	entries := make(map[string]entry)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("scope: decode store %s: %w", name, err)
	}
	return entries, nil
}

// MemDurable implements Durable with Go maps for tests.
type MemDurable struct {
	mu     sync.Mutex
	stores map[string]map[string]string
}

// NewMemDurable returns an initialized MemDurable ready for use.
func NewMemDurable() *MemDurable {
	return &MemDurable{stores: make(map[string]map[string]string)}
}

// Load returns a copy of the named store.
func (m *MemDurable) Load(name string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.stores[name]))
	for k, v := range m.stores[name] {
		out[k] = v
	}
	return out, nil
}

// Save writes one pair into the named store.
func (m *MemDurable) Save(name, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stores[name] == nil {
		m.stores[name] = make(map[string]string)
	}
	m.stores[name][key] = value
	return nil
}
