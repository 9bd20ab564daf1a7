package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// IndexMapFile is the name of the key map inside a storage location.
const IndexMapFile = "id_map.json"

// IndexMap is the durable mapping from caller-facing integer keys to the
// vector ids used by the engine.
//
// next only ever grows inside a process, so keys freed by Delete are never
// handed out again before the map is reloaded.
type IndexMap struct {
	mu      sync.RWMutex
	path    string
	entries map[int]string
	next    int
}

// LoadIndexMap reads the map stored in dir, or starts an empty one and
// writes it so the location is initialized on first construction. A file
// that cannot be parsed is moved aside and the map starts empty. An empty
// dir gives a map that lives in memory only.
func LoadIndexMap(dir string, logger *log.Logger) (*IndexMap, error) {
	m := &IndexMap{entries: make(map[int]string)}

	if dir == "" {
		return m, nil
	}

	m.path = filepath.Join(dir, IndexMapFile)

	buf, err := os.ReadFile(m.path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := m.Save(); err != nil {
			return nil, err
		}

		return m, nil
	case err != nil:
		return nil, fmt.Errorf("read index map: %w", err)
	}

	raw := map[string]string{}

	if err := json.Unmarshal(buf, &raw); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", m.path, time.Now().Unix())
		logger.Warn("index map unreadable, starting empty", "path", m.path, "moved_to", aside, "error", err)

		if err := os.Rename(m.path, aside); err != nil {
			return nil, fmt.Errorf("move corrupt index map: %w", err)
		}

		if err := m.Save(); err != nil {
			return nil, err
		}

		return m, nil
	}

	for k, id := range raw {
		key, err := strconv.Atoi(k)
		if err != nil || key < 0 || id == "" {
			logger.Warn("skipping malformed index map entry", "key", k, "vector_id", id)
			continue
		}

		m.entries[key] = id

		if key >= m.next {
			m.next = key + 1
		}
	}

	return m, nil
}

// Lookup returns the vector id recorded for key.
func (m *IndexMap) Lookup(key int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.entries[key]
	return id, ok
}

// Next returns the key the next successful add will receive.
func (m *IndexMap) Next() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.next
}

// Len returns the number of recorded keys.
func (m *IndexMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Keys returns the recorded keys in ascending order.
func (m *IndexMap) Keys() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]int, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}

	sort.Ints(keys)
	return keys
}

// Put records key and advances the next key past it.
func (m *IndexMap) Put(key int, vectorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = vectorID

	if key >= m.next {
		m.next = key + 1
	}
}

// Remove forgets key. The next key is left alone.
func (m *IndexMap) Remove(key int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// rollback undoes a Put whose persistence failed, including the advance of
// the next key.
func (m *IndexMap) rollback(key int, next int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	m.next = next
}

// Save writes the map atomically: a temporary file in the same directory
// is renamed over the previous version.
func (m *IndexMap) Save() error {
	if m.path == "" {
		return nil
	}

	m.mu.RLock()
	raw := make(map[string]string, len(m.entries))
	for key, id := range m.entries {
		raw[strconv.Itoa(key)] = id
	}
	m.mu.RUnlock()

	buf, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index map: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), IndexMapFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index map: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write index map: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index map: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index map: %w", err)
	}

	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace index map: %w", err)
	}

	return nil
}

// Path returns the file backing the map.
func (m *IndexMap) Path() string {
	return m.path
}
