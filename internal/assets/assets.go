// Package assets loads map and tileset files from layered directories.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/tilecollide/pkg/grf"
)

// Manager serves files from a stack of filesystem layers. Layers are searched
// in reverse order (last added = highest priority). Manager implements fs.FS
// so map loaders can resolve relative tileset references through it.
type Manager struct {
	layers []layer
	cache  *Cache
	mu     sync.RWMutex
}

type layer struct {
	name   string
	fsys   fs.FS
	dir    bool      // backed by a directory on disk
	closer io.Closer // archives opened by the manager
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddRoot adds a directory or a .grf archive as the new highest-priority
// layer.
func (m *Manager) AddRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", root, err)
	}
	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(root), ".grf") {
			return m.AddGRF(root)
		}
		return fmt.Errorf("adding root %s: not a directory or GRF archive", root)
	}
	m.addLayer(layer{name: root, fsys: os.DirFS(root), dir: true})
	return nil
}

// AddGRF opens a GRF archive as the new highest-priority layer. The archive
// is closed with the manager.
func (m *Manager) AddGRF(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return fmt.Errorf("adding archive %s: %w", path, err)
	}
	m.addLayer(layer{name: path, fsys: archive, closer: archive})
	return nil
}

// AddFS adds an arbitrary filesystem as the new highest-priority layer.
func (m *Manager) AddFS(name string, fsys fs.FS) {
	m.addLayer(layer{name: name, fsys: fsys})
}

func (m *Manager) addLayer(l layer) {
	m.mu.Lock()
	m.layers = append(m.layers, l)
	m.mu.Unlock()

	// A new layer can shadow cached files.
	m.cache.Clear()
}

// Roots returns the layer names, lowest priority first.
func (m *Manager) Roots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.layers))
	for i, l := range m.layers {
		names[i] = l.name
	}
	return names
}

// Dirs returns the directory roots, lowest priority first. These are the
// layers a file watcher can observe.
func (m *Manager) Dirs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var dirs []string
	for _, l := range m.layers {
		if l.dir {
			dirs = append(dirs, l.name)
		}
	}
	return dirs
}

// Load reads a file from the highest-priority layer that has it.
func (m *Manager) Load(name string) ([]byte, error) {
	if data, ok := m.cache.Get(name); ok {
		return data, nil
	}

	data, err := m.read(name)
	if err != nil {
		return nil, err
	}
	m.cache.Set(name, data)
	return data, nil
}

func (m *Manager) read(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		data, err := fs.ReadFile(m.layers[i].fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", name, m.layers[i].name, err)
		}
		return data, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Open implements fs.FS. Regular files are served from the cache; directories
// come from the highest-priority layer that has them.
func (m *Manager) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	var (
		info fs.FileInfo
		dir  fs.FS
	)
	m.mu.RLock()
	for i := len(m.layers) - 1; i >= 0; i-- {
		st, err := fs.Stat(m.layers[i].fsys, name)
		if err != nil {
			continue
		}
		if st.IsDir() {
			dir = m.layers[i].fsys
		} else {
			info = st
		}
		break
	}
	m.mu.RUnlock()

	if dir != nil {
		return dir.Open(name)
	}
	if info == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	data, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	return &memFile{Reader: bytes.NewReader(data), info: info}, nil
}

// Invalidate drops cached copies of the named files.
func (m *Manager) Invalidate(names ...string) {
	for _, name := range names {
		m.cache.Delete(name)
	}
}

// Close drops all layers and cached data and closes opened archives.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, l := range m.layers {
		if l.closer != nil {
			if err := l.closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", l.name, err))
			}
		}
	}
	m.layers = nil
	m.cache.Clear()
	return errors.Join(errs...)
}

// CacheStats returns cache hits and misses since the last clear.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

type memFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memFile) Close() error               { return nil }

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Delete removes an item from cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
