// Package catalog is the thread-safe registry of tables by id and by
// name. It implements buffer.FileRegistry so the buffer pool can resolve
// a page's table id to its backing file without importing this package.
package catalog

import (
	"hash/fnv"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"coredb/buffer"
	"coredb/dberrors"
	"coredb/stats"
)

// TableID hashes a file's absolute path into a stable table identifier,
// the same table id scheme no matter how many times the table is opened
// across process runs.
func TableID(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(abs))
	return int(h.Sum32())
}

// Entry is one registered table.
type Entry struct {
	ID         int
	Name       string
	PrimaryKey string
	File       buffer.DbFile
}

// Catalog is the in-memory table registry. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	byID      map[int]*Entry
	byName    map[string]*Entry
	statCache map[string]*stats.TableStats
}

var _ buffer.FileRegistry = (*Catalog)(nil)

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		byID:      make(map[int]*Entry),
		byName:    make(map[string]*Entry),
		statCache: make(map[string]*stats.TableStats),
	}
}

// Add registers a table, replacing any existing entry with the same id
// or the same name.
func (c *Catalog) Add(name string, primaryKey string, file buffer.DbFile, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byName[name]; ok && old.ID != id {
		delete(c.byID, old.ID)
	}
	if old, ok := c.byID[id]; ok && old.Name != name {
		delete(c.byName, old.Name)
		delete(c.statCache, old.Name)
	}
	e := &Entry{ID: id, Name: name, PrimaryKey: primaryKey, File: file}
	c.byID[id] = e
	c.byName[name] = e
	delete(c.statCache, name)
}

// Resolve implements buffer.FileRegistry.
func (c *Catalog) Resolve(tableID int) (buffer.DbFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[tableID]
	if !ok {
		return nil, false
	}
	return e.File, true
}

// ByID looks a table up by its id.
func (c *Catalog) ByID(id int) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok {
		return nil, errors.Wrapf(dberrors.ErrNoSuchTable, "table id %d", id)
	}
	return e, nil
}

// ByName looks a table up by its registered name.
func (c *Catalog) ByName(name string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byName[name]
	if !ok {
		return nil, errors.Wrapf(dberrors.ErrNoSuchTable, "table %q", name)
	}
	return e, nil
}

// IDs returns every registered table id, in no particular order.
func (c *Catalog) IDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	return ids
}

// CachedStats returns table stats previously stored by RefreshStats, if
// any.
func (c *Catalog) CachedStats(name string) (*stats.TableStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.statCache[name]
	return s, ok
}

// RefreshStats stores freshly computed stats for name, for later lookup
// by the join optimizer.
func (c *Catalog) RefreshStats(name string, s *stats.TableStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statCache[name] = s
}
