// Package pathway implements the read-through pathway definition cache:
// first request for P-XXX loads <dir>/P-XXX.json (or .yaml), memoizes it
// for the life of the process.
package pathway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/strategos-engine/internal/errors"
	"github.com/rohankatakam/strategos-engine/internal/model"
)

var bucketName = []byte("pathways")

// Catalog is process-wide immutable state after first load: a read-through
// cache keyed by pathway id. Safe for concurrent use.
type Catalog struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*model.Pathway

	bolt *bbolt.DB // optional, nil if no durable cache configured
}

// New creates a Catalog that loads pathway definitions from dir.
func New(dir string) *Catalog {
	return &Catalog{
		dir:   dir,
		cache: make(map[string]*model.Pathway),
	}
}

// WithBoltCache opens (creating if necessary) a bbolt database at path to
// back the catalog with a cross-restart cache, so repeated cold starts
// don't re-parse every pathway file from disk. The in-memory map remains
// the source of truth within a process — bolt is consulted only on a
// cache miss, before falling back to disk.
func (c *Catalog) WithBoltCache(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.DatabaseError(err, "failed to create bolt cache directory")
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to open pathway cache")
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "failed to create pathway cache bucket")
	}
	c.bolt = db
	return c, nil
}

// Close releases the bbolt handle, if any.
func (c *Catalog) Close() error {
	if c.bolt != nil {
		return c.bolt.Close()
	}
	return nil
}

// PathwayForType returns "P-<type>" if t is one of the eleven closed
// evidence types, else "".
func PathwayForType(t model.EvidenceType) string {
	return model.PathwayIDForType(t)
}

// Get loads (or returns the cached) Pathway for id, e.g. "P-SCI".
func (c *Catalog) Get(id string) (*model.Pathway, error) {
	c.mu.RLock()
	if p, ok := c.cache[id]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check: another goroutine may have populated it while we waited
	// for the write lock.
	if p, ok := c.cache[id]; ok {
		return p, nil
	}

	p, err := c.loadFromBolt(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p, err = c.loadFromDisk(id)
		if err != nil {
			return nil, err
		}
		c.saveToBolt(id, p)
	}

	c.cache[id] = p
	return p, nil
}

func (c *Catalog) loadFromDisk(id string) (*model.Pathway, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(c.dir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read pathway %s: %w", id, err)
		}

		var p model.Pathway
		if ext == ".json" {
			err = json.Unmarshal(data, &p)
		} else {
			err = yaml.Unmarshal(data, &p)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse pathway %s: %w", id, err)
		}
		if p.ID == "" {
			p.ID = id
		}
		return &p, nil
	}
	return nil, fmt.Errorf("pathway definition not found: %s", id)
}

func (c *Catalog) loadFromBolt(id string) (*model.Pathway, error) {
	if c.bolt == nil {
		return nil, nil
	}

	var raw []byte
	err := c.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if v := b.Get([]byte(id)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to read pathway cache")
	}
	if raw == nil {
		return nil, nil
	}

	var p model.Pathway
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil // corrupt cache entry: fall back to disk
	}
	return &p, nil
}

func (c *Catalog) saveToBolt(id string, p *model.Pathway) {
	if c.bolt == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(id), data)
	})
}
