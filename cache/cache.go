package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/use-agent/pagequery/models"
)

// entry holds a cached result set with its creation timestamp.
type entry struct {
	response  *models.QueryResponse
	createdAt time.Time
}

// Cache is a simple in-memory cache for query results, keyed by a
// fingerprint of the whole pipeline. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour).
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Key fingerprints a query request. Two requests share a key only when
// their URL, method, body, driver choice and step list are identical, so
// a cached result set is exactly what a fresh run would produce
// (modulo page content changing).
func Key(req *models.QueryRequest) string {
	h := sha256.New()
	// The wire form is the canonical description of the pipeline.
	raw, _ := json.Marshal(struct {
		URL      string            `json:"url"`
		Method   string            `json:"method"`
		PostData string            `json:"post_data"`
		Render   bool              `json:"render"`
		Steps    []models.StepSpec `json:"steps"`
	}{req.URL, req.Method, req.PostData, req.Render, req.Steps})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached result set if it exists and is younger than
// maxAge seconds. If maxAge <= 0, no cache lookup is performed.
func (c *Cache) Get(key string, maxAgeSec int) (*models.QueryResponse, bool) {
	if maxAgeSec <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(e.createdAt) > time.Duration(maxAgeSec)*time.Second {
		return nil, false
	}

	return e.response, true
}

// Set stores a result set in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, resp *models.QueryResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
