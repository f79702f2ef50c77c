// Package cache short-circuits the pipeline for repeated questions. Keys
// combine the normalized question with the schema version hash, so schema
// drift invalidates entries without any explicit purge. Only successful
// outcomes are ever stored.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/aisavvy/aisavvy/internal/executor"
)

// Normalizer folds a question into its canonical cache form. The policy
// is injectable: exact normalization rules are configuration, not
// contract.
type Normalizer func(question string) string

// DefaultNormalizer case-folds, collapses whitespace runs, and strips a
// trailing question mark or period, so trivially reformatted repeats hit.
func DefaultNormalizer(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.Join(strings.Fields(normalized), " ")
	normalized = strings.TrimRight(normalized, "?. ")

	return normalized
}

// Entry is an immutable cached response.
type Entry struct {
	SQL      string           `json:"sql"`
	Result   *executor.Result `json:"result"`
	StoredAt time.Time        `json:"stored_at"`
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// ResponseCache is a concurrency-safe in-memory cache with an optional
// TTL and capacity bound. Correctness never depends on retention: a miss
// simply re-runs the pipeline.
type ResponseCache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	ttl        time.Duration
	maxEntries int
	normalize  Normalizer
	hits       int64
	misses     int64
}

// New creates a cache. A zero ttl means entries never expire; a zero
// maxEntries means unbounded.
func New(ttl time.Duration, maxEntries int, normalize Normalizer) *ResponseCache {
	if normalize == nil {
		normalize = DefaultNormalizer
	}

	return &ResponseCache{
		entries:    make(map[string]Entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		normalize:  normalize,
	}
}

// Lookup returns the cached entry for a (question, schemaVersion) pair.
func (c *ResponseCache) Lookup(question, schemaVersion string) (Entry, bool) {
	key := c.key(question, schemaVersion)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}

	if c.ttl > 0 && time.Since(entry.StoredAt) > c.ttl {
		delete(c.entries, key)
		c.misses++

		return Entry{}, false
	}

	c.hits++

	// Hand back a copy so callers cannot mutate the stored rows.
	entry.Result = cloneResult(entry.Result)

	return entry, true
}

// Store records a successful (sql, result) pair. A repeated key
// overwrites with the newer result.
func (c *ResponseCache) Store(question, schemaVersion, sqlText string, result *executor.Result) {
	key := c.key(question, schemaVersion)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		SQL:      sqlText,
		Result:   cloneResult(result),
		StoredAt: time.Now(),
	}

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

// Stats returns a snapshot of hit/miss counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// evictOldest removes entries oldest-first until within capacity. Caller
// holds the write lock.
func (c *ResponseCache) evictOldest() {
	for len(c.entries) > c.maxEntries {
		oldestKey := ""

		var oldestAt time.Time

		for key, entry := range c.entries {
			if oldestKey == "" || entry.StoredAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.StoredAt
			}
		}

		delete(c.entries, oldestKey)
	}
}

// cloneResult deep-copies a result so stored entries and returned entries
// never share row maps with the caller.
func cloneResult(result *executor.Result) *executor.Result {
	if result == nil {
		return nil
	}

	clone := &executor.Result{
		Columns: append([]string(nil), result.Columns...),
		Rows:    make([]executor.Row, len(result.Rows)),
	}

	for i, row := range result.Rows {
		copied := make(executor.Row, len(row))
		for column, value := range row {
			copied[column] = value
		}

		clone.Rows[i] = copied
	}

	return clone
}

func (c *ResponseCache) key(question, schemaVersion string) string {
	hasher := sha256.New()
	hasher.Write([]byte(c.normalize(question)))
	hasher.Write([]byte{0})
	hasher.Write([]byte(schemaVersion))

	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
