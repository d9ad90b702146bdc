package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/harrison/wavegate/internal/lock"
	"github.com/harrison/wavegate/internal/models"
)

// ValidationCache short-circuits Rule Engine validation for files unchanged
// since their last successful run (spec §4.7 step 3: "a validation cache
// keyed by file path → content hash → rule ID"). It is persisted to disk
// so it survives the CLI's stateless-between-invocations model (spec §5).
type ValidationCache struct {
	path string
	mu   sync.Mutex
	// Files maps file path -> content hash -> rule ID -> cached violations
	// for that single rule (spec's exact key shape).
	Files map[string]cacheEntry `json:"files"`
}

type cacheEntry struct {
	Hash    string                        `json:"hash"`
	ByRule  map[string][]models.Violation `json:"by_rule"`
}

// LoadValidationCache reads the cache file, returning an empty cache if it
// does not exist or fails to parse (a cache is an optimization, never a
// correctness requirement — corruption simply means everything
// re-validates).
func LoadValidationCache(path string) *ValidationCache {
	c := &ValidationCache{path: path, Files: make(map[string]cacheEntry)}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var wire struct {
		Files map[string]cacheEntry `json:"files"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return c
	}
	if wire.Files != nil {
		c.Files = wire.Files
	}
	return c
}

// Save persists the cache atomically.
func (c *ValidationCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.MarshalIndent(struct {
		Files map[string]cacheEntry `json:"files"`
	}{Files: c.Files}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling validation cache: %w", err)
	}
	return lock.AtomicReplace(c.path, data, 0o644)
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Lookup returns the cached violations for (file, ruleID) and true if the
// file's current content hash matches the cached hash and that rule was
// previously validated against it.
func (c *ValidationCache) Lookup(file, ruleID string) ([]models.Violation, bool) {
	hash, err := hashFile(file)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.Files[file]
	if !ok || entry.Hash != hash {
		return nil, false
	}
	violations, ok := entry.ByRule[ruleID]
	return violations, ok
}

// Store records violations (possibly empty) for (file, ruleID) at the
// file's current content hash, discarding any stale entries recorded
// under a previous hash for that file.
func (c *ValidationCache) Store(file, ruleID string, violations []models.Violation) {
	hash, err := hashFile(file)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.Files[file]
	if !ok || entry.Hash != hash {
		entry = cacheEntry{Hash: hash, ByRule: make(map[string][]models.Violation)}
	}
	if entry.ByRule == nil {
		entry.ByRule = make(map[string][]models.Violation)
	}
	entry.ByRule[ruleID] = violations
	c.Files[file] = entry
}
