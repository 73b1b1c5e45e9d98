package replay

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
)

// CacheKey identifies a search position: the token set, the open gateway
// bookkeeping and the remaining events.
type CacheKey [sha256.Size]byte

// String returns a short hex prefix for logs.
func (k CacheKey) String() string {
	return hex.EncodeToString(k[:6])
}

const domainCacheKey = "conform/replay/state/v1"

// cacheKey hashes a state with the labels of the steps it still has to
// explain. Tokens and bookkeeping are sorted so equal states hash equally
// regardless of how they were reached. Every field is length-prefixed.
func cacheKey(st *State, suffix []string) CacheKey {
	h := sha256.New()
	h.Write([]byte(domainCacheKey))

	var buf [binary.MaxVarintLen64]byte
	write := func(s string) {
		n := binary.PutUvarint(buf[:], uint64(len(s)))
		h.Write(buf[:n])
		h.Write([]byte(s))
	}
	writeSet := func(tag string, set map[string]struct{}) {
		write(tag)
		keys := sortedKeys(set)
		n := binary.PutUvarint(buf[:], uint64(len(keys)))
		h.Write(buf[:n])
		for _, k := range keys {
			write(k)
		}
	}

	writeSet("tokens", st.tokens)
	for _, id := range st.OpenSplits() {
		write("split")
		write(id)
		writeSet("taken", st.splits[id])
	}
	for _, id := range st.OpenJoins() {
		write("join")
		write(id)
		writeSet("arrived", st.joins[id])
	}
	write("suffix")
	for _, label := range suffix {
		write(label)
	}

	var key CacheKey
	h.Sum(key[:0])
	return key
}

// cacheEntry is the outcome of a search position. A successful entry keeps
// the paths executed after the position was reached, plus the bookkeeping
// of the terminal state, so that it can be spliced onto any state with the
// same key.
type cacheEntry struct {
	ok    bool
	diff  []Path
	final *State
}

// Cache memoizes search results across traces. Each key is written once.
//
// A Cache is only valid for one graph replayed with one set of engine
// options. Sharing it between graphs or widths gives wrong answers.
type Cache struct {
	mu      sync.Mutex
	entries map[CacheKey]cacheEntry
	hits    int
	misses  int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]cacheEntry)}
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// lookup returns the cached outcome for key. found is false on a miss. When
// the entry is a success, the returned state is query extended by the
// cached diff.
func (c *Cache) lookup(key CacheKey, query *State) (resolved *State, ok, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		c.misses++
		return nil, false, false
	}
	c.hits++
	if !e.ok {
		return nil, false, true
	}
	resolved = e.final.Clone()
	resolved.paths = append(append(make([]Path, 0, len(query.paths)+len(e.diff)), query.paths...), e.diff...)
	return resolved, true, true
}

// putFailure records that key has no explanation.
func (c *Cache) putFailure(key CacheKey) error {
	return c.put(key, cacheEntry{})
}

// putSuccess records the paths resolved executed beyond query.
// resolved must extend query: its paths start with query's paths.
func (c *Cache) putSuccess(key CacheKey, query, resolved *State) error {
	n := len(query.paths)
	if len(resolved.paths) < n {
		return &Error{Code: ErrCodeCacheConflict, Message: "resolved state does not extend the queried state", Event: -1}
	}
	final := resolved.Clone()
	final.paths = nil
	return c.put(key, cacheEntry{
		ok:    true,
		diff:  append([]Path(nil), resolved.paths[n:]...),
		final: final,
	})
}

func (c *Cache) put(key CacheKey, e cacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.entries[key]; dup {
		return newCacheConflictError(key)
	}
	c.entries[key] = e
	return nil
}
