package resilient

import (
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheFingerprintSep is U+0000, per spec §6's cache fingerprint format.
const cacheFingerprintSep = "\x00"

// fingerprintMemo caches the canonical auth-header extract for a given
// raw header set shape, bounded and FIFO-evicted (spec §4.3: "a small
// bounded memoization (≤100 entries, FIFO eviction) speeds auth-extraction").
type fingerprintMemo struct {
	mu    sync.Mutex
	order []string
	vals  map[string]string
	max   int
}

func newFingerprintMemo() *fingerprintMemo {
	return &fingerprintMemo{vals: make(map[string]string), max: 100}
}

func (m *fingerprintMemo) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok
}

func (m *fingerprintMemo) put(key, val string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vals[key]; exists {
		m.vals[key] = val
		return
	}
	if len(m.order) >= m.max {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.vals, oldest)
	}
	m.order = append(m.order, key)
	m.vals[key] = val
}

func (m *fingerprintMemo) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.vals = make(map[string]string)
}

// Fingerprint computes the deterministic cache key for a request: method,
// resolved URL, sorted query params, and a canonical extract of auth-relevant
// headers (spec §3, §6). Two requests differing only in auth credential
// values always produce different fingerprints (auth isolation invariant).
func Fingerprint(method, resolvedURL string, params map[string]string, header map[string][]string, authHeaders []string, memo *fingerprintMemo) string {
	var b strings.Builder
	b.WriteString(string(method))
	b.WriteString(cacheFingerprintSep)
	b.WriteString(resolvedURL)
	b.WriteString(cacheFingerprintSep)
	b.WriteString(serializeParams(params))
	b.WriteString(cacheFingerprintSep)
	b.WriteString(extractAuthHeaders(header, authHeaders, memo))
	return b.String()
}

func serializeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

func extractAuthHeaders(header map[string][]string, authHeaders []string, memo *fingerprintMemo) string {
	memoKey := authHeaderMemoKey(header, authHeaders)
	if memo != nil {
		if v, ok := memo.get(memoKey); ok {
			return v
		}
	}

	names := make([]string, len(authHeaders))
	copy(names, authHeaders)
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strings.ToLower(name))
		b.WriteByte('=')
		b.WriteString(lookupHeaderCaseInsensitive(header, name))
	}
	out := b.String()

	if memo != nil {
		memo.put(memoKey, out)
	}
	return out
}

// authHeaderMemoKey identifies the *shape* of a request's auth-relevant
// headers (names+values actually present), which is what the memo caches —
// the memo never strips the values, it only avoids re-sorting/re-joining
// identical shapes repeatedly.
func authHeaderMemoKey(header map[string][]string, authHeaders []string) string {
	var b strings.Builder
	for _, name := range authHeaders {
		b.WriteString(strings.ToLower(name))
		b.WriteByte('=')
		b.WriteString(lookupHeaderCaseInsensitive(header, name))
		b.WriteByte(';')
	}
	return b.String()
}

func lookupHeaderCaseInsensitive(header map[string][]string, name string) string {
	for k, vs := range header {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// cacheNode is a doubly-linked-list node backing LRU ordering.
type cacheNode struct {
	key        string
	entry      *CacheEntry
	prev, next *cacheNode
}

// Cache is a bounded, in-process LRU mapping fingerprint -> CacheEntry, with
// an ETag index and an in-flight registry for dedup, as specified in §4.3.
// A single mutex guards the map and the LRU list; it is only ever held
// across constant-time map/list operations, never across a network call or
// sleep (spec §5).
type Cache struct {
	mu       sync.Mutex
	nodes    map[string]*cacheNode
	head     *cacheNode // most-recently-used
	tail     *cacheNode // least-recently-used
	maxSize  int
	ttl      time.Duration
	etags    map[string]string
	memo     *fingerprintMemo
	inFlight *InFlightRegistry

	sweepGroup   singleflight.Group
	lastSweep    time.Time
	sweepMu      sync.Mutex
	sweepMinGap  time.Duration
}

// NewCache constructs a cache with normalized maxSize/ttl (spec §4.1:
// maxSize clamped to [1,10000] default 100, TTL clamped to [1s,24h] default
// 5m).
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize == 0 {
		maxSize = defaultCacheSize
	}
	return &Cache{
		nodes:       make(map[string]*cacheNode),
		maxSize:     clampInt(maxSize, minCacheSize, maxCacheSize),
		ttl:         clampDuration(ttl, minCacheTTL, maxCacheTTL, defaultCacheTTL),
		etags:       make(map[string]string),
		memo:        newFingerprintMemo(),
		inFlight:    NewInFlightRegistry(),
		sweepMinGap: 60 * time.Second,
	}
}

func (c *Cache) unlinkLocked(n *cacheNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Cache) pushFrontLocked(n *cacheNode) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache) touchLocked(n *cacheNode) {
	if c.head == n {
		return
	}
	c.unlinkLocked(n)
	c.pushFrontLocked(n)
}

// Get returns the cached entry for key. An entry within its stale-while-
// revalidate window (spec §4.3) is still returned with IsStale set, so the
// caller can serve it immediately and revalidate in the background; an entry
// past its hard expiry (ExpiresAt, or StaleAt when SWR applies) is evicted
// and reported as a miss. A hit re-inserts the node at the MRU position.
func (c *Cache) Get(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[key]
	if !ok {
		return nil, false
	}

	now := time.Now()
	hardExpiry := n.entry.ExpiresAt
	if n.entry.StaleAt != nil {
		hardExpiry = *n.entry.StaleAt
	}
	if now.After(hardExpiry) {
		c.evictLocked(n)
		return nil, false
	}

	n.entry.IsStale = now.After(n.entry.ExpiresAt)
	c.touchLocked(n)
	return n.entry, true
}

// parseCacheControl extracts max-age and stale-while-revalidate directives
// from a response's Cache-Control header (spec §4.3's SWR extension).
// ok is false when no max-age directive is present at all.
func parseCacheControl(header http.Header) (maxAge, staleWhileRevalidate time.Duration, ok bool) {
	cc := header.Get("Cache-Control")
	if cc == "" {
		return 0, 0, false
	}
	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(directive)
		switch {
		case strings.HasPrefix(directive, "max-age="):
			if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil {
				maxAge = time.Duration(secs) * time.Second
				ok = true
			}
		case strings.HasPrefix(directive, "stale-while-revalidate="):
			if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "stale-while-revalidate=")); err == nil {
				staleWhileRevalidate = time.Duration(secs) * time.Second
			}
		}
	}
	return maxAge, staleWhileRevalidate, ok
}

// Set stores resp under key with the given ttl (0 means use the cache
// default, or the response's own Cache-Control max-age when present),
// evicting the LRU entry first if at capacity and key is new (spec §4.3).
func (c *Cache) Set(key string, resp *Response, ttl time.Duration, etag string) {
	maxAge, swr, hasDirective := parseCacheControl(resp.Header)
	if ttl <= 0 {
		if hasDirective {
			ttl = maxAge
		} else {
			ttl = c.ttl
		}
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	entry := &CacheEntry{
		Response:  resp,
		ExpiresAt: expiresAt,
		ETag:      etag,
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = &t
		}
	}
	if swr > 0 {
		staleAt := expiresAt.Add(swr)
		entry.StaleAt = &staleAt
	}

	c.mu.Lock()
	if n, ok := c.nodes[key]; ok {
		n.entry = entry
		c.touchLocked(n)
	} else {
		if len(c.nodes) >= c.maxSize && c.tail != nil {
			c.evictLocked(c.tail)
		}
		n := &cacheNode{key: key, entry: entry}
		c.nodes[key] = n
		c.pushFrontLocked(n)
	}
	if etag != "" {
		c.etags[key] = etag
	}
	c.mu.Unlock()

	c.scheduleSweep()
}

// evictLocked removes n from both the map and the LRU list. Caller holds c.mu.
func (c *Cache) evictLocked(n *cacheNode) {
	delete(c.nodes, n.key)
	delete(c.etags, n.key)
	c.unlinkLocked(n)
}

// Refresh extends an entry's expiry to now+defaultTTL, used after a 304
// response confirms the cached body is still valid (spec §4.3, §4.7 step 3g).
func (c *Cache) Refresh(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[key]; ok {
		n.entry.ExpiresAt = time.Now().Add(c.ttl)
		n.entry.StaleAt = nil
		n.entry.IsStale = false
		c.touchLocked(n)
	}
}

// ETag returns the last-known ETag for key, if any.
func (c *Cache) ETag(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.etags[key]
	return v, ok
}

// Invalidate removes every entry whose key matches pattern (compiled as a
// regex) and returns the number removed.
func (c *Cache) Invalidate(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, n := range c.nodes {
		if re.MatchString(key) {
			c.evictLocked(n)
			removed++
		}
	}
	return removed, nil
}

// Clear drops all entries, ETags, in-flight registrations, and the
// auth-header memo (spec §4.3).
func (c *Cache) Clear() {
	c.mu.Lock()
	c.nodes = make(map[string]*cacheNode)
	c.etags = make(map[string]string)
	c.head, c.tail = nil, nil
	c.mu.Unlock()

	c.inFlight = NewInFlightRegistry()
	c.memo.clear()
}

// CacheStats is a snapshot for introspection (spec §4.3 "stats()").
type CacheStats struct {
	Size        int
	MaxSize     int
	DefaultTTL  time.Duration
	InFlight    int
	ETagCount   int
}

// Stats returns a point-in-time snapshot of the cache's size and counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	size := len(c.nodes)
	etagCount := len(c.etags)
	c.mu.Unlock()

	return CacheStats{
		Size:       size,
		MaxSize:    c.maxSize,
		DefaultTTL: c.ttl,
		InFlight:   c.inFlight.Len(),
		ETagCount:  etagCount,
	}
}

// GetOrRegisterInFlight exposes the cache's in-flight registry to the
// pipeline for request coalescing (spec §4.3 "pending").
func (c *Cache) GetOrRegisterInFlight(key string) (*inFlightEntry, bool) {
	return c.inFlight.GetOrRegister(key)
}

// SettleInFlight finalizes and removes an in-flight registration.
func (c *Cache) SettleInFlight(key string, resp *Response, err error) {
	c.inFlight.Settle(key, resp, err)
}

// scheduleSweep runs a best-effort expired-entry sweep at most once per
// sweepMinGap, regardless of how many concurrent Set calls request it (spec
// §4.3: "a lazy sweep runs at most once per 60s and only when scheduled by a
// set; it is a best-effort cleanup, not a correctness mechanism"). Concurrent
// callers collapse onto a single sweep goroutine via singleflight.
func (c *Cache) scheduleSweep() {
	c.sweepMu.Lock()
	due := time.Since(c.lastSweep) >= c.sweepMinGap
	if due {
		c.lastSweep = time.Now()
	}
	c.sweepMu.Unlock()

	if !due {
		return
	}

	go func() {
		_, _, _ = c.sweepGroup.Do("sweep", func() (interface{}, error) {
			c.sweepExpired()
			return nil, nil
		})
	}()
}

func (c *Cache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, n := range c.nodes {
		if now.After(n.entry.ExpiresAt) {
			c.evictLocked(n)
			_ = key
		}
	}
}
