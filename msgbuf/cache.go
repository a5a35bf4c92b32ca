package msgbuf

import "fmt"

// CacheStats counts Cache lookups since the last Init.
// Every miss renders a line; hits reuse one.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type cacheEntry struct {
	caps CapMask
	line []byte
	next int // next entry in most-recently-used order, -1 at the tail
}

// Cache memoizes the lines rendered for one Message, keyed by the recipient
// capability mask, so a message sent to many recipients is rendered once per
// distinct mask.
//
// Entries form a most-recently-used list over a fixed array. Lookups match
// the mask exactly after restricting it to the capabilities the Message's
// tags depend on. When all slots are used the least recently used entry is
// replaced.
//
// Usage, once per outgoing message:
//
//	cache.Init(msg, text)
//	for _, r := range recipients {
//	    r.Write(cache.Get(r.Caps()))
//	}
//	cache.Reset()
//
// A Cache is not safe for concurrent use.
type Cache struct {
	msg     *Message
	text    []byte
	overall CapMask

	entries []cacheEntry
	used    int
	head    int

	stats CacheStats
}

// NewCache returns a Cache with CacheSize slots.
func NewCache() *Cache {
	return NewCacheSize(CacheSize)
}

// NewCacheSize returns a Cache with the given number of slots, clamped to
// [1, CacheSize].
func NewCacheSize(size int) *Cache {
	size = max(1, min(size, CacheSize))
	return &Cache{
		entries: make([]cacheEntry, size),
		head:    -1,
	}
}

// Size returns the number of slots.
func (c *Cache) Size() int {
	return len(c.entries)
}

// Init binds the cache to m. Every line is the prefix of m followed by text.
// The cache does not own m; m must not change until Reset.
func (c *Cache) Init(m *Message, text string) {
	c.init(m)
	c.text = append(c.text[:0], text...)
	c.clampText()
}

// Initf is Init with a formatted text.
func (c *Cache) Initf(m *Message, format string, args ...any) {
	c.init(m)
	c.text = fmt.Appendf(c.text[:0], format, args...)
	c.clampText()
}

func (c *Cache) init(m *Message) {
	c.Reset()
	c.msg = m
	c.overall = m.OverallCaps()
}

func (c *Cache) clampText() {
	if len(c.text) > DataLen {
		c.text = c.text[:DataLen]
	}
}

// Get returns the line, CRLF included, for a recipient with capmask.
//
// The returned slice stays valid until Reset, even if its entry is evicted
// meanwhile. Callers must not modify it.
func (c *Cache) Get(capmask CapMask) []byte {
	caps := capmask & c.overall

	result, prev, tail := -1, -1, -1
	for i := c.head; i >= 0; i = c.entries[i].next {
		if c.entries[i].caps == caps {
			result = i
			break
		}
		tail = prev
		prev = i
	}

	if result < 0 {
		c.stats.Misses++

		if c.used < len(c.entries) {
			result = c.used
			c.used++
			c.render(result, caps, true)

			c.entries[result].next = c.head
			c.head = result
			return c.entries[result].line
		}

		// Full: prev is the least recently used entry
		c.stats.Evictions++
		result = prev
		prev = tail
		c.render(result, caps, false)
	} else {
		c.stats.Hits++
	}

	if prev >= 0 {
		c.entries[prev].next = c.entries[result].next
		c.entries[result].next = c.head
		c.head = result
	}
	return c.entries[result].line
}

// render fills entry i for caps. An evicted entry gets a fresh buffer since
// its previous line may still be in use.
func (c *Cache) render(i int, caps CapMask, reuse bool) {
	e := &c.entries[i]
	e.caps = caps

	line := e.line[:0]
	if !reuse || cap(line) < BufSize {
		line = make([]byte, 0, BufSize)
	}
	line = line[:LineLen]

	buflen := len(line)
	n := UnparsePrefix(line, &buflen, c.msg, caps)
	w := lineWriter{buf: line[:buflen], n: n}
	w.Write(c.text)

	e.line = append(line[:w.n], CRLF...)
}

// Stats returns the lookup counters since the last Init.
func (c *Cache) Stats() CacheStats {
	return c.stats
}

// Reset releases the message and forgets every rendered line. Line buffers
// are kept for the next Init.
func (c *Cache) Reset() {
	c.msg = nil
	c.overall = 0
	c.text = c.text[:0]
	for i := range c.entries[:c.used] {
		c.entries[i].caps = 0
		c.entries[i].line = c.entries[i].line[:0]
		c.entries[i].next = -1
	}
	c.used = 0
	c.head = -1
	c.stats = CacheStats{}
}
