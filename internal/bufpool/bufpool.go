// Package bufpool pools fixed-size byte buffers.
package bufpool

import "sync"

// Pool hands out *[]byte of a fixed length.
type Pool struct {
	pool sync.Pool
	size int
}

// New returns a Pool of buffers of the given length.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Get returns a buffer of the pool length. Its content is undefined.
func (p *Pool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

// Put returns b to the pool. Buffers of the wrong size are dropped.
func (p *Pool) Put(b *[]byte) {
	if cap(*b) < p.size {
		return
	}
	*b = (*b)[:p.size]
	p.pool.Put(b)
}
