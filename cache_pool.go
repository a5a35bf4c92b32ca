package ircline

import (
	"context"
	"sync/atomic"

	"github.com/jackc/puddle/v2"

	"github.com/pior/ircline/msgbuf"
)

// cachePool holds the render caches used by concurrent Send calls.
// A cache is bound to one message from Init to Reset, so each in-flight
// Send owns one.
type cachePool struct {
	pool    *puddle.Pool[*msgbuf.Cache]
	created atomic.Int64
}

func newCachePool(maxSize int32, slots int) (*cachePool, error) {
	p := &cachePool{}

	poolConfig := &puddle.Config[*msgbuf.Cache]{
		Constructor: func(ctx context.Context) (*msgbuf.Cache, error) {
			p.created.Add(1)
			return msgbuf.NewCacheSize(slots), nil
		},
		Destructor: func(c *msgbuf.Cache) {
			c.Reset()
		},
		MaxSize: maxSize,
	}

	pool, err := puddle.NewPool(poolConfig)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

func (p *cachePool) Acquire(ctx context.Context) (*puddle.Resource[*msgbuf.Cache], error) {
	return p.pool.Acquire(ctx)
}

func (p *cachePool) Close() {
	p.pool.Close()
}

// Stats returns a snapshot of pool statistics by converting puddle's stats to our format.
func (p *cachePool) Stats() CachePoolStats {
	s := p.pool.Stat()

	return CachePoolStats{
		AcquireCount:     uint64(s.AcquireCount()),
		AcquireWaitCount: uint64(s.EmptyAcquireCount()), // Acquires that had to wait (pool was empty)
		CreatedCaches:    uint64(p.created.Load()),
		TotalCaches:      s.TotalResources(),
		IdleCaches:       s.IdleResources(),
		ActiveCaches:     s.AcquiredResources(),
	}
}
