package ircline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/ircline/msgbuf"
)

var ErrClosed = errors.New("ircline: broadcaster closed")

// Config holds configuration for a Broadcaster.
type Config struct {
	// Shards is the number of delivery workers.
	// Zero means runtime.GOMAXPROCS(0).
	Shards int

	// QueueSize is the number of pending lines per shard. Send blocks while
	// the queue of a shard is full.
	// Zero means 256.
	QueueSize int

	// MaxCaches bounds the number of Send calls rendering at the same time.
	// Zero means one per shard.
	MaxCaches int32

	// CacheSlots is the number of capability variants kept per message.
	// Zero means msgbuf.CacheSize.
	CacheSlots int

	// SelectShard picks the shard of a recipient.
	// If nil, uses DefaultShardSelector.
	SelectShard ShardSelector

	// NewCircuitBreaker creates the circuit breaker of a recipient.
	// Called on the first write to each recipient ID.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(id string) CircuitBreaker

	// OnWriteError is called by the delivery worker when a line is not
	// written, either because the recipient failed or because its breaker is
	// open. It must not block.
	OnWriteError func(r Recipient, err error)

	// Logger receives delivery failures at debug level.
	// If nil, nothing is logged.
	Logger *zerolog.Logger
}

type delivery struct {
	r    Recipient
	line []byte
	wg   *sync.WaitGroup
}

// Broadcaster writes messages to many recipients, rendering each message
// once per distinct capability set.
//
// Recipients are spread over a fixed set of shard workers by ID. All lines for
// one recipient go through the same worker, in Send order.
type Broadcaster struct {
	shards      []chan delivery
	selectShard ShardSelector
	caches      *cachePool

	newCircuitBreaker func(id string) CircuitBreaker
	breakersMu        sync.Mutex
	breakers          map[string]CircuitBreaker

	onWriteError func(r Recipient, err error)
	logger       zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup

	stats *broadcastStatsCollector
}

// NewBroadcaster starts the shard workers. Call Close to stop them.
func NewBroadcaster(config Config) (*Broadcaster, error) {
	shards := config.Shards
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	maxCaches := config.MaxCaches
	if maxCaches <= 0 {
		maxCaches = int32(shards)
	}

	slots := config.CacheSlots
	if slots <= 0 {
		slots = msgbuf.CacheSize
	}

	selectShard := config.SelectShard
	if selectShard == nil {
		selectShard = DefaultShardSelector
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	caches, err := newCachePool(maxCaches, slots)
	if err != nil {
		return nil, fmt.Errorf("cache pool: %w", err)
	}

	b := &Broadcaster{
		shards:            make([]chan delivery, shards),
		selectShard:       selectShard,
		caches:            caches,
		newCircuitBreaker: config.NewCircuitBreaker,
		breakers:          make(map[string]CircuitBreaker),
		onWriteError:      config.OnWriteError,
		logger:            logger,
		stats:             newBroadcastStatsCollector(),
	}

	for i := range b.shards {
		ch := make(chan delivery, queueSize)
		b.shards[i] = ch
		b.workers.Add(1)
		go b.worker(ch)
	}

	b.logger.Debug().
		Int("shards", shards).
		Int("queue_size", queueSize).
		Int32("max_caches", maxCaches).
		Msg("broadcaster started")

	return b, nil
}

// Send writes the prefix of m followed by text to every recipient, with the
// tags each recipient's capabilities allow.
//
// Send returns once every line was written or dropped. A failed write does not
// fail the Send: it is counted in Stats and passed to Config.OnWriteError.
// If ctx is done before every line is queued, the remaining recipients are
// skipped and ctx.Err() is returned.
//
// m must not change until Send returns.
func (b *Broadcaster) Send(ctx context.Context, m *msgbuf.Message, text string, recipients ...Recipient) error {
	return b.send(ctx, recipients, func(c *msgbuf.Cache) {
		c.Init(m, text)
	})
}

// Sendf is Send with a formatted text.
func (b *Broadcaster) Sendf(ctx context.Context, recipients []Recipient, m *msgbuf.Message, format string, args ...any) error {
	return b.send(ctx, recipients, func(c *msgbuf.Cache) {
		c.Initf(m, format, args...)
	})
}

func (b *Broadcaster) send(ctx context.Context, recipients []Recipient, init func(*msgbuf.Cache)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	res, err := b.caches.Acquire(ctx)
	if err != nil {
		b.stats.recordDropped(len(recipients))
		return err
	}
	cache := res.Value()
	init(cache)

	var wg sync.WaitGroup
	var unsent msgbuf.CacheStats // lookup of a line that was never queued
	queued := 0
	for _, r := range recipients {
		if err = ctx.Err(); err != nil {
			break
		}

		before := cache.Stats()
		d := delivery{r: r, line: cache.Get(r.Caps()), wg: &wg}
		ch := b.shards[b.selectShard(r.ID(), len(b.shards))]

		wg.Add(1)
		select {
		case ch <- d:
			queued++
		case <-ctx.Done():
			wg.Done()
			unsent = cacheStatsSince(cache.Stats(), before)
			err = ctx.Err()
		}
		if err != nil {
			break
		}
	}

	// Lines point into the cache until written
	wg.Wait()

	b.stats.recordSend(cacheStatsSince(cache.Stats(), unsent))
	if skipped := len(recipients) - queued; skipped > 0 {
		b.stats.recordDropped(skipped)
	}

	cache.Reset()
	res.Release()
	return err
}

func (b *Broadcaster) worker(ch <-chan delivery) {
	defer b.workers.Done()

	for d := range ch {
		b.deliver(d.r, d.line)
		d.wg.Done()
	}
}

func (b *Broadcaster) deliver(r Recipient, line []byte) {
	var err error
	if cb := b.breakerFor(r.ID()); cb != nil {
		_, err = cb.Execute(func() (int, error) {
			return r.Write(line)
		})
	} else {
		_, err = r.Write(line)
	}

	if err == nil {
		b.stats.recordDelivery()
		return
	}

	if isBreakerRejection(err) {
		b.stats.recordDropped(1)
	} else {
		b.stats.recordWriteError()
	}

	b.logger.Debug().Err(err).Str("recipient", r.ID()).Msg("delivery failed")

	if b.onWriteError != nil {
		b.onWriteError(r, err)
	}
}

// breakerFor returns the circuit breaker of a recipient, creating it on
// first use. Returns nil when no breaker is configured.
func (b *Broadcaster) breakerFor(id string) CircuitBreaker {
	if b.newCircuitBreaker == nil {
		return nil
	}

	b.breakersMu.Lock()
	defer b.breakersMu.Unlock()

	cb, ok := b.breakers[id]
	if !ok {
		cb = b.newCircuitBreaker(id)
		b.breakers[id] = cb
	}
	return cb
}

// Forget discards the state kept for a recipient, such as its circuit
// breaker. Call it when the recipient disconnects.
func (b *Broadcaster) Forget(id string) {
	b.breakersMu.Lock()
	defer b.breakersMu.Unlock()

	delete(b.breakers, id)
}

// OpenBreakers returns the number of recipients whose circuit breaker is
// currently open.
func (b *Broadcaster) OpenBreakers() int {
	b.breakersMu.Lock()
	defer b.breakersMu.Unlock()

	n := 0
	for _, cb := range b.breakers {
		if cb.State() == gobreaker.StateOpen {
			n++
		}
	}
	return n
}

// Shards returns the number of delivery workers.
func (b *Broadcaster) Shards() int {
	return len(b.shards)
}

// Stats returns a snapshot of broadcast statistics.
func (b *Broadcaster) Stats() BroadcastStats {
	return b.stats.snapshot()
}

// CachePoolStats returns a snapshot of the render cache pool statistics.
func (b *Broadcaster) CachePoolStats() CachePoolStats {
	return b.caches.Stats()
}

// Close waits for in-flight sends, stops the workers and releases the caches.
// Send returns ErrClosed afterwards.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.shards {
		close(ch)
	}
	b.mu.Unlock()

	b.workers.Wait()
	b.caches.Close()

	b.logger.Debug().Msg("broadcaster closed")
}
