package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pior/ircline"
	"github.com/pior/ircline/capab"
	"github.com/pior/ircline/internal/config"
	"github.com/pior/ircline/msgbuf"
)

// tagCapabilities maps well-known tag keys to the capability that gates them.
// Other tags are gated by message-tags. Tags gated by an unregistered
// capability are not relayed.
var tagCapabilities = map[string]string{
	"time":    "server-time",
	"account": "account-tag",
	"batch":   "batch",
	"label":   "labeled-response",
}

// relay holds what run needs for each input line.
type relay struct {
	registry    *capab.Registry
	broadcaster *ircline.Broadcaster
	recipients  []ircline.Recipient
	out         io.Writer
	logger      zerolog.Logger
}

// run reads lines from in until EOF or until ctx is done. For every valid line
// it writes a dump of the message to out, then the line rendered for each
// capability set: no capability, each configured capability alone, and all of
// them. Rendered lines are prefixed with the recipient ID and a tab.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, in io.Reader, out io.Writer) error {
	msgbuf.SetServerName(cfg.Server.Name)

	registry, err := capab.NewRegistry(cfg.Capabilities...)
	if err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}

	bcfg := ircline.Config{
		Shards:     cfg.Delivery.Shards,
		QueueSize:  cfg.Delivery.QueueSize,
		MaxCaches:  cfg.Delivery.CachePool,
		CacheSlots: cfg.Delivery.CacheSlots,
		Logger:     &logger,
		OnWriteError: func(r ircline.Recipient, err error) {
			logger.Warn().Err(err).Str("recipient", r.ID()).Msg("write failed")
		},
	}
	if br := cfg.Delivery.Breaker; br.Enabled {
		bcfg.NewCircuitBreaker = ircline.NewCircuitBreakerConfig(br.MaxRequests, br.Interval, br.Timeout)
	}

	b, err := ircline.NewBroadcaster(bcfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, b, logger)
	}

	out = &syncWriter{w: out}
	rl := &relay{
		registry:    registry,
		broadcaster: b,
		recipients:  newRecipients(registry, out),
		out:         out,
		logger:      logger,
	}

	logger.Info().
		Str("server", msgbuf.ServerName()).
		Str("capabilities", registry.List()).
		Int("shards", b.Shards()).
		Msg("ircline ready")

	r := bufio.NewReaderSize(in, msgbuf.BufSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		m, err := msgbuf.ReadMessage(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if msgbuf.ShouldCloseConnection(err) {
				return err
			}
			logger.Warn().Err(err).Msg("dropping line")
			continue
		}

		if err := rl.handle(ctx, m); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}

	s := b.Stats()
	logger.Info().
		Uint64("sends", s.Sends).
		Uint64("deliveries", s.Deliveries).
		Uint64("cache_hits", s.CacheHits).
		Uint64("cache_misses", s.CacheMisses).
		Msg("input done")
	return nil
}

// handle dumps m and fans it out to every recipient.
func (rl *relay) handle(ctx context.Context, m *msgbuf.Message) error {
	if _, err := fmt.Fprintf(rl.out, "> %s\n", m); err != nil {
		return err
	}

	out, text := rl.rebuild(m)
	rl.logger.Debug().
		Int("tags", m.NumTags()).
		Int("params", m.NumParams()).
		Str("overall_caps", strings.Join(rl.registry.Names(out.OverallCaps()), ",")).
		Msg("relaying message")

	return rl.broadcaster.Send(ctx, out, text, rl.recipients...)
}

// rebuild turns a parsed message into an outgoing one whose tags carry the
// capability masks of the registry. The returned text holds the parameters
// after the command.
func (rl *relay) rebuild(m *msgbuf.Message) (*msgbuf.Message, string) {
	out := msgbuf.NewMessage()

	for _, t := range m.Tags() {
		caps, ok := rl.tagCaps(t.Key)
		if !ok {
			rl.logger.Debug().Str("tag", t.Key).Msg("dropping tag without capability")
			continue
		}

		if t.HasValue {
			out.AddTag(t.Key, t.Value, caps)
		} else {
			out.AddBareTag(t.Key, caps)
		}
	}

	if origin, ok := m.Origin(); ok {
		out.SetOrigin(origin)
	}
	if cmd, ok := m.Command(); ok {
		out.SetCommand(cmd)
	}

	return out, formatParams(m.Params()[1:])
}

// tagCaps returns the mask of the capability gating key, or false when that
// capability is not registered.
func (rl *relay) tagCaps(key string) (msgbuf.CapMask, bool) {
	name, ok := tagCapabilities[key]
	if !ok {
		name = "message-tags"
	}
	return rl.registry.Get(name)
}

// formatParams joins params with spaces. The last one gets a ':' marker when
// it is empty, contains a space or starts with ':'.
func formatParams(params []string) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i == len(params)-1 && (p == "" || strings.ContainsRune(p, ' ') || p[0] == ':') {
			sb.WriteByte(':')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

// newRecipients returns one recipient per capability set, all writing to out.
func newRecipients(registry *capab.Registry, out io.Writer) []ircline.Recipient {
	recipients := []ircline.Recipient{
		ircline.NewRecipient("none", 0, &prefixWriter{prefix: "none", w: out}),
	}

	for _, name := range registry.Names(registry.All()) {
		caps, _ := registry.Get(name)
		recipients = append(recipients, ircline.NewRecipient(name, caps, &prefixWriter{prefix: name, w: out}))
	}

	all := registry.All()
	return append(recipients, ircline.NewRecipient("all", all, &prefixWriter{prefix: "all", w: out}))
}

// prefixWriter writes each line as "prefix<TAB>line\n", dropping the CRLF.
type prefixWriter struct {
	prefix string
	w      io.Writer
}

func (p *prefixWriter) Write(line []byte) (int, error) {
	body := strings.TrimRight(string(line), "\r\n")
	if _, err := fmt.Fprintf(p.w, "%s\t%s\n", p.prefix, body); err != nil {
		return 0, err
	}
	return len(line), nil
}

// syncWriter serializes writes coming from the shard workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
