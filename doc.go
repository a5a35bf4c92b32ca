// Package ircline delivers IRC lines to many recipients with per-recipient
// tag filtering.
//
// The line codec lives in the msgbuf package. This package is the send side
// built on top of it: a Broadcaster renders a message once per distinct
// capability set with a msgbuf.Cache, then hands each line to the shard worker
// that owns the recipient.
//
// # Usage
//
//	b, err := ircline.NewBroadcaster(ircline.Config{
//	    Shards:            4,
//	    NewCircuitBreaker: ircline.NewCircuitBreakerConfig(1, time.Minute, 10*time.Second),
//	})
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	msg := msgbuf.NewMessage().
//	    AddTag("account", "alice", capAccountTag).
//	    SetOrigin("alice!a@host").
//	    SetCommand("PRIVMSG").
//	    SetTarget("#chan")
//
//	err = b.Send(ctx, msg, ":hello there", members...)
//
// # Ordering
//
// Lines to one recipient are written in Send order by a single goroutine.
// There is no ordering between recipients.
//
// # Failures
//
// A recipient whose writes fail is not removed: the failure is counted and
// passed to Config.OnWriteError. With a circuit breaker configured, a
// recipient that keeps failing stops receiving writes until the breaker
// half-opens; those lines are counted as dropped.
package ircline
