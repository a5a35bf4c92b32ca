package ircline

import (
	"io"

	"github.com/pior/ircline/msgbuf"
)

// Recipient is one destination of a broadcast, typically a client connection.
//
// Write receives one complete line, CRLF included, per call. Writes to the
// same Recipient are never concurrent and keep the order of the Send calls
// that produced them.
type Recipient interface {
	io.Writer

	// ID identifies the recipient. It picks the delivery shard and the
	// circuit breaker, so it must be stable.
	ID() string

	// Caps returns the capabilities negotiated by the recipient.
	Caps() msgbuf.CapMask
}

type writerRecipient struct {
	io.Writer
	id   string
	caps msgbuf.CapMask
}

func (r *writerRecipient) ID() string           { return r.id }
func (r *writerRecipient) Caps() msgbuf.CapMask { return r.caps }

// NewRecipient wraps w as a Recipient.
func NewRecipient(id string, caps msgbuf.CapMask, w io.Writer) Recipient {
	return &writerRecipient{Writer: w, id: id, caps: caps}
}
