package msgbuf

import (
	"io"

	"github.com/pior/ircline/internal/bufpool"
)

var bufferPool = bufpool.New(BufSize)

// WriteMessage renders m for a recipient with capmask and writes it to w,
// CRLF included, in a single Write call.
//
// Write failures are returned as *ConnectionError.
func WriteMessage(w io.Writer, m *Message, capmask CapMask) error {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	b := *buf
	n := Unparse(b[:LineLen], m, capmask)
	n += copy(b[n:], CRLF)

	if _, err := w.Write(b[:n]); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// WriteMessagef renders the prefix of m followed by a formatted payload, and
// writes it to w with CRLF.
func WriteMessagef(w io.Writer, m *Message, capmask CapMask, format string, args ...any) error {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	b := *buf
	n := UnparseFmt(b[:LineLen], m, capmask, format, args)
	n += copy(b[n:], CRLF)

	if _, err := w.Write(b[:n]); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}
