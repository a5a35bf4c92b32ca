package msgbuf

import (
	"bytes"
	"fmt"
	"sync/atomic"
)

const defaultServerName = "irc.local"

var serverName atomic.Pointer[string]

// SetServerName sets the origin used when a Message has none.
func SetServerName(name string) {
	serverName.Store(&name)
}

// ServerName returns the origin used when a Message has none.
func ServerName() string {
	if name := serverName.Load(); name != nil {
		return *name
	}
	return defaultServerName
}

// lineWriter appends to buf[:limit] and silently drops whatever does not fit.
type lineWriter struct {
	buf []byte
	n   int
}

func (w *lineWriter) WriteByte(c byte) error {
	if w.n < len(w.buf) {
		w.buf[w.n] = c
		w.n++
	}
	return nil
}

// Write always reports success so fmt keeps going; the excess is dropped.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.n += copy(w.buf[w.n:], p)
	return len(p), nil
}

func (w *lineWriter) WriteString(s string) (int, error) {
	w.n += copy(w.buf[w.n:], s)
	return len(s), nil
}

// visible reports whether a tag should be shown to a recipient with capmask.
func (t *tagSpan) visible(capmask CapMask) bool {
	return t.caps == 0 || t.caps&capmask != 0
}

// UnparseTags renders the tags visible to capmask into buf and returns the
// number of bytes written.
//
// The section is at most min(len(buf), TagsLen) bytes, trailing space
// included. Tags are kept whole: the first tag that does not fit, escapes
// counted, ends the section. With no tag written the result is 0 bytes.
func UnparseTags(buf []byte, m *Message, capmask CapMask) int {
	limit := min(len(buf), TagsLen)

	// Last byte is reserved for the trailing space
	end := limit - 1
	if end < 2 {
		return 0
	}

	commit := 0
	for i := 0; i < m.nTags; i++ {
		t := &m.tags[i]
		if !t.visible(capmask) || t.key.n == 0 {
			continue
		}

		key := m.bytes(t.key)
		value := m.bytes(t.value)

		need := 1 + len(key)
		if t.value.ok() {
			need += 1 + escapedLen(value)
		}
		if commit+need > end {
			break
		}

		out := buf[:commit]
		if commit == 0 {
			out = append(out, tagsMarker)
		} else {
			out = append(out, tagSep)
		}
		out = append(out, key...)
		if t.value.ok() {
			out = append(out, tagValueSep)
			out = appendEscaped(out, value)
		}
		commit = len(out)
	}

	if commit > 0 {
		buf[commit] = ' '
		commit++
	}
	return commit
}

// UnparsePrefix renders the tags, the origin, the command and the target,
// each followed by a space, and returns the number of bytes written.
//
// On return *buflen is the room left for the whole line: it never exceeds
// len(buf) and the data section after the tags is capped to DataLen bytes.
// Writes past *buflen are dropped silently.
func UnparsePrefix(buf []byte, buflen *int, m *Message, capmask CapMask) int {
	if *buflen > len(buf) {
		*buflen = len(buf)
	}

	used := 0
	if m.nTags > 0 {
		used = UnparseTags(buf[:min(*buflen, TagsLen)], m, capmask)
	}

	if dataMax := used + DataLen; *buflen > dataMax {
		*buflen = dataMax
	}

	w := lineWriter{buf: buf[:*buflen], n: used}

	w.WriteByte(originMarker)
	if m.origin.ok() {
		w.Write(m.bytes(m.origin))
	} else {
		w.WriteString(ServerName())
	}
	w.WriteByte(' ')

	if m.command.ok() {
		w.Write(m.bytes(m.command))
		w.WriteByte(' ')
	}

	if m.target.ok() {
		w.Write(m.bytes(m.target))
		w.WriteByte(' ')
	}

	return w.n
}

// Unparse renders m for a recipient with capmask into buf and returns the
// number of bytes written. The line has no CRLF.
//
// Parameters follow the prefix, separated by one space. The last parameter
// gets a ':' marker if and only if it contains a space. Parameters are never
// escaped. The output never exceeds len(buf).
func Unparse(buf []byte, m *Message, capmask CapMask) int {
	buflen := len(buf)
	n := UnparsePrefix(buf, &buflen, m, capmask)

	w := lineWriter{buf: buf[:buflen], n: n}
	for i := 0; i < m.nParams; i++ {
		p := m.bytes(m.params[i])
		if i > 0 {
			w.WriteByte(' ')
		}
		if i == m.nParams-1 && bytes.IndexByte(p, ' ') >= 0 {
			w.WriteByte(trailMarker)
		}
		w.Write(p)
	}
	return w.n
}

// Unparsef renders the prefix of m followed by a formatted payload in place
// of the parameters. It returns the number of bytes written.
func Unparsef(buf []byte, m *Message, capmask CapMask, format string, args ...any) int {
	return UnparseFmt(buf, m, capmask, format, args)
}

// UnparseFmt is Unparsef with the arguments passed as a slice.
func UnparseFmt(buf []byte, m *Message, capmask CapMask, format string, args []any) int {
	buflen := len(buf)
	n := UnparsePrefix(buf, &buflen, m, capmask)

	w := lineWriter{buf: buf[:buflen], n: n}
	fmt.Fprintf(&w, format, args...)
	return w.n
}
