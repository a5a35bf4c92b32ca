package msgbuf

import (
	"strconv"
	"strings"
)

// span locates one token inside the Message arena.
// The zero span is an absent token.
type span struct {
	off int
	n   int
	set bool
}

var absent = span{}

func (s span) ok() bool { return s.set }

type tagSpan struct {
	key   span
	value span
	caps  CapMask
}

// Tag is a decoded IRCv3 message tag.
type Tag struct {
	Key string

	// Value is the unescaped value. It is only meaningful when HasValue is true.
	Value string

	// HasValue is false for a bare tag ("key"), true for "key=" and "key=value".
	HasValue bool

	// Caps is the capability mask required to see this tag. Zero means always visible.
	Caps CapMask
}

// Message is a parsed or constructed protocol line.
//
// All string data lives in one arena owned by the Message. Parse copies the
// input line into it once, and the builder methods append to it, so a Message
// never aliases a caller buffer.
//
// For a parsed Message, Command is the first parameter. For a Message built
// for sending, Command and Target are rendered in the prefix and the
// parameters follow them.
//
// A Message is not safe for concurrent mutation.
type Message struct {
	buf []byte

	tags  [MaxTags]tagSpan
	nTags int

	origin  span
	command span
	target  span

	params  [MaxParams]span
	nParams int
}

// NewMessage returns an empty Message. The zero value is also ready to use.
func NewMessage() *Message {
	return &Message{}
}

// Reset clears the Message, keeping the arena for reuse.
func (m *Message) Reset() {
	m.buf = m.buf[:0]
	m.nTags = 0
	m.nParams = 0
	m.origin = absent
	m.command = absent
	m.target = absent
}

func (m *Message) store(s string) span {
	off := len(m.buf)
	m.buf = append(m.buf, s...)
	return span{off: off, n: len(s), set: true}
}

func (m *Message) bytes(s span) []byte {
	if !s.ok() {
		return nil
	}
	return m.buf[s.off : s.off+s.n]
}

func (m *Message) str(s span) string {
	if !s.ok() {
		return ""
	}
	return string(m.buf[s.off : s.off+s.n])
}

func (m *Message) appendTag(t tagSpan) {
	if m.nTags < MaxTags {
		m.tags[m.nTags] = t
		m.nTags++
	}
}

// --- Builder methods ---
// All builder methods return *Message for fluent chaining:
//   m := NewMessage().SetCommand("PRIVMSG").SetTarget("#chan").AddParam("hi")

// AddTag appends a tag with a value. An empty value renders as "key=".
// Tags beyond MaxTags are dropped.
func (m *Message) AddTag(key, value string, caps CapMask) *Message {
	m.appendTag(tagSpan{key: m.store(key), value: m.store(value), caps: caps})
	return m
}

// AddBareTag appends a tag without a value, rendered as "key".
func (m *Message) AddBareTag(key string, caps CapMask) *Message {
	m.appendTag(tagSpan{key: m.store(key), value: absent, caps: caps})
	return m
}

// SetOrigin sets the sender, rendered as ":origin". Without one the server
// name is used.
func (m *Message) SetOrigin(origin string) *Message { m.origin = m.store(origin); return m }

// SetCommand sets the verb rendered after the origin.
func (m *Message) SetCommand(cmd string) *Message { m.command = m.store(cmd); return m }

// SetTarget sets the token rendered after the command.
func (m *Message) SetTarget(target string) *Message { m.target = m.store(target); return m }

// AddParam appends a parameter. Parameters beyond MaxParams are dropped.
func (m *Message) AddParam(param string) *Message {
	if m.nParams < MaxParams {
		m.params[m.nParams] = m.store(param)
		m.nParams++
	}
	return m
}

// AddParams appends each parameter in order.
func (m *Message) AddParams(params ...string) *Message {
	for _, p := range params {
		m.AddParam(p)
	}
	return m
}

// --- Accessors ---

// NumTags returns the number of tags, at most MaxTags.
func (m *Message) NumTags() int { return m.nTags }

// NumParams returns the number of parameters, at most MaxParams.
func (m *Message) NumParams() int { return m.nParams }

// Tag returns the i-th tag.
func (m *Message) Tag(i int) Tag {
	t := m.tags[i]
	return Tag{
		Key:      m.str(t.key),
		Value:    m.str(t.value),
		HasValue: t.value.ok(),
		Caps:     t.caps,
	}
}

// Tags returns a copy of all tags in order.
func (m *Message) Tags() []Tag {
	tags := make([]Tag, m.nTags)
	for i := range tags {
		tags[i] = m.Tag(i)
	}
	return tags
}

// LookupTag returns the first tag named key.
func (m *Message) LookupTag(key string) (Tag, bool) {
	for i := 0; i < m.nTags; i++ {
		if string(m.bytes(m.tags[i].key)) == key {
			return m.Tag(i), true
		}
	}
	return Tag{}, false
}

// Origin returns the sender prefix, without the leading ':'.
func (m *Message) Origin() (string, bool) { return m.str(m.origin), m.origin.ok() }

// Command returns the verb. For a parsed Message it is the first parameter.
func (m *Message) Command() (string, bool) { return m.str(m.command), m.command.ok() }

// Target returns the token set with SetTarget. Parse never sets it.
func (m *Message) Target() (string, bool) { return m.str(m.target), m.target.ok() }

// Param returns the i-th parameter.
func (m *Message) Param(i int) string { return m.str(m.params[i]) }

// Params returns a copy of all parameters in order.
func (m *Message) Params() []string {
	params := make([]string, m.nParams)
	for i := range params {
		params[i] = m.Param(i)
	}
	return params
}

// OverallCaps returns the union of all tag capability masks.
func (m *Message) OverallCaps() CapMask {
	var caps CapMask
	for i := 0; i < m.nTags; i++ {
		caps |= m.tags[i].caps
	}
	return caps
}

// Line renders the Message for a recipient with the given capabilities,
// without CRLF.
func (m *Message) Line(capmask CapMask) []byte {
	buf := make([]byte, LineLen)
	return buf[:Unparse(buf, m, capmask)]
}

// String returns a debug representation. Tag values are quoted.
func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString("Msg<tags=[")
	for i := 0; i < m.nTags; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		t := m.Tag(i)
		sb.WriteString(t.Key)
		if t.HasValue {
			sb.WriteByte('=')
			sb.WriteString(strconv.Quote(t.Value))
		}
	}
	sb.WriteString("]")
	if origin, ok := m.Origin(); ok {
		sb.WriteString(",origin=")
		sb.WriteString(origin)
	}
	if cmd, ok := m.Command(); ok {
		sb.WriteString(",cmd=")
		sb.WriteString(cmd)
	}
	if target, ok := m.Target(); ok {
		sb.WriteString(",target=")
		sb.WriteString(target)
	}
	sb.WriteString(",params=")
	sb.WriteString(strconv.Itoa(m.nParams))
	sb.WriteString(">")
	return sb.String()
}
