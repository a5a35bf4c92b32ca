package msgbuf

import "bytes"

// Parse parses one protocol line, without its line terminator, into a new
// Message. The line is copied; the caller may reuse it immediately.
//
// Line format: ['@' tags ' '] [':' origin ' '] command [params...]
//
// Over-long input is truncated, not rejected:
//   - a tag section longer than TagsLen is cut at byte TagsLen-1
//   - a data section longer than DataLen is cut to DataLen bytes
//
// Returned errors are *ParseError wrapping ErrMalformedTags, ErrEmptyCommand,
// ErrNoParameters or ErrMalformedOrigin.
func Parse(line []byte) (*Message, error) {
	m := &Message{}
	if err := m.Parse(line); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseString is Parse for a string line.
func ParseString(line string) (*Message, error) {
	return Parse([]byte(line))
}

// Parse resets m and parses line into it, reusing the arena.
// On error the content of m is undefined.
func (m *Message) Parse(line []byte) error {
	m.Reset()
	m.buf = append(m.buf[:0], line...)
	b := m.buf

	pos := 0
	if len(b) > 0 && b[0] == tagsMarker {
		end := bytes.IndexByte(b, ' ')

		// Truncate the tag section; the byte at the cut is lost.
		if (end >= 0 && end+1 > TagsLen) || (end < 0 && len(b) >= TagsLen) {
			end = TagsLen - 1
		}
		if end < 0 {
			return errMalformedTags
		}

		m.parseTags(b, 1, end)
		pos = end + 1
	}

	limit := len(b)
	if limit-pos > DataLen {
		limit = pos + DataLen
	}

	if pos < limit && b[pos] == originMarker {
		pos++
		sp := bytes.IndexByte(b[pos:limit], ' ')
		if sp < 0 {
			return errMalformedOrigin
		}
		m.origin = span{off: pos, n: sp, set: true}
		pos += sp + 1
	}

	if pos >= limit {
		return errEmptyCommand
	}

	m.parseParams(b, pos, limit)
	if m.nParams == 0 {
		return errNoParameters
	}

	m.command = m.params[0]
	return nil
}

// parseTags splits b[start:end] on ';' into tags. A token holds a value only
// if it contains '=' itself; an '=' in a later token never binds to it.
// Tokens with an empty key are discarded.
func (m *Message) parseTags(b []byte, start, end int) {
	t := start
	for {
		tokEnd := end
		next := bytes.IndexByte(b[t:end], tagSep)
		if next >= 0 {
			tokEnd = t + next
		}

		tag := tagSpan{key: span{off: t, n: tokEnd - t, set: true}}
		if eq := bytes.IndexByte(b[t:tokEnd], tagValueSep); eq >= 0 {
			tag.key.n = eq
			voff := t + eq + 1
			tag.value = span{off: voff, n: unescapeInPlace(b[voff:tokEnd]), set: true}
		}

		if tag.key.n > 0 {
			m.appendTag(tag)
		}

		if next < 0 {
			return
		}
		t = tokEnd + 1
	}
}

// parseParams splits b[pos:limit] into at most MaxParams parameters.
//
// Leading spaces and runs of spaces are skipped. A token starting with ':'
// takes the rest of the line. Once MaxParams-1 tokens are taken, the rest of
// the line starting right after the last separator becomes the final
// parameter, with one leading ':' removed.
func (m *Message) parseParams(b []byte, pos, limit int) {
	s := skipSpaces(b, pos, limit)
	if s == limit {
		return
	}

	var rest int
	for {
		if b[s] == trailMarker {
			m.params[m.nParams] = span{off: s + 1, n: limit - s - 1, set: true}
			m.nParams++
			return
		}

		sp := bytes.IndexByte(b[s:limit], ' ')
		if sp < 0 {
			m.params[m.nParams] = span{off: s, n: limit - s, set: true}
			m.nParams++
			return
		}
		m.params[m.nParams] = span{off: s, n: sp, set: true}
		m.nParams++

		rest = s + sp + 1
		s = skipSpaces(b, rest, limit)
		if s == limit {
			return
		}
		if m.nParams == MaxParams-1 {
			break
		}
	}

	if b[rest] == trailMarker {
		rest++
	}
	m.params[m.nParams] = span{off: rest, n: limit - rest, set: true}
	m.nParams++
}

func skipSpaces(b []byte, pos, limit int) int {
	for pos < limit && b[pos] == ' ' {
		pos++
	}
	return pos
}
