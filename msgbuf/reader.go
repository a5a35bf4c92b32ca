package msgbuf

import (
	"bufio"
	"bytes"
	"io"
)

// ReadMessage reads one line from r and parses it.
// The line terminator (CRLF or a bare LF) is stripped before parsing.
//
// Returns:
//   - io.EOF when the stream ends between lines
//   - *ConnectionError for other read failures, connection should be closed
//   - *ParseError for a malformed line, the line should be dropped
//
// Uses ReadSlice to avoid an allocation per line; Parse copies the line into
// the Message.
func ReadMessage(r *bufio.Reader) (*Message, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Line exceeds buffer, fall back to ReadBytes (allocates).
		// The slice is only valid until the next read.
		head := append([]byte(nil), line...)
		var rest []byte
		rest, err = r.ReadBytes('\n')
		line = append(head, rest...)
	}
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		if err != io.EOF {
			return nil, &ConnectionError{Op: "read", Err: err}
		}
		// Last line without terminator
	}

	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})

	return Parse(line)
}
