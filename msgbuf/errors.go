package msgbuf

import (
	"errors"
	"fmt"
)

// Error types for message buffer operations.
// Parse errors are local to one line: the caller drops the line and keeps
// reading from the same connection.

// Sentinel parse errors, matched with errors.Is.
var (
	// ErrMalformedTags means the line starts a tag section that never ends.
	ErrMalformedTags = errors.New("msgbuf: tags without a message")

	// ErrEmptyCommand means nothing follows the tags or the origin.
	ErrEmptyCommand = errors.New("msgbuf: empty command")

	// ErrNoParameters means the data section holds only spaces.
	ErrNoParameters = errors.New("msgbuf: no parameters")

	// ErrMalformedOrigin means the line is an origin with nothing after it.
	ErrMalformedOrigin = errors.New("msgbuf: origin without a command")
)

// ParseErrorCode is the numeric code of a parse failure.
type ParseErrorCode int

const (
	CodeMalformedTags   ParseErrorCode = 1
	CodeEmptyCommand    ParseErrorCode = 2
	CodeNoParameters    ParseErrorCode = 3
	CodeMalformedOrigin ParseErrorCode = 4
)

func (c ParseErrorCode) String() string {
	switch c {
	case CodeMalformedTags:
		return "malformed tags"
	case CodeEmptyCommand:
		return "empty command"
	case CodeNoParameters:
		return "no parameters"
	case CodeMalformedOrigin:
		return "malformed origin"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// ParseError is returned by Parse when a line cannot be turned into a Message.
// No part of the Message is usable after a ParseError.
//
// Connection handling: the line is DROPPED, the connection stays open.
type ParseError struct {
	Code ParseErrorCode
	Err  error // One of the sentinel errors above
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Err.Error()
}

// Unwrap returns the sentinel error for errors.Is
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - a bad line does not break the stream
func (e *ParseError) ShouldCloseConnection() bool {
	return false
}

var (
	errMalformedTags   = &ParseError{Code: CodeMalformedTags, Err: ErrMalformedTags}
	errEmptyCommand    = &ParseError{Code: CodeEmptyCommand, Err: ErrEmptyCommand}
	errNoParameters    = &ParseError{Code: CodeNoParameters, Err: ErrNoParameters}
	errMalformedOrigin = &ParseError{Code: CodeMalformedOrigin, Err: ErrMalformedOrigin}
)

// ConnectionError wraps I/O errors from ReadMessage and WriteMessage.
//
// Connection handling: the connection is broken, CLOSE it.
type ConnectionError struct {
	Op  string // Operation that failed (read, write)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the stream is unusable
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all msgbuf error types.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil and *ParseError, true for *ConnectionError and for
// unknown error types.
//
// Usage:
//
//	msg, err := msgbuf.ReadMessage(r)
//	if err != nil {
//	    if msgbuf.ShouldCloseConnection(err) {
//	        conn.Close()
//	        return err
//	    }
//	    continue // drop the line
//	}
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
