package testutils

import (
	"bytes"
	"strings"
	"sync"

	"github.com/pior/ircline/msgbuf"
)

// RecipientMock is a mock recipient connection for testing.
// It records written lines and can be told to fail writes.
type RecipientMock struct {
	id   string
	caps msgbuf.CapMask

	mu       sync.Mutex
	writeBuf bytes.Buffer
	writes   int
	failNext int
	failErr  error
}

// NewRecipientMock creates a new mock recipient with the given capabilities.
func NewRecipientMock(id string, caps msgbuf.CapMask) *RecipientMock {
	return &RecipientMock{id: id, caps: caps}
}

func (m *RecipientMock) ID() string           { return m.id }
func (m *RecipientMock) Caps() msgbuf.CapMask { return m.caps }

func (m *RecipientMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	if m.failNext > 0 {
		m.failNext--
		return 0, m.failErr
	}
	return m.writeBuf.Write(b)
}

// FailNext makes the next n writes fail with err.
func (m *RecipientMock) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failNext = n
	m.failErr = err
}

// Writes returns the number of Write calls, failed ones included.
func (m *RecipientMock) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writes
}

// Written returns the raw bytes successfully written to the mock.
func (m *RecipientMock) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeBuf.String()
}

// Lines returns the written lines without their CRLF.
func (m *RecipientMock) Lines() []string {
	written := m.Written()
	if written == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(written, msgbuf.CRLF), msgbuf.CRLF)
}
