package msgbuf

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessage(t *testing.T) {
	input := "PING :a\r\n@a=b PRIVMSG #c :hi there\nlast line"
	r := bufio.NewReader(strings.NewReader(input))

	msg, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "a"}, msg.Params())

	msg, err = ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Key: "a", Value: "b", HasValue: true}}, msg.Tags())
	assert.Equal(t, []string{"PRIVMSG", "#c", "hi there"}, msg.Params())

	msg, err = ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"last", "line"}, msg.Params())

	_, err = ReadMessage(r)
	assert.Equal(t, io.EOF, err)
}

func TestReadMessage_MalformedLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(":origin\r\nPING x\r\n"))

	_, err := ReadMessage(r)
	require.ErrorIs(t, err, ErrMalformedOrigin)
	assert.False(t, ShouldCloseConnection(err))

	// The stream goes on after a bad line
	msg, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "x"}, msg.Params())
}

func TestReadMessage_EmptyLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\r\n"))

	_, err := ReadMessage(r)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestReadMessage_LongLine(t *testing.T) {
	text := strings.Repeat("x", 100)
	r := bufio.NewReaderSize(strings.NewReader("PRIVMSG #chan :"+text+"\r\nPING y\r\n"), 16)

	msg, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"PRIVMSG", "#chan", text}, msg.Params())

	msg, err = ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "y"}, msg.Params())
}

func TestReadMessage_ReadError(t *testing.T) {
	boom := errors.New("boom")
	r := bufio.NewReader(iotest.ErrReader(boom))

	_, err := ReadMessage(r)
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "read", connErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ShouldCloseConnection(err))
}

func TestWriteMessage(t *testing.T) {
	msg := NewMessage().
		AddTag("account", "alice", capAccountTag).
		SetOrigin("alice!a@host").
		SetCommand("PRIVMSG").
		SetTarget("#chan").
		AddParam("hello there")

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg, 0))
	require.NoError(t, WriteMessage(&buf, msg, capAccountTag))

	assert.Equal(t,
		":alice!a@host PRIVMSG #chan :hello there\r\n"+
			"@account=alice :alice!a@host PRIVMSG #chan :hello there\r\n",
		buf.String())
}

func TestWriteMessage_Long(t *testing.T) {
	msg := NewMessage().
		AddTag("k", strings.Repeat("v", 1000), 0).
		SetCommand("PRIVMSG").
		SetTarget("#chan").
		AddParam(strings.Repeat("x", 1000))

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg, 0))

	// The oversized tag is dropped whole; the data is cut
	assert.Len(t, buf.String(), DataLen+len(CRLF))
	assert.True(t, strings.HasSuffix(buf.String(), "x\r\n"))
}

func TestWriteMessagef(t *testing.T) {
	msg := NewMessage().SetOrigin("srv").SetCommand("NOTICE").SetTarget("*")

	var buf bytes.Buffer
	require.NoError(t, WriteMessagef(&buf, msg, 0, ":%d%%", 42))
	assert.Equal(t, ":srv NOTICE * :42%\r\n", buf.String())
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestWriteMessage_Error(t *testing.T) {
	boom := errors.New("broken pipe")
	msg := NewMessage().SetCommand("PING")

	for _, err := range []error{
		WriteMessage(failingWriter{boom}, msg, 0),
		WriteMessagef(failingWriter{boom}, msg, 0, "x"),
	} {
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, "write", connErr.Op)
		assert.ErrorIs(t, err, boom)
		assert.True(t, ShouldCloseConnection(err))
		assert.Equal(t, "connection error during write: broken pipe", err.Error())
	}
}

func TestShouldCloseConnection(t *testing.T) {
	assert.False(t, ShouldCloseConnection(nil))
	assert.False(t, ShouldCloseConnection(errEmptyCommand))
	assert.True(t, ShouldCloseConnection(&ConnectionError{Op: "read", Err: io.ErrUnexpectedEOF}))
	assert.True(t, ShouldCloseConnection(errors.New("unknown")))
}

func TestParseErrorCode_String(t *testing.T) {
	assert.Equal(t, "malformed tags", CodeMalformedTags.String())
	assert.Equal(t, "malformed origin", CodeMalformedOrigin.String())
	assert.Equal(t, "code 9", ParseErrorCode(9).String())
	assert.Equal(t, "parse error: msgbuf: empty command", errEmptyCommand.Error())
}
