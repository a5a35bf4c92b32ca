package msgbuf

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Tags(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		tags   []Tag
		params []string
	}{
		{
			name:   "tag with value",
			line:   "@tag=value PRIVMSG #test :test",
			tags:   []Tag{{Key: "tag", Value: "value", HasValue: true}},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name:   "bare tag",
			line:   "@tag PRIVMSG #test :test",
			tags:   []Tag{{Key: "tag"}},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name:   "empty value",
			line:   "@tag= PRIVMSG #test :test",
			tags:   []Tag{{Key: "tag", HasValue: true}},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name:   "empty key is discarded",
			line:   "@=value PRIVMSG #test :test",
			tags:   []Tag{},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name: "several tags",
			line: "@a=1;b;c=3 PRIVMSG #test :test",
			tags: []Tag{
				{Key: "a", Value: "1", HasValue: true},
				{Key: "b"},
				{Key: "c", Value: "3", HasValue: true},
			},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			// '=' in the next token does not bind to the bare tag
			name: "bare tag before valued tag",
			line: "@tag;foo=bar PRIVMSG #test :test",
			tags: []Tag{
				{Key: "tag"},
				{Key: "foo", Value: "bar", HasValue: true},
			},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name: "empty value before bare tag",
			line: "@tag=;foo PRIVMSG #test :test",
			tags: []Tag{
				{Key: "tag", HasValue: true},
				{Key: "foo"},
			},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name: "value keeps later equal signs",
			line: "@tag=a=b PRIVMSG #test :test",
			tags: []Tag{
				{Key: "tag", Value: "a=b", HasValue: true},
			},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name:   "empty tokens are skipped",
			line:   "@;;a;; PRIVMSG #test :test",
			tags:   []Tag{{Key: "a"}},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name:   "lone marker",
			line:   "@ PRIVMSG #test :test",
			tags:   []Tag{},
			params: []string{"PRIVMSG", "#test", "test"},
		},
		{
			name:   "escaped value",
			line:   `@tag=\:\s\\\r\n PRIVMSG #test :test`,
			tags:   []Tag{{Key: "tag", Value: "; \\\r\n", HasValue: true}},
			params: []string{"PRIVMSG", "#test", "test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseString(tt.line)
			require.NoError(t, err)

			assert.Equal(t, tt.tags, msg.Tags())
			assert.Equal(t, tt.params, msg.Params())

			cmd, ok := msg.Command()
			assert.True(t, ok)
			assert.Equal(t, "PRIVMSG", cmd)
		})
	}
}

func TestParse_Origin(t *testing.T) {
	msg, err := ParseString(":nick!user@host PRIVMSG #test :hello world")
	require.NoError(t, err)

	origin, ok := msg.Origin()
	assert.True(t, ok)
	assert.Equal(t, "nick!user@host", origin)
	assert.Equal(t, []string{"PRIVMSG", "#test", "hello world"}, msg.Params())
	assert.Equal(t, 0, msg.NumTags())
}

func TestParse_NoOrigin(t *testing.T) {
	msg, err := ParseString("PING :irc.example.net")
	require.NoError(t, err)

	_, ok := msg.Origin()
	assert.False(t, ok)
	assert.Equal(t, []string{"PING", "irc.example.net"}, msg.Params())
}

func TestParse_TagsAndOrigin(t *testing.T) {
	msg, err := ParseString("@time=2024-01-01T00:00:00.000Z :irc.example.net NOTICE * :hi")
	require.NoError(t, err)

	tag, ok := msg.LookupTag("time")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", tag.Value)

	origin, _ := msg.Origin()
	assert.Equal(t, "irc.example.net", origin)
	assert.Equal(t, []string{"NOTICE", "*", "hi"}, msg.Params())
}

func TestParse_Params(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		params []string
	}{
		{
			name:   "command only",
			line:   "QUIT",
			params: []string{"QUIT"},
		},
		{
			name:   "leading spaces",
			line:   "   PING x",
			params: []string{"PING", "x"},
		},
		{
			name:   "runs of spaces",
			line:   "MODE   #chan    +o   nick",
			params: []string{"MODE", "#chan", "+o", "nick"},
		},
		{
			name:   "trailing spaces",
			line:   "MODE #chan   ",
			params: []string{"MODE", "#chan"},
		},
		{
			name:   "trailing keeps spaces",
			line:   "PRIVMSG #chan :a  b :c ",
			params: []string{"PRIVMSG", "#chan", "a  b :c "},
		},
		{
			name:   "empty trailing",
			line:   "TOPIC #chan :",
			params: []string{"TOPIC", "#chan", ""},
		},
		{
			name:   "colon inside a middle param",
			line:   "CMD a:b c",
			params: []string{"CMD", "a:b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseString(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.params, msg.Params())
		})
	}
}

func TestParse_MaxParams(t *testing.T) {
	t.Run("fifteenth takes the rest", func(t *testing.T) {
		line := "CMD 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 :17 18"
		msg, err := ParseString(line)
		require.NoError(t, err)

		require.Equal(t, MaxParams, msg.NumParams())
		assert.Equal(t, "13", msg.Param(13))
		assert.Equal(t, "14 15 16 :17 18", msg.Param(14))
	})

	t.Run("fifteenth loses one colon", func(t *testing.T) {
		line := "CMD 1 2 3 4 5 6 7 8 9 10 11 12 13 :14 15"
		msg, err := ParseString(line)
		require.NoError(t, err)

		require.Equal(t, MaxParams, msg.NumParams())
		assert.Equal(t, "14 15", msg.Param(14))
	})

	t.Run("fifteenth keeps extra separators", func(t *testing.T) {
		line := "CMD 1 2 3 4 5 6 7 8 9 10 11 12 13   14"
		msg, err := ParseString(line)
		require.NoError(t, err)

		require.Equal(t, MaxParams, msg.NumParams())
		assert.Equal(t, "  14", msg.Param(14))
	})

	t.Run("exactly fifteen", func(t *testing.T) {
		line := "CMD 1 2 3 4 5 6 7 8 9 10 11 12 13 14"
		msg, err := ParseString(line)
		require.NoError(t, err)

		require.Equal(t, MaxParams, msg.NumParams())
		assert.Equal(t, "14", msg.Param(14))
	})
}

func TestParse_MaxTags(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("@")
	for i := range 20 {
		if i > 0 {
			sb.WriteString(";")
		}
		sb.WriteString("t")
		sb.WriteString(strings.Repeat("x", i))
	}
	sb.WriteString(" PING")

	msg, err := ParseString(sb.String())
	require.NoError(t, err)

	require.Equal(t, MaxTags, msg.NumTags())
	assert.Equal(t, "t", msg.Tag(0).Key)
	assert.Equal(t, "t"+strings.Repeat("x", 14), msg.Tag(14).Key)
}

func TestParse_TagTruncation(t *testing.T) {
	t.Run("separator past the budget", func(t *testing.T) {
		// 600 bytes of tag data: the section is cut at byte 511 and the
		// remaining tag bytes become the command.
		line := "@" + strings.Repeat("a", 600) + " PRIVMSG #x :y"
		msg, err := ParseString(line)
		require.NoError(t, err)

		require.Equal(t, 1, msg.NumTags())
		assert.Equal(t, strings.Repeat("a", TagsLen-2), msg.Tag(0).Key)
		assert.Equal(t, []string{strings.Repeat("a", 89), "PRIVMSG", "#x", "y"}, msg.Params())
	})

	t.Run("separator at the last allowed byte", func(t *testing.T) {
		line := "@" + strings.Repeat("a", TagsLen-2) + " PING"
		require.Equal(t, TagsLen-1, strings.IndexByte(line, ' '))

		msg, err := ParseString(line)
		require.NoError(t, err)

		assert.Equal(t, strings.Repeat("a", TagsLen-2), msg.Tag(0).Key)
		assert.Equal(t, []string{"PING"}, msg.Params())
	})

	t.Run("separator one byte too far", func(t *testing.T) {
		line := "@" + strings.Repeat("a", TagsLen-1) + " PING"
		msg, err := ParseString(line)

		// Byte 511 is consumed as the separator, leaving " PING" as data
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("a", TagsLen-2), msg.Tag(0).Key)
		assert.Equal(t, []string{"PING"}, msg.Params())
	})

	t.Run("value cut at the budget", func(t *testing.T) {
		line := "@k=" + strings.Repeat("v", 700) + " PING"
		msg, err := ParseString(line)
		require.NoError(t, err)

		tag := msg.Tag(0)
		assert.Equal(t, "k", tag.Key)
		assert.Len(t, tag.Value, TagsLen-4)
	})

	t.Run("no separator in a long line", func(t *testing.T) {
		line := "@" + strings.Repeat("a", TagsLen+10)
		msg, err := ParseString(line)
		require.NoError(t, err)

		assert.Equal(t, []string{strings.Repeat("a", 11)}, msg.Params())
	})
}

func TestParse_DataTruncation(t *testing.T) {
	t.Run("without tags", func(t *testing.T) {
		line := "PRIVMSG #test :" + strings.Repeat("x", 600)
		msg, err := ParseString(line)
		require.NoError(t, err)

		assert.Equal(t, strings.Repeat("x", DataLen-len("PRIVMSG #test :")), msg.Param(2))
	})

	t.Run("with tags", func(t *testing.T) {
		tags := "@a=b "
		line := tags + "PRIVMSG #test :" + strings.Repeat("x", 600)
		msg, err := ParseString(line)
		require.NoError(t, err)

		assert.Equal(t, strings.Repeat("x", DataLen-len("PRIVMSG #test :")), msg.Param(2))
	})

	t.Run("exactly the budget", func(t *testing.T) {
		line := "PRIVMSG #test :" + strings.Repeat("x", DataLen-len("PRIVMSG #test :"))
		require.Len(t, line, DataLen)

		msg, err := ParseString(line)
		require.NoError(t, err)
		assert.Len(t, msg.Param(2), DataLen-len("PRIVMSG #test :"))
	})

	t.Run("origin split by the cut", func(t *testing.T) {
		line := ":" + strings.Repeat("o", 600) + " PING"
		_, err := ParseString(line)
		assert.ErrorIs(t, err, ErrMalformedOrigin)
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
		code ParseErrorCode
	}{
		{"tags without message", "@tag=value", ErrMalformedTags, CodeMalformedTags},
		{"lone tag marker", "@", ErrMalformedTags, CodeMalformedTags},
		{"empty line", "", ErrEmptyCommand, CodeEmptyCommand},
		{"tags then nothing", "@tag=value ", ErrEmptyCommand, CodeEmptyCommand},
		{"origin then nothing", ":origin ", ErrEmptyCommand, CodeEmptyCommand},
		{"only spaces", "    ", ErrNoParameters, CodeNoParameters},
		{"tags then spaces", "@a    ", ErrNoParameters, CodeNoParameters},
		{"origin then spaces", ":origin    ", ErrNoParameters, CodeNoParameters},
		{"origin alone", ":origin", ErrMalformedOrigin, CodeMalformedOrigin},
		{"tags then origin alone", "@a=b :origin", ErrMalformedOrigin, CodeMalformedOrigin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseString(tt.line)
			require.Error(t, err)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.want)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.code, perr.Code)
			assert.False(t, ShouldCloseConnection(err))
		})
	}
}

func TestParse_CopiesInput(t *testing.T) {
	line := []byte("@k=v\\s1 :origin PRIVMSG #test :hello")
	msg, err := Parse(line)
	require.NoError(t, err)

	for i := range line {
		line[i] = 'X'
	}

	assert.Equal(t, "v 1", msg.Tag(0).Value)
	origin, _ := msg.Origin()
	assert.Equal(t, "origin", origin)
	assert.Equal(t, []string{"PRIVMSG", "#test", "hello"}, msg.Params())
}

func TestMessage_ParseReuse(t *testing.T) {
	var msg Message

	require.NoError(t, msg.Parse([]byte("@a=1;b=2 :first CMD1 x y z")))
	require.NoError(t, msg.Parse([]byte("CMD2 :only")))

	assert.Equal(t, 0, msg.NumTags())
	_, ok := msg.Origin()
	assert.False(t, ok)
	assert.Equal(t, []string{"CMD2", "only"}, msg.Params())
}
