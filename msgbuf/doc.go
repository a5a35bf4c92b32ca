// Package msgbuf implements the IRC line codec with IRCv3 message tags.
//
// It parses raw protocol lines into a Message and renders a Message back to
// a line, within the two independent size budgets of the protocol: 512 bytes
// for the tag section and 510 bytes for the rest of the line.
//
// # Wire Format
//
//	[ '@' tag (';' tag)* ' ' ]         at most TagsLen bytes, trailing space included
//	[ ':' origin ' ' ]
//	command (' ' param)* [' :' trailing]  at most DataLen bytes
//	CRLF
//
// A tag is key[=value]. Inside values the bytes ';', ' ', '\', CR and LF are
// written as `\:`, `\s`, `\\`, `\r` and `\n`.
//
// # Parsing
//
//	msg, err := msgbuf.ParseString("@time=12:00 :nick!u@h PRIVMSG #chan :hello there")
//	if err != nil {
//	    return err // *ParseError: drop the line
//	}
//	cmd, _ := msg.Command()         // "PRIVMSG"
//	params := msg.Params()          // ["PRIVMSG", "#chan", "hello there"]
//
// Parse never fails on length. Tag sections and data sections that are too
// long are cut the way a peer with fixed buffers would cut them.
//
// # Rendering
//
// Outgoing messages are built with the fluent builder and rendered once per
// recipient capability mask. Tags carry the mask of capabilities that make
// them visible:
//
//	msg := msgbuf.NewMessage().
//	    AddTag("account", "alice", capAccountTag).
//	    SetOrigin("alice!a@host").
//	    SetCommand("PRIVMSG").
//	    SetTarget("#chan").
//	    AddParam("hello there")
//
//	buf := make([]byte, msgbuf.LineLen)
//	n := msgbuf.Unparse(buf, msg, recipientCaps)
//
// Rendering never fails. What does not fit is left out: tags are dropped
// whole, the rest of the line is cut at the budget.
//
// # Fan-out
//
// Cache renders one Message for many recipients, once per distinct mask:
//
//	cache := msgbuf.NewCache()
//	cache.Init(msg, "")
//	for _, r := range recipients {
//	    r.Write(cache.Get(r.Caps()))
//	}
//	cache.Reset()
//
// # Errors
//
// Parse errors are *ParseError and wrap one of ErrMalformedTags,
// ErrEmptyCommand, ErrNoParameters and ErrMalformedOrigin. They concern one
// line only. ReadMessage and WriteMessage wrap I/O failures in
// *ConnectionError. Use ShouldCloseConnection to tell them apart.
//
// # Thread Safety
//
// Parse, Unparse and the other functions are safe for concurrent use on
// distinct messages and buffers. Message and Cache values are not safe for
// concurrent mutation.
package msgbuf
