package msgbuf

// CapMask is a bitset of negotiated client capabilities.
//
// Each tag carries the mask of capabilities that make it visible. A tag with
// a zero mask is visible to every recipient.
type CapMask uint32

// Protocol delimiters
const (
	// CRLF is the line terminator appended by the transport layer
	CRLF = "\r\n"

	// Space separates tokens
	Space = " "
)

// Protocol limits
const (
	// TagsLen is the maximum size of the tag section, including the '@'
	// and the single trailing space.
	TagsLen = 512

	// DataLen is the maximum size of the data section (origin, command and
	// parameters), excluding CRLF.
	DataLen = 510

	// LineLen is the largest line the unparser can produce, without CRLF.
	LineLen = TagsLen + DataLen

	// BufSize is the size of a buffer able to hold any line plus CRLF.
	BufSize = LineLen + len(CRLF)

	// MaxTags is the number of tags kept per message. Extra tags are dropped.
	MaxTags = 15

	// MaxParams is the number of parameters kept per message, command
	// included. Extra parameters are folded into the last one.
	MaxParams = 15

	// CacheSize is the number of rendered variants a Cache keeps.
	CacheSize = 32
)

// Wire markers
const (
	tagsMarker   = '@'
	originMarker = ':'
	tagSep       = ';'
	tagValueSep  = '='
	trailMarker  = ':'
)
