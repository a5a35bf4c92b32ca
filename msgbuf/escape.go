package msgbuf

// Tag values reserve five bytes, each written as a backslash sequence.
//
//	';'  -> `\:`
//	' '  -> `\s`
//	'\\' -> `\\`
//	CR   -> `\r`
//	LF   -> `\n`
var tagEscapeTable = [256]byte{
	';':  ':',
	' ':  's',
	'\\': '\\',
	'\r': 'r',
	'\n': 'n',
}

var tagUnescapeTable = [256]byte{
	':':  ';',
	's':  ' ',
	'\\': '\\',
	'r':  '\r',
	'n':  '\n',
}

// escapedLen returns the size of v once escaped.
func escapedLen(v []byte) int {
	n := len(v)
	for _, c := range v {
		if tagEscapeTable[c] != 0 {
			n++
		}
	}
	return n
}

// appendEscaped appends the escaped form of v to dst.
func appendEscaped(dst, v []byte) []byte {
	for _, c := range v {
		if e := tagEscapeTable[c]; e != 0 {
			dst = append(dst, '\\', e)
		} else {
			dst = append(dst, c)
		}
	}
	return dst
}

// unescapeInPlace rewrites v with its escapes resolved and returns the new
// length. A backslash before an unknown byte is dropped and the byte kept;
// a backslash at the end is dropped.
func unescapeInPlace(v []byte) int {
	out := 0
	for in := 0; in < len(v); in++ {
		c := v[in]
		if c == '\\' {
			in++
			if in == len(v) {
				break
			}
			c = v[in]
			if u := tagUnescapeTable[c]; u != 0 {
				c = u
			}
		}
		v[out] = c
		out++
	}
	return out
}

// EscapeTagValue returns the wire form of a tag value.
func EscapeTagValue(value string) string {
	v := []byte(value)
	n := escapedLen(v)
	if n == len(v) {
		return value
	}
	return string(appendEscaped(make([]byte, 0, n), v))
}

// UnescapeTagValue returns the decoded form of a wire tag value.
func UnescapeTagValue(value string) string {
	v := []byte(value)
	return string(v[:unescapeInPlace(v)])
}
