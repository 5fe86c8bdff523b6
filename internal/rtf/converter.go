package rtf

import (
	"strings"
	"unicode/utf8"
)

// Destinations whose content is never part of the document text.
var skipDestinations = map[string]bool{
	"fonttbl":            true,
	"colortbl":           true,
	"stylesheet":         true,
	"info":               true,
	"pict":               true,
	"header":             true,
	"headerl":            true,
	"headerr":            true,
	"headerf":            true,
	"footer":             true,
	"footerl":            true,
	"footerr":            true,
	"footerf":            true,
	"object":             true,
	"fldinst":            true,
	"themedata":          true,
	"colorschememapping": true,
	"latentstyles":       true,
	"datastore":          true,
	"listtable":          true,
	"listoverridetable":  true,
	"rsidtbl":            true,
	"generator":          true,
	"xmlnstbl":           true,
	"mmathPr":            true,
	"filetbl":            true,
	"revtbl":             true,
	"pgdsctbl":           true,
}

var symbols = map[string]string{
	"par":       "\n",
	"line":      "\n",
	"sect":      "\n",
	"page":      "\n",
	"row":       "\n",
	"tab":       "\t",
	"cell":      "\t",
	"emdash":    "—",
	"endash":    "–",
	"bullet":    "•",
	"lquote":    "‘",
	"rquote":    "’",
	"ldblquote": "“",
	"rdblquote": "”",
	"emspace":   " ",
	"enspace":   " ",
	"qmspace":   " ",
}

type group struct {
	skip bool
	uc   int
}

type converter struct {
	data  []byte
	pos   int
	stack []group
	cur   group
	// characters still to drop after a \u escape
	pending int
	out     strings.Builder
}

func newConverter(data []byte) *converter {
	return &converter{data: data, cur: group{uc: 1}}
}

func (c *converter) run() {
	for c.pos < len(c.data) {
		ch := c.data[c.pos]
		switch ch {
		case '{':
			c.stack = append(c.stack, c.cur)
			c.pending = 0
			c.pos++
		case '}':
			if n := len(c.stack); n > 0 {
				c.cur = c.stack[n-1]
				c.stack = c.stack[:n-1]
			}
			c.pending = 0
			c.pos++
		case '\\':
			c.control()
		case '\r', '\n':
			c.pos++
		default:
			r, size := utf8.DecodeRune(c.data[c.pos:])
			if r == utf8.RuneError && size <= 1 {
				c.text(decodeByte(ch))
				c.pos++
				continue
			}
			c.text(string(r))
			c.pos += size
		}
	}
}

// control handles the token starting at a backslash.
func (c *converter) control() {
	c.pos++
	if c.pos >= len(c.data) {
		return
	}

	ch := c.data[c.pos]
	switch {
	case ch == '\\' || ch == '{' || ch == '}':
		c.text(string(ch))
		c.pos++
	case ch == '\'':
		c.hex()
	case ch == '*':
		c.cur.skip = true
		c.pos++
	case ch == '~':
		c.text(" ")
		c.pos++
	case ch == '_':
		c.text("-")
		c.pos++
	case ch == '-':
		c.pos++
	case ch == '\r' || ch == '\n':
		c.emit("\n")
		c.pos++
	case isLetter(ch):
		c.word()
	default:
		c.pos++
	}
}

func (c *converter) hex() {
	c.pos++
	if c.pos+2 > len(c.data) {
		c.pos = len(c.data)
		return
	}
	b, ok := parseHex(c.data[c.pos], c.data[c.pos+1])
	c.pos += 2
	if !ok {
		return
	}
	c.text(decodeByte(b))
}

func (c *converter) word() {
	start := c.pos
	for c.pos < len(c.data) && isLetter(c.data[c.pos]) {
		c.pos++
	}
	name := string(c.data[start:c.pos])

	hasParam := false
	negative := false
	param := 0
	if c.pos < len(c.data) && c.data[c.pos] == '-' {
		negative = true
		c.pos++
	}
	for c.pos < len(c.data) && c.data[c.pos] >= '0' && c.data[c.pos] <= '9' {
		hasParam = true
		param = param*10 + int(c.data[c.pos]-'0')
		c.pos++
	}
	if negative {
		param = -param
	}
	if c.pos < len(c.data) && c.data[c.pos] == ' ' {
		c.pos++
	}

	switch {
	case skipDestinations[name]:
		c.cur.skip = true
	case name == "uc" && hasParam:
		c.cur.uc = param
	case name == "u" && hasParam:
		if param < 0 {
			param += 65536
		}
		c.emit(string(rune(param)))
		c.pending = c.cur.uc
	default:
		if s, ok := symbols[name]; ok {
			c.emit(s)
		}
	}
}

// text writes document characters, honouring the \uc fallback skip.
func (c *converter) text(s string) {
	if c.pending > 0 {
		c.pending--
		return
	}
	c.emit(s)
}

func (c *converter) emit(s string) {
	if c.cur.skip {
		return
	}
	c.out.WriteString(s)
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func parseHex(hi, lo byte) (byte, bool) {
	h, ok1 := hexValue(hi)
	l, ok2 := hexValue(lo)
	return h<<4 | l, ok1 && ok2
}

func hexValue(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
