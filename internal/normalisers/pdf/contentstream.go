package pdf

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf16"
)

// kerningGap is the TJ adjustment (thousandths of a text unit) treated as a word gap.
const kerningGap = -250

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokArray
	tokOperator
)

type token struct {
	kind  tokenKind
	num   float64
	str   string
	raw   []byte
	items []token
}

// DecodeContentStream returns the text shown by a decoded page content stream.
// fonts maps the resource names selected with Tf to their code mapping.
// Strings shown in an unknown font are read as PDFDocEncoding/Latin-1 unless
// they carry a UTF-16 BOM or look like two-byte codes with a zero high byte.
func DecodeContentStream(stream []byte, fonts map[string]*Font) string {
	d := &decoder{data: stream}
	var out textBuilder
	var operands []token
	var font *Font
	lastY, haveY := 0.0, false

	for {
		tok, ok := d.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.str {
		case "Tf":
			if len(operands) >= 2 && operands[len(operands)-2].kind == tokName {
				font = fonts[operands[len(operands)-2].str]
			}
		case "Tj":
			if raw, ok := lastString(operands); ok {
				out.text(font.decode(raw))
			}
		case "'", "\"":
			out.newline()
			if raw, ok := lastString(operands); ok {
				out.text(font.decode(raw))
			}
		case "TJ":
			if len(operands) > 0 && operands[len(operands)-1].kind == tokArray {
				for _, item := range operands[len(operands)-1].items {
					switch item.kind {
					case tokString:
						out.text(font.decode(item.raw))
					case tokNumber:
						if item.num <= kerningGap {
							out.space()
						}
					}
				}
			}
		case "T*", "ET":
			out.newline()
		case "Td", "TD":
			if len(operands) >= 2 {
				tx, ty := operands[len(operands)-2].num, operands[len(operands)-1].num
				switch {
				case ty != 0:
					out.newline()
				case tx != 0:
					out.space()
				}
			}
		case "Tm":
			if len(operands) >= 6 {
				y := operands[len(operands)-1].num
				if haveY && y != lastY {
					out.newline()
				} else {
					out.space()
				}
				lastY, haveY = y, true
			}
		case "BT":
			haveY = false
		case "ID":
			d.skipInlineImage()
		}
		operands = operands[:0]
	}

	return out.String()
}

func lastString(operands []token) ([]byte, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			return operands[i].raw, true
		}
	}
	return nil, false
}

// textBuilder collapses the separators emitted between text runs.
type textBuilder struct {
	b    strings.Builder
	last byte
}

func (t *textBuilder) text(s string) {
	if s == "" {
		return
	}
	t.b.WriteString(s)
	t.last = s[len(s)-1]
}

func (t *textBuilder) space() {
	if t.b.Len() == 0 || t.last == ' ' || t.last == '\n' {
		return
	}
	t.b.WriteByte(' ')
	t.last = ' '
}

func (t *textBuilder) newline() {
	if t.b.Len() == 0 || t.last == '\n' {
		return
	}
	t.b.WriteByte('\n')
	t.last = '\n'
}

func (t *textBuilder) String() string {
	lines := strings.Split(t.b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

type decoder struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (d *decoder) next() (token, bool) {
	for d.pos < len(d.data) {
		c := d.data[d.pos]
		switch {
		case isWhite(c):
			d.pos++
		case c == '%':
			for d.pos < len(d.data) && d.data[d.pos] != '\n' && d.data[d.pos] != '\r' {
				d.pos++
			}
		case c == '(':
			d.pos++
			return token{kind: tokString, raw: d.literal()}, true
		case c == '<':
			if d.pos+1 < len(d.data) && d.data[d.pos+1] == '<' {
				d.pos += 2
				continue
			}
			d.pos++
			return token{kind: tokString, raw: d.hex()}, true
		case c == '>':
			d.pos++
		case c == '[':
			d.pos++
			return d.array(), true
		case c == ']', c == '{', c == '}':
			d.pos++
		case c == '/':
			d.pos++
			return token{kind: tokName, str: d.word()}, true
		default:
			w := d.word()
			if w == "" {
				d.pos++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, str: w}, true
		}
	}
	return token{}, false
}

func (d *decoder) word() string {
	start := d.pos
	for d.pos < len(d.data) && !isWhite(d.data[d.pos]) && !isDelim(d.data[d.pos]) {
		d.pos++
	}
	return string(d.data[start:d.pos])
}

func (d *decoder) array() token {
	arr := token{kind: tokArray}
	for d.pos < len(d.data) {
		// Peek for the closing bracket before reading the next element.
		for d.pos < len(d.data) && isWhite(d.data[d.pos]) {
			d.pos++
		}
		if d.pos < len(d.data) && d.data[d.pos] == ']' {
			d.pos++
			return arr
		}
		tok, ok := d.next()
		if !ok {
			break
		}
		arr.items = append(arr.items, tok)
	}
	return arr
}

// literal reads a (string) body after the opening parenthesis.
func (d *decoder) literal() []byte {
	var out []byte
	depth := 1
	for d.pos < len(d.data) {
		c := d.data[d.pos]
		d.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if d.pos >= len(d.data) {
				return out
			}
			e := d.data[d.pos]
			d.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if d.pos < len(d.data) && d.data[d.pos] == '\n' {
					d.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '7'; i++ {
						v = v*8 + int(d.data[d.pos]-'0')
						d.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <hex string> body after the opening angle bracket.
func (d *decoder) hex() []byte {
	var digits []byte
	for d.pos < len(d.data) && d.data[d.pos] != '>' {
		if c := d.data[d.pos]; !isWhite(c) {
			digits = append(digits, c)
		}
		d.pos++
	}
	d.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage advances past inline image data up to the EI operator.
func (d *decoder) skipInlineImage() {
	if i := bytes.Index(d.data[d.pos:], []byte("EI")); i >= 0 {
		d.pos += i + 2
		return
	}
	d.pos = len(d.data)
}

func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return decodeUTF16(b[2:])
	}
	if looksLikeTwoByte(b) {
		return decodeUTF16(b)
	}
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '\t' || c == '\n' || c == '\r':
			sb.WriteByte(' ')
		case c < 0x20 || c == 0x7F:
		default:
			sb.WriteRune(rune(c))
		}
	}
	return sb.String()
}

func looksLikeTwoByte(b []byte) bool {
	if len(b) < 2 || len(b)%2 != 0 {
		return false
	}
	for i := 0; i < len(b); i += 2 {
		if b[i] != 0 || b[i+1] == 0 {
			return false
		}
	}
	return true
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units))
}
