package pdf

// maxRangeSize bounds one bfrange entry so a corrupt map cannot expand forever.
const maxRangeSize = 1 << 16

// Font is the part of a PDF font needed to turn shown strings into text.
type Font struct {
	// CodeLength is the byte length of one character code:
	// 1 for simple fonts, 2 for composite (Type0) fonts.
	CodeLength int

	// ToUnicode maps character codes to text. Nil when the font has no map.
	ToUnicode map[uint32]string
}

// decode turns the bytes of a shown string into text. Composite fonts
// without a ToUnicode map select glyphs, not characters, and yield nothing.
func (f *Font) decode(raw []byte) string {
	if f == nil {
		return decodeText(raw)
	}
	if f.ToUnicode == nil {
		if f.CodeLength > 1 {
			return ""
		}
		return decodeText(raw)
	}

	n := max(f.CodeLength, 1)
	out := make([]byte, 0, len(raw))
	for i := 0; i+n <= len(raw); i += n {
		if s, ok := f.ToUnicode[codeOf(raw[i:i+n])]; ok {
			out = append(out, s...)
			continue
		}
		if n == 1 {
			out = append(out, decodeText(raw[i:i+1])...)
		}
	}
	return string(out)
}

// ParseToUnicode reads a ToUnicode CMap stream. It returns the code
// length declared by the codespace range and the code-to-text mapping.
func ParseToUnicode(data []byte) (int, map[uint32]string) {
	d := &decoder{data: data}
	mapping := make(map[uint32]string)
	codeLength := 0
	var operands []token

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
		case "endcodespacerange":
			if codeLength == 0 && len(operands) > 0 && operands[0].kind == tokString {
				codeLength = len(operands[0].raw)
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, dst := operands[i], operands[i+1]
				if src.kind != tokString || dst.kind != tokString {
					continue
				}
				if codeLength == 0 {
					codeLength = len(src.raw)
				}
				mapping[codeOf(src.raw)] = decodeUTF16(dst.raw)
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, hi, dst := operands[i], operands[i+1], operands[i+2]
				if lo.kind != tokString || hi.kind != tokString {
					continue
				}
				if codeLength == 0 {
					codeLength = len(lo.raw)
				}
				addRange(mapping, codeOf(lo.raw), codeOf(hi.raw), dst)
			}
		}
		operands = operands[:0]
	}

	return max(codeLength, 1), mapping
}

func addRange(mapping map[uint32]string, lo, hi uint32, dst token) {
	if hi < lo || hi-lo >= maxRangeSize {
		return
	}
	switch dst.kind {
	case tokString:
		if len(dst.raw) < 2 {
			return
		}
		for code := lo; code <= hi; code++ {
			mapping[code] = decodeUTF16(offsetLastUnit(dst.raw, code-lo))
		}
	case tokArray:
		for i, item := range dst.items {
			code := lo + uint32(i)
			if code > hi {
				break
			}
			if item.kind == tokString {
				mapping[code] = decodeUTF16(item.raw)
			}
		}
	}
}

// offsetLastUnit adds delta to the final UTF-16 unit of a big-endian string.
func offsetLastUnit(b []byte, delta uint32) []byte {
	out := append([]byte(nil), b...)
	n := len(out)
	unit := uint32(out[n-2])<<8 | uint32(out[n-1])
	unit += delta
	out[n-2], out[n-1] = byte(unit>>8), byte(unit)
	return out
}

func codeOf(b []byte) uint32 {
	var code uint32
	for _, c := range b {
		code = code<<8 | uint32(c)
	}
	return code
}
