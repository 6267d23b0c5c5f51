package strictform

import (
	"bytes"
	"strings"
)

const upperHex = "0123456789ABCDEF"

// ValidatePercentEncoding scans the whole buffer and fails on the first '%'
// that is not followed by two hex digits. It runs before any field is
// decoded so a bad escape anywhere rejects the entire body.
func ValidatePercentEncoding(b []byte) error {
	for i := 0; i < len(b); i++ {
		if b[i] != '%' {
			continue
		}
		if i+2 >= len(b) {
			return reject(KindInvalidPercentEncoding, nil, "truncated escape at byte %d", i)
		}
		if _, ok := unhex(b[i+1]); !ok {
			return reject(KindInvalidPercentEncoding, nil, "invalid escape at byte %d", i)
		}
		if _, ok := unhex(b[i+2]); !ok {
			return reject(KindInvalidPercentEncoding, nil, "invalid escape at byte %d", i)
		}
		i += 2
	}
	return nil
}

// DecodeComponent decodes one key or value: '+' becomes a space and %XY
// becomes the byte 0xXY. Any other byte is copied unchanged. The result never
// aliases the input.
func DecodeComponent(b []byte) ([]byte, error) {
	if bytes.IndexByte(b, '%') < 0 && bytes.IndexByte(b, '+') < 0 {
		return bytes.Clone(b), nil
	}

	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		switch c := b[i]; c {
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 >= len(b) {
				return nil, reject(KindInvalidPercentEncoding, nil, "truncated escape at byte %d", i)
			}
			hi, ok1 := unhex(b[i+1])
			lo, ok2 := unhex(b[i+2])
			if !ok1 || !ok2 {
				return nil, reject(KindInvalidPercentEncoding, nil, "invalid escape at byte %d", i)
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

// EncodeComponent is the inverse of DecodeComponent for text: ALPHA, DIGIT
// and "*-._" pass through, space becomes '+', everything else is %XX.
func EncodeComponent(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case shouldPass(c):
			sb.WriteByte(c)
		case c == ' ':
			sb.WriteByte('+')
		default:
			sb.WriteByte('%')
			sb.WriteByte(upperHex[c>>4])
			sb.WriteByte(upperHex[c&0x0f])
		}
	}
	return sb.String()
}

// EncodePairs serializes pairs in order, joined by '&'.
func EncodePairs(pairs []TextPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, EncodeComponent(p.Key)+"="+EncodeComponent(p.Value))
	}
	return strings.Join(parts, "&")
}

func shouldPass(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '*', c == '-', c == '.', c == '_':
		return true
	}
	return false
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
