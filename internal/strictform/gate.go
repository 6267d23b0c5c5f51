package strictform

import (
	"bytes"
	"unicode/utf8"
)

// TextPair is a RawPair whose key and value are valid UTF-8 without NUL.
type TextPair struct {
	Key   string
	Value string
}

// Gate converts raw pairs to text and stops at the first pair whose key or
// value contains a NUL byte or is not valid UTF-8.
func Gate(pairs []RawPair) ([]TextPair, error) {
	out := make([]TextPair, 0, len(pairs))
	for i, p := range pairs {
		if err := checkText(p.Key, i, "key"); err != nil {
			return nil, err
		}
		if err := checkText(p.Value, i, "value"); err != nil {
			return nil, err
		}
		out = append(out, TextPair{Key: string(p.Key), Value: string(p.Value)})
	}
	return out, nil
}

func checkText(b []byte, index int, part string) error {
	// NUL is valid UTF-8 but never legitimate form content.
	if bytes.IndexByte(b, 0) >= 0 {
		return reject(KindInvalidUTF8, nil, "NUL byte in field %d %s", index, part)
	}
	if !utf8.Valid(b) {
		return reject(KindInvalidUTF8, nil, "field %d %s is not valid UTF-8", index, part)
	}
	return nil
}
