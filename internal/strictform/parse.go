package strictform

import "bytes"

// RawPair is one decoded key/value pair before UTF-8 validation.
type RawPair struct {
	Key   []byte
	Value []byte
}

// ParsePairs splits a raw body on '&' and each segment on its first '='.
// Empty segments are skipped, a segment without '=' is a key with an empty
// value, and key and value are decoded independently so an encoded '&' or
// '=' survives inside a value. Parsing stops with TooManyFields as soon as
// the pair count would exceed maxFields.
func ParsePairs(body []byte, maxFields int) ([]RawPair, error) {
	if maxFields <= 0 {
		maxFields = DefaultMaxFields
	}

	pairs := make([]RawPair, 0, min(bytes.Count(body, []byte{'&'})+1, maxFields))
	for len(body) > 0 {
		var segment []byte
		if i := bytes.IndexByte(body, '&'); i >= 0 {
			segment, body = body[:i], body[i+1:]
		} else {
			segment, body = body, nil
		}
		if len(segment) == 0 {
			continue
		}
		if len(pairs) == maxFields {
			return nil, reject(KindTooManyFields, nil, "more than %d fields", maxFields)
		}

		rawKey, rawValue := segment, []byte(nil)
		if i := bytes.IndexByte(segment, '='); i >= 0 {
			rawKey, rawValue = segment[:i], segment[i+1:]
		}

		key, err := DecodeComponent(rawKey)
		if err != nil {
			return nil, err
		}
		value, err := DecodeComponent(rawValue)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, RawPair{Key: key, Value: value})
	}
	return pairs, nil
}
