package strictform

import (
	"context"
	"io"
)

// Form is the ordered result of a successful decode. It is immutable.
type Form struct {
	pairs []TextPair
}

// Len returns the number of pairs, duplicates included.
func (f *Form) Len() int { return len(f.pairs) }

// Pairs returns a copy of the pairs in body order.
func (f *Form) Pairs() []TextPair {
	return append([]TextPair(nil), f.pairs...)
}

// Last returns the value of the last pair with the given key.
// This is the only place duplicate keys are resolved.
func (f *Form) Last(key string) (string, bool) {
	for i := len(f.pairs) - 1; i >= 0; i-- {
		if f.pairs[i].Key == key {
			return f.pairs[i].Value, true
		}
	}
	return "", false
}

// Require is Last for a mandatory field; a missing key is an
// InvalidFormStructure rejection.
func (f *Form) Require(key string) (string, error) {
	v, ok := f.Last(key)
	if !ok {
		return "", reject(KindInvalidFormStructure, nil, "missing field `%s`", key)
	}
	return v, nil
}

// Decode runs the full pipeline over a request body.
func Decode(ctx context.Context, body io.Reader, limits Limits) (*Form, error) {
	limits = limits.Resolve()
	raw, err := ReadBody(ctx, body, limits.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	return Parse(raw, limits)
}

// Parse runs the pre-scan, parse and gate stages over a body that is
// already in memory.
func Parse(raw []byte, limits Limits) (*Form, error) {
	limits = limits.Resolve()
	if int64(len(raw)) > limits.MaxBodyBytes {
		return nil, reject(KindPayloadTooLarge, nil, "body exceeds %d bytes", limits.MaxBodyBytes)
	}
	if err := ValidatePercentEncoding(raw); err != nil {
		return nil, err
	}
	pairs, err := ParsePairs(raw, limits.MaxFields)
	if err != nil {
		return nil, err
	}
	text, err := Gate(pairs)
	if err != nil {
		return nil, err
	}
	return &Form{pairs: text}, nil
}
