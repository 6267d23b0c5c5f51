package strictform

import "fmt"

// Kind classifies why a form body was rejected.
type Kind int

const (
	KindReadBody Kind = iota + 1
	KindPayloadTooLarge
	KindInvalidPercentEncoding
	KindInvalidUTF8
	KindTooManyFields
	KindInvalidFormStructure
)

var kindNames = map[Kind]string{
	KindReadBody:               "ReadBody",
	KindPayloadTooLarge:        "PayloadTooLarge",
	KindInvalidPercentEncoding: "InvalidPercentEncoding",
	KindInvalidUTF8:            "InvalidUtf8",
	KindTooManyFields:          "TooManyFields",
	KindInvalidFormStructure:   "InvalidFormStructure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Rejection is the error returned by every stage of the pipeline.
// Detail is safe to show to the client; Err (if any) is the underlying cause
// and is only meant for logs.
type Rejection struct {
	Kind   Kind
	Detail string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Kind.String()
	}
	return r.Kind.String() + ": " + r.Detail
}

func (r *Rejection) Unwrap() error { return r.Err }

// Is lets errors.Is match on Kind alone, e.g. errors.Is(err, &Rejection{Kind: KindTooManyFields}).
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Kind == r.Kind && t.Detail == "" && t.Err == nil
}

func reject(kind Kind, cause error, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
}
