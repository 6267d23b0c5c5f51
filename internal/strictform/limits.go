package strictform

const (
	// DefaultMaxBodyBytes caps the request body at 16 KiB.
	DefaultMaxBodyBytes int64 = 16 * 1024
	// DefaultMaxFields caps the number of key/value pairs in one body.
	DefaultMaxFields = 256
)

// Limits bounds the work a single body can cause.
type Limits struct {
	MaxBodyBytes int64
	MaxFields    int
}

// DefaultLimits returns the 16 KiB / 256 field limits.
func DefaultLimits() Limits {
	return Limits{MaxBodyBytes: DefaultMaxBodyBytes, MaxFields: DefaultMaxFields}
}

// Resolve fills zero or negative values so a zero Limits is usable.
func (l Limits) Resolve() Limits {
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if l.MaxFields <= 0 {
		l.MaxFields = DefaultMaxFields
	}
	return l
}
