package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

const (
	// MaxNameGraphemes bounds a display name in user-perceived characters.
	MaxNameGraphemes = 255
	// MaxEmailBytes bounds an email address in bytes.
	MaxEmailBytes = 255
)

// forbiddenNameSequences is a shallow denylist against markup and SQL
// comment patterns ending up in downstream text. It is not sanitization:
// injection safety comes from parameterized queries in the repository.
var forbiddenNameSequences = []string{"<", ">", ";", "--", "/*"}

// SubscriberName is a validated display name.
type SubscriberName struct{ value string }

// ParseSubscriberName validates raw text as a display name.
//
// The emptiness rule looks at trimmed content, so an all-whitespace name is
// rejected. The length rule counts grapheme clusters of the text as given,
// without trimming.
func ParseSubscriberName(s string) (SubscriberName, error) {
	if err := checkText(FieldName, s); err != nil {
		return SubscriberName{}, err
	}
	if strings.TrimSpace(s) == "" {
		return SubscriberName{}, invalid(FieldName, "must not be empty")
	}
	if n := uniseg.GraphemeClusterCount(s); n > MaxNameGraphemes {
		return SubscriberName{}, invalid(FieldName, fmt.Sprintf("is %d characters long, maximum is %d", n, MaxNameGraphemes))
	}
	for _, seq := range forbiddenNameSequences {
		if strings.Contains(s, seq) {
			return SubscriberName{}, invalid(FieldName, fmt.Sprintf("contains forbidden sequence %q", seq))
		}
	}
	return SubscriberName{value: s}, nil
}

func (n SubscriberName) String() string { return n.value }

// IsZero reports whether n was not produced by ParseSubscriberName.
func (n SubscriberName) IsZero() bool { return n.value == "" }

// SubscriberEmail is a syntactically plausible email address.
type SubscriberEmail struct{ value string }

// ParseSubscriberEmail performs a deliberately minimal check: non-empty, at
// most 255 bytes, exactly one '@' with something on both sides. It does not
// attempt RFC 5322 conformance; deliverability is proven by sending mail.
func ParseSubscriberEmail(s string) (SubscriberEmail, error) {
	if err := checkText(FieldEmail, s); err != nil {
		return SubscriberEmail{}, err
	}
	if s == "" {
		return SubscriberEmail{}, invalid(FieldEmail, "must not be empty")
	}
	if len(s) > MaxEmailBytes {
		return SubscriberEmail{}, invalid(FieldEmail, fmt.Sprintf("is %d bytes long, maximum is %d", len(s), MaxEmailBytes))
	}
	if c := strings.Count(s, "@"); c != 1 {
		return SubscriberEmail{}, invalid(FieldEmail, fmt.Sprintf("must contain exactly one '@', found %d", c))
	}
	local, host, _ := strings.Cut(s, "@")
	if local == "" {
		return SubscriberEmail{}, invalid(FieldEmail, "local part is empty")
	}
	if host == "" {
		return SubscriberEmail{}, invalid(FieldEmail, "domain part is empty")
	}
	return SubscriberEmail{value: s}, nil
}

func (e SubscriberEmail) String() string { return e.value }

// IsZero reports whether e was not produced by ParseSubscriberEmail.
func (e SubscriberEmail) IsZero() bool { return e.value == "" }

// Subscriber is a validated newsletter signup.
type Subscriber struct {
	Name  SubscriberName
	Email SubscriberEmail
}

// NewSubscriber validates both fields, name first.
func NewSubscriber(name, email string) (Subscriber, error) {
	n, err := ParseSubscriberName(name)
	if err != nil {
		return Subscriber{}, err
	}
	e, err := ParseSubscriberEmail(email)
	if err != nil {
		return Subscriber{}, err
	}
	return Subscriber{Name: n, Email: e}, nil
}

// Subscription is a Subscriber accepted for storage. ID and SubscribedAt are
// assigned by the caller, never derived from the form.
type Subscription struct {
	ID           string     `json:"id" db:"id"`
	Subscriber   Subscriber `json:"-"`
	SubscribedAt time.Time  `json:"subscribed_at" db:"subscribed_at"`
}

func checkText(field, s string) error {
	if !utf8.ValidString(s) {
		return invalid(field, "is not valid UTF-8")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return invalid(field, "contains a NUL byte")
	}
	return nil
}
