package domain

// Field names as they appear in the subscription form.
const (
	FieldName  = "name"
	FieldEmail = "email"
)

// ValidationError reports which business rule a field failed.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
