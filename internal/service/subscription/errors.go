package subscription

import "errors"

// Sentinel errors returned by Repository implementations.
var (
	ErrDuplicate   = errors.New("subscription already exists")
	ErrReferential = errors.New("subscription violates a storage reference")
)
