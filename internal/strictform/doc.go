// Package strictform turns an untrusted application/x-www-form-urlencoded
// request body into an ordered list of validated text pairs.
//
// The pipeline has four stages and each one can only reject:
//
//	ReadBody  bounded, cancellable read of the body (PayloadTooLarge, ReadBody)
//	Pre-scan  every '%' in the buffer must be followed by two hex digits (InvalidPercentEncoding)
//	Parse     split on '&' and the first '=', decode '+' and %XY per component (TooManyFields)
//	Gate      keys and values must be valid UTF-8 without NUL bytes (InvalidUtf8)
//
// Failures are reported as *Rejection values carrying a Kind. Nothing in this
// package knows about subscribers; field-level business rules live in
// internal/domain.
//
// Rules for this package:
//   - No net/url.ParseQuery. It silently tolerates input we must reject.
//   - No maps for field storage. Pairs stay in body order and duplicate keys
//     are resolved explicitly by Form.Last (last value wins).
//   - Limits are passed in, never read from globals.
package strictform
