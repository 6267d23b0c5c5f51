// Package domain defines the core business types for the subscription service.
//
// Types in this package are value objects with no database dependencies and
// no HTTP concerns. They are the shared language between handlers, services,
// and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - Validated values (SubscriberName, SubscriberEmail) are only produced by
//     their Parse functions; the zero value is never a valid input to storage
//   - Validation functions are pure and total: any string in, a value or a
//     *ValidationError out
package domain
