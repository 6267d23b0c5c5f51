// Package httputil provides shared HTTP response helpers for handlers.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter
// calls so status codes, content types and failure logging stay consistent
// across endpoints.
package httputil
