package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/incosense/incosense/internal/pkg/logger"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode failed", "error", err)
	}
}

// Text writes a short plain-text body. Rejection descriptions use this so
// they are readable with curl.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Empty writes a status with no body.
func Empty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// Created writes a 201 with an empty body.
func Created(w http.ResponseWriter) {
	Empty(w, http.StatusCreated)
}
