// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses, so every
// handler answers with the same envelope and status mapping.

package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/report"
	"github.com/kina2711/subscription-analytics/internal/services"
)

// Response statuses.
const (
	StatusOK       = "ok"
	StatusNoData   = "no_data"
	StatusAccepted = "accepted"
	StatusError    = "error"
)

// Envelope is embedded in every response body.
type Envelope struct {
	Status   string `json:"status"`
	RunID    string `json:"run_id,omitempty"`
	Source   string `json:"source,omitempty"`
	LoadedAt string `json:"loaded_at,omitempty"`
}

// EnvelopeFor describes the load that produced a response.
func EnvelopeFor(snap services.Snapshot, empty bool) Envelope {
	e := Envelope{
		Status: StatusOK,
		RunID:  snap.RunID,
		Source: snap.Source,
	}
	if !snap.LoadedAt.IsZero() {
		e.LoadedAt = snap.LoadedAt.UTC().Format(time.RFC3339)
	}
	if empty {
		e.Status = StatusNoData
	}
	return e
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       interface{}
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header sets a response header.
func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.body = v
	return b
}

// Error sets an error body.
func (b *JSONResponseBuilder) Error(message string) *JSONResponseBuilder {
	b.body = ErrorResponse{Status: StatusError, Error: message}
	return b
}

// Send writes the response.
func (b *JSONResponseBuilder) Send(w http.ResponseWriter, r *http.Request) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	render.Status(r, b.statusCode)
	body := b.body
	if body == nil {
		body = struct{}{}
	}
	render.JSON(w, r, body)
}

// StatusFor maps service errors onto HTTP statuses. Anything that failed
// while loading the source is a bad gateway.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, report.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// sendError logs err and answers with its mapped status.
func sendError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldStatusCode, status)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	NewJSONResponse().Status(status).Error(err.Error()).Send(w, r)
}
