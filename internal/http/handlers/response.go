// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints.
// The error envelope is deliberately minimal — `{"error": "<message>"}` — to
// match the identify contract; correlation happens through the X-Request-ID
// response header rather than the body.
//
// Conventions:
//   - `fail()` centralizes error formatting and ensures 5xx responses are
//     logged with request context before the opaque body is written.
//   - `ok()` simplifies writing success responses in a consistent shape.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-identity-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Example:
//
//	HTTP/1.1 400 Bad Request
//	{ "error": "Email or phone number must be provided." }
type ErrorResponse struct {
	// Human-readable message (safe to show to users)
	Error string `json:"error" example:"Email or phone number must be provided."`
}

// fail aborts the request with the standard error envelope.
//
// Server errors (>=500) are logged with the request-scoped logger from
// middleware before the opaque body is written; the detailed cause never
// reaches the client.
func fail(c *gin.Context, status int, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("message", msg).
			Strs("errors", c.Errors.Errors()).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, msg string) { fail(c, status, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
