// Package handlers defines the HTTP-layer error messages used across all API
// endpoints.
//
// This file centralizes the client-facing message constants passed to the
// `fail()` helper. The identify contract pins two of them verbatim: the
// validation message for a submission with neither identifier, and the opaque
// message used for every unexpected failure. Handlers must not leak internal
// error detail to clients; internals go to the request-scoped logger instead.
package handlers

const (
	// MsgIdentifierRequired is returned with HTTP 400 when a submission
	// carries neither an email nor a phone number.
	MsgIdentifierRequired = "Email or phone number must be provided."

	// MsgInternalError is the opaque body for every unexpected failure.
	MsgInternalError = "Internal Server Error"

	// MsgInvalidJSON is returned with HTTP 400 for unparseable request bodies.
	MsgInvalidJSON = "invalid JSON body"

	// MsgContactNotFound is returned with HTTP 404 for unknown contact ids.
	MsgContactNotFound = "contact not found"

	// MsgInvalidContactID is returned with HTTP 400 for non-numeric ids.
	MsgInvalidContactID = "contact id must be a positive integer"

	// MsgRouteNotFound / MsgMethodNotAllowed back the router fallbacks.
	MsgRouteNotFound    = "route not found"
	MsgMethodNotAllowed = "method not allowed"
)
