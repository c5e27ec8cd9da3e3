// Package services defines the business logic for identity resolution.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrMissingIdentifier is returned when a resolve request carries neither
	// an email nor a phone number. The store is never touched in that case.
	ErrMissingIdentifier = errors.New("at least one identifier required")

	// ErrClusterInconsistent indicates that the chosen primary vanished
	// between selection and the final re-fetch. This is an unexpected store
	// condition and is never retried by the service.
	ErrClusterInconsistent = errors.New("cluster primary disappeared")

	// ErrContactNotFound indicates that the requested contact does not exist.
	ErrContactNotFound = errors.New("contact not found")
)
