// Package service implements the application services of the synchronization
// pipeline: queueing, dispatch, ingestion, reindexing, search, and dead
// letter management.
package service

import "errors"

// Sentinel errors the API layer maps to HTTP statuses.
var (
	// ErrValidation indicates a malformed or incomplete request.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the addressed resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates valid credentials for the wrong project.
	ErrForbidden = errors.New("forbidden")

	// ErrQueueClosed indicates a submit after the queue began shutdown.
	ErrQueueClosed = errors.New("queue closed")
)
