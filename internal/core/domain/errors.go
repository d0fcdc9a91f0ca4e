package domain

import "errors"

// Domain errors represent business logic failures.
// Adapters wrap these so callers can match with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// Upload Errors.

	// ErrFileTooLarge indicates an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFileType indicates an upload has a disallowed extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// Backend Errors.

	// ErrBackendUnavailable indicates no response was received from the backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrRequestFailed indicates the backend answered with success=false.
	ErrRequestFailed = errors.New("request failed")

	// ErrNoResponseData indicates a query response matched none of the known shapes.
	ErrNoResponseData = errors.New("no response data")

	// ErrEmptyResponse indicates a query answer was empty after sanitising.
	ErrEmptyResponse = errors.New("empty response")

	// Authentication Errors.

	// ErrAuthRequired indicates the backend rejected the request as unauthenticated.
	ErrAuthRequired = errors.New("authentication required")

	// ErrInvalidPassword indicates a login attempt used the wrong password.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrSessionExpired indicates there is no valid local session.
	ErrSessionExpired = errors.New("session expired")
)
