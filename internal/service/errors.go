package service

import "errors"

// Client-fault errors propagate to the caller with no partial side effects.
var (
	ErrReaderNil    = errors.New("reader is nil")
	ErrValidation   = errors.New("invalid, disallowed, or undecodable file")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrTooManyFiles = errors.New("upload exceeds maximum file count")
	ErrNotFound     = errors.New("photo not found")
	ErrAccessDenied = errors.New("caller does not own this photo")
)
