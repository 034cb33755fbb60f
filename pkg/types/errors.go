package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrEmptyID        = errors.New("record id is required")
	ErrMissingProject = errors.New("project id is required")
	ErrMissingPath    = errors.New("file path is required")
	ErrEmptyVector    = errors.New("record vector cannot be empty")
)
