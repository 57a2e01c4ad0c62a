package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter is returned for malformed search filters or pagination.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidArticle is returned when a submitted article lacks a url or title.
	ErrInvalidArticle = errors.New("invalid article")

	// ErrUnavailable wraps every persistence failure.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrIndexRebuild indicates the text index could not be rebuilt. Operators
	// must treat it as fatal.
	ErrIndexRebuild = errors.New("index rebuild failed")
)

// FilterError names the offending filter field.
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter: %s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidFilter) hold for every FilterError.
func (e *FilterError) Is(target error) bool {
	return target == ErrInvalidFilter
}
