package types

import (
	"fmt"
	"net/http"
)

// FetchError is returned when the upstream request fails or answers with a
// non-success status. StatusCode is zero when no response was received.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("fetch failed with status %d (%s): %v", e.StatusCode, http.StatusText(e.StatusCode), e.Err)
		}
		return fmt.Sprintf("fetch failed with status %d (%s)", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StorageError is returned when an existing store can't be read or written.
// A store that doesn't exist is not an error.
type StorageError struct {
	Key StoreKey
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError is returned when the payload lacks a field or holds a malformed value.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse payload: %v", e.Err)
	}
	return fmt.Sprintf("parse payload field %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
