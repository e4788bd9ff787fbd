package model

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAuthRequired  = errors.New("auth token is required")
	ErrAuthRejected  = errors.New("upstream rejected auth token")
	ErrFetchTimeout  = errors.New("upstream request timed out")
	ErrFetch         = errors.New("upstream request failed")
	ErrParse         = errors.New("malformed feed document")
	ErrSerialization = errors.New("failed to serialize feed")
)

// FetchError describes a failed upstream request.
// Kind is one of ErrFetch, ErrFetchTimeout or ErrAuthRejected.
type FetchError struct {
	Source Source
	Status int // 0 if no response was received
	Kind   error
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s feed: %s", e.Source, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ParseError is returned when an upstream document can't be decoded.
// Line is 1-based, 0 when unknown.
type ParseError struct {
	Source  Source
	Line    int
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s feed", e.Source)
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" near %q", e.Snippet)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
