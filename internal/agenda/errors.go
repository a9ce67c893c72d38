package agenda

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a source (or a run) did not produce events.
type ErrorKind string

const (
	KindConfig  ErrorKind = "ConfigError"
	KindNetwork ErrorKind = "NetworkError"
	KindTimeout ErrorKind = "TimeoutError"
	KindFormat  ErrorKind = "FormatError"
	KindParse   ErrorKind = "ParseError"
)

var (
	ErrNoSources     = errors.New("no sources configured")
	ErrEmptyResponse = errors.New("empty response")
	ErrNotCalendar   = errors.New("not a calendar document")
	ErrTimeout       = errors.New("fetch deadline exceeded")
)

// SourceError is the failure recorded for a single source.
type SourceError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func newSourceError(kind ErrorKind, status int, err error) *SourceError {
	return &SourceError{Kind: kind, StatusCode: status, Err: err}
}

// KindOf extracts the ErrorKind of err, or "" when err is not classified.
func KindOf(err error) ErrorKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
