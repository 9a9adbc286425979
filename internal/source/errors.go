package source

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure for diagnostics. The aggregator treats all
// kinds the same way.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindProtocol   Kind = "protocol"
)

// Sentinels for errors.Is.
var (
	ErrTimeout    = errors.New("fetch timed out")
	ErrConnection = errors.New("connection failed")
	ErrProtocol   = errors.New("unexpected response status")
)

// FetchError reports a failed listing fetch.
type FetchError struct {
	Kind   Kind
	URL    string
	Status int // set for KindProtocol
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == KindProtocol {
		return fmt.Sprintf("fetch %s: %s: status %d", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

// DecodeError reports a listing payload that could not be decoded.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s listing: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
