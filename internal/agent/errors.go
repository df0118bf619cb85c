package agent

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/hyperjump/taxdesk/internal/storage"
)

// ErrorKind classifies a failed entry point so callers can map it to a response.
type ErrorKind string

// Error kinds.
const (
	KindInput             ErrorKind = "input"
	KindNotFound          ErrorKind = "not_found"
	KindNoClientMatch     ErrorKind = "no_client_match"
	KindNoReadableContent ErrorKind = "no_readable_content"
	KindPersistence       ErrorKind = "persistence"
	KindAIUnavailable     ErrorKind = "ai_unavailable"
)

// Sentinel errors, one per kind.
var (
	ErrInput             = eris.New("invalid input")
	ErrNotFound          = eris.New("not found")
	ErrNoClientMatch     = eris.New("no matching client found")
	ErrNoReadableContent = eris.New("no readable content")
	ErrPersistence       = eris.New("persistence failure")
	ErrAIUnavailable     = eris.New("AI unavailable")
)

// Outcome is embedded in every entry point result.
type Outcome struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

func ok() Outcome {
	return Outcome{Success: true}
}

func failure(err error) Outcome {
	return Outcome{Error: err.Error(), ErrorKind: KindOf(err)}
}

// KindOf returns the kind of err. Unknown errors are reported as persistence failures.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoClientMatch):
		return KindNoClientMatch
	case errors.Is(err, ErrNoReadableContent):
		return KindNoReadableContent
	case errors.Is(err, ErrAIUnavailable):
		return KindAIUnavailable
	default:
		return KindPersistence
	}
}
