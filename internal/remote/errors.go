package remote

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote fetch failed, so callers can render
// different messages for each.
type Kind int

const (
	KindStatus Kind = iota
	KindNotFound
	KindRateLimited
	KindUnreachable
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindUnreachable:
		return "unreachable"
	case KindDecode:
		return "decode"
	default:
		return "status"
	}
}

// FetchError wraps a failed remote call.
type FetchError struct {
	Op         string // e.g. "get user"
	URL        string
	Kind       Kind
	StatusCode int    // zero when no response was received
	Message    string // server-provided message, if any
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// UserMessage returns the text a user-facing view shows for err.
func UserMessage(err error) string {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return err.Error()
	}
	switch fe.Kind {
	case KindNotFound:
		return "Not found. Please check the name and try again."
	case KindRateLimited:
		return "API rate limit exceeded. Please try again later."
	case KindUnreachable:
		return "No response from server. Please check your internet connection."
	default:
		if fe.Message != "" {
			return fe.Message
		}
		return fe.Op + " failed"
	}
}
