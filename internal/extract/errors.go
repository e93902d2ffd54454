package extract

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is against the error Extract returns.
var (
	// ErrMalformedEnvelope means the response body was not a JSON object.
	ErrMalformedEnvelope = errors.New("malformed completion envelope")
	// ErrEmptyCompletion means the first choice carried no message content.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrTruncated means the model hit its output token budget.
	ErrTruncated = errors.New("completion truncated by token limit")
	// ErrUnrepairableJSON means the payload did not parse after repair.
	ErrUnrepairableJSON = errors.New("unrepairable json payload")
)

const previewLimit = 200

// Error is the typed failure returned by Extract.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Preview holds the first characters of the body or content.
	Preview string
	// Cause is the underlying parser error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Preview != "" {
		msg += fmt.Sprintf(" (preview: %q)", e.Preview)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// UserActionable reports whether the caller can fix the failure by
// shrinking the input, as opposed to an upstream fault.
func (e *Error) UserActionable() bool {
	return errors.Is(e.Kind, ErrTruncated)
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit])
}
