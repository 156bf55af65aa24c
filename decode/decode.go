// Package decode turns raw AT response text into typed records.
//
// Every decoder is a pure function of the response text. A response that
// does not have the shape expected for its command family yields a
// *DecodeError, which matches ErrInvalidFormat with errors.Is.
package decode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFormat is matched by every *DecodeError.
var ErrInvalidFormat = errors.New("invalid response format")

// DecodeError reports a response that does not match its command family.
type DecodeError struct {
	// Family names the command family, e.g. "signal" or "cell scan"
	Family string
	// Reason describes what was wrong with the response
	Reason string
	// Err is the underlying parse error, if any
	Err error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrInvalidFormat, e.Family, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidFormat
}

func invalid(family, reason string, err error) error {
	return &DecodeError{Family: family, Reason: reason, Err: err}
}

// payload returns the text following marker, or false when the marker is
// absent.
func payload(raw, marker string) (string, bool) {
	_, after, found := strings.Cut(raw, marker)
	return after, found
}

// stripFinal drops everything from the first occurrence of the final
// result framing onwards.
func stripFinal(s, framing string) string {
	before, _, _ := strings.Cut(s, framing)
	return before
}
