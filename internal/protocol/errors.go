package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("wrong number of segments in frame")
	ErrUnknownCommand = errors.New("unknown command")
	ErrWrongArgCount  = errors.New("wrong number of arguments")
	ErrInvalidNumber  = errors.New("invalid numeric field")
	ErrSizeMismatch   = errors.New("value size does not match declared length")
)

// FrameError describes why a frame was rejected. Verb is empty when the
// frame was rejected before a verb could be read.
type FrameError struct {
	Verb  string
	Field string
	Err   error
}

func (e *FrameError) Error() string {
	switch {
	case e.Verb == "":
		return e.Err.Error()
	case e.Field != "":
		return fmt.Sprintf("%s: %s %s", e.Verb, e.Err, e.Field)
	default:
		return fmt.Sprintf("%s: %s", e.Verb, e.Err)
	}
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Kind is a short label for logs and metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrWrongArgCount):
		return "wrong_arg_count"
	case errors.Is(err, ErrInvalidNumber):
		return "invalid_number"
	case errors.Is(err, ErrSizeMismatch):
		return "size_mismatch"
	default:
		return "other"
	}
}
