package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultSeparator terminates the command line and the payload segment.
const DefaultSeparator = "--"

var ErrEmptySeparator = errors.New("separator must not be empty")

// Parser turns raw frames into requests. It keeps no state besides the
// separator and is safe for concurrent use.
type Parser struct {
	sep []byte
}

func NewParser(sep string) (*Parser, error) {
	if sep == "" {
		return nil, ErrEmptySeparator
	}
	return &Parser{sep: []byte(sep)}, nil
}

func (p *Parser) Separator() string {
	return string(p.sep)
}

// Decode validates one frame: a command line optionally followed by a
// payload segment, each terminated by the separator.
func (p *Parser) Decode(raw []byte) (Request, error) {
	segments := splitTerminator(raw, p.sep)
	if len(segments) != 1 && len(segments) != 2 {
		return Request{}, &FrameError{Err: ErrMalformedFrame}
	}

	fields := strings.Fields(string(segments[0]))
	if len(fields) == 0 {
		return Request{}, &FrameError{Err: ErrUnknownCommand}
	}

	// Verbs are case-sensitive. The verb is checked before the argument
	// count, so a bare unknown word is a wrong command.
	name := fields[0]
	verb, ok := ParseVerb(name)
	if !ok {
		return Request{}, &FrameError{Err: fmt.Errorf("%w %q", ErrUnknownCommand, name)}
	}
	if len(fields) < 2 {
		return Request{}, &FrameError{Verb: name, Err: ErrWrongArgCount}
	}

	if verb.IsWrite() {
		return parseStorage(verb, fields, segments)
	}
	return parseRetrieval(verb, fields, segments)
}

// parseStorage handles `<verb> <key> <flags> <exptime> <size> [noreply]`.
func parseStorage(verb Verb, fields []string, segments [][]byte) (Request, error) {
	if len(segments) != 2 || (len(fields) != 5 && len(fields) != 6) {
		return Request{}, &FrameError{Verb: verb.String(), Err: ErrWrongArgCount}
	}

	flags, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return Request{}, &FrameError{Verb: verb.String(), Field: "flags", Err: ErrInvalidNumber}
	}

	exptime, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Request{}, &FrameError{Verb: verb.String(), Field: "exptime", Err: ErrInvalidNumber}
	}

	size, err := strconv.Atoi(fields[4])
	if err != nil || size < 0 {
		return Request{}, &FrameError{Verb: verb.String(), Field: "size", Err: ErrInvalidNumber}
	}

	value := segments[1]
	if len(value) != size {
		return Request{}, &FrameError{Verb: verb.String(), Err: ErrSizeMismatch}
	}

	return Request{
		Verb:    verb,
		Key:     fields[1],
		Value:   bytes.Clone(value),
		Flags:   uint16(flags),
		Exptime: exptime,
		Size:    size,
		NoReply: len(fields) == 6,
	}, nil
}

// parseRetrieval handles `<verb> <key>` with no payload.
func parseRetrieval(verb Verb, fields []string, segments [][]byte) (Request, error) {
	if len(segments) != 1 || len(fields) != 2 {
		return Request{}, &FrameError{Verb: verb.String(), Err: ErrWrongArgCount}
	}
	return Request{Verb: verb, Key: fields[1]}, nil
}

// splitTerminator splits on sep and drops one trailing empty segment, so a
// frame that ends with the separator does not count an extra segment.
func splitTerminator(raw, sep []byte) [][]byte {
	segments := bytes.Split(raw, sep)
	if last := len(segments) - 1; len(segments[last]) == 0 {
		segments = segments[:last]
	}
	return segments
}
