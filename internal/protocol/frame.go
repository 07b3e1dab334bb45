package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxFrameBytes bounds a single segment read from a connection.
const DefaultMaxFrameBytes = 1 << 20

// FrameReader cuts a byte stream into frames for Parser.Decode. A frame is
// the command line plus, when the line names a write verb, the payload
// segment that follows it. The payload is taken even when the line has the
// wrong field count, so a rejected write never leaves its payload to be read
// as a command.
type FrameReader struct {
	sc  *bufio.Scanner
	sep []byte
}

func NewFrameReader(r io.Reader, sep string, maxFrameBytes int) *FrameReader {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	initial := 4096
	if maxFrameBytes < initial {
		initial = maxFrameBytes
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initial), maxFrameBytes)
	sc.Split(splitOn([]byte(sep)))

	return &FrameReader{sc: sc, sep: []byte(sep)}
}

// Next returns the next raw frame, separators included. It returns io.EOF
// once the stream is drained and bufio.ErrTooLong for oversize segments.
func (fr *FrameReader) Next() ([]byte, error) {
	line, err := fr.segment()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(line)+len(fr.sep))
	frame = append(frame, line...)
	frame = append(frame, fr.sep...)
	if !expectsPayload(line) {
		return frame, nil
	}

	payload, err := fr.segment()
	if errors.Is(err, io.EOF) {
		// Decode reports the missing payload as an argument error.
		return frame, nil
	}
	if err != nil {
		return nil, err
	}
	frame = append(frame, payload...)
	return append(frame, fr.sep...), nil
}

func (fr *FrameReader) segment() ([]byte, error) {
	if fr.sc.Scan() {
		return fr.sc.Bytes(), nil
	}
	if err := fr.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func expectsPayload(line []byte) bool {
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return false
	}
	verb, ok := ParseVerb(string(fields[0]))
	return ok && verb.IsWrite()
}

// splitOn is a bufio.SplitFunc that cuts on sep. Unterminated data at EOF is
// returned as a final segment unless it is only whitespace.
func splitOn(sep []byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.Index(data, sep); i >= 0 {
			return i + len(sep), data[:i], nil
		}
		if atEOF {
			if len(bytes.TrimSpace(data)) == 0 {
				return len(data), nil, nil
			}
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}
