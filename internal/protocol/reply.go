package protocol

import (
	"errors"
	"strconv"
)

// Replies always end with CRLF regardless of the request separator.
const (
	Stored    = "STORED\r\n"
	NotStored = "NOT_STORED\r\n"
	End       = "END\r\n"

	wrongCommand = "wrong command\r\n"
	crlf         = "\r\n"
)

// AppendValue encodes a get hit: `VALUE <key> <flags> <length>\r\n<value>\r\nEND\r\n`.
func AppendValue(dst []byte, key string, flags uint16, length int, value []byte) []byte {
	dst = append(dst, "VALUE "...)
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(flags), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(length), 10)
	dst = append(dst, crlf...)
	dst = append(dst, value...)
	dst = append(dst, crlf...)
	return append(dst, End...)
}

// ErrorReply maps a decode error to the line sent back to the client.
// Argument-count errors against a known verb name the verb; everything else
// is reported as a wrong command.
func ErrorReply(err error) string {
	var fe *FrameError
	if errors.As(err, &fe) && fe.Verb != "" && errors.Is(err, ErrWrongArgCount) {
		return "wrong number of arguments for " + fe.Verb + crlf
	}
	return wrongCommand
}

// AppendStorage encodes a write request the way clients send it.
func AppendStorage(dst []byte, verb Verb, key string, flags uint16, exptime int64, value []byte, noReply bool, sep string) []byte {
	dst = append(dst, verb.String()...)
	dst = append(dst, ' ')
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(flags), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, exptime, 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(len(value)), 10)
	if noReply {
		dst = append(dst, " noreply"...)
	}
	dst = append(dst, sep...)
	dst = append(dst, value...)
	return append(dst, sep...)
}

// AppendRetrieval encodes a get request.
func AppendRetrieval(dst []byte, key string, sep string) []byte {
	dst = append(dst, VerbGet.String()...)
	dst = append(dst, ' ')
	dst = append(dst, key...)
	return append(dst, sep...)
}
