package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter tokenizes RAK3172 output into lines. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines end with LF; a CR directly before the LF is stripped so both CRLF
// and bare LF framing produce the same tokens.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[0:i], []byte("\r")), nil
	}

	if atEOF {
		return len(data), bytes.TrimSuffix(data, []byte("\r")), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// SplitLines cuts every complete line out of text and returns them trimmed,
// skipping blank ones. The unterminated remainder is returned as rest so the
// caller can prepend it to the next chunk.
func SplitLines(text string) (lines []string, rest string) {
	data := []byte(text)
	for {
		advance, token, _ := Splitter(data, false)
		if advance == 0 {
			break
		}
		if line := strings.TrimSpace(string(token)); line != "" {
			lines = append(lines, line)
		}
		data = data[advance:]
	}
	return lines, string(data)
}

// Classify identifies the nature of a single modem output line
func Classify(line string) ResponseType {
	line = strings.TrimSpace(line)

	switch {
	case line == OK:
		return TypeFinal
	case strings.HasPrefix(line, ErrorCodePrefix):
		return TypeError
	case strings.HasPrefix(line, EventPrefix):
		return TypeEvent
	default:
		return TypeData
	}
}

// ErrorCode returns the first error code line found in a response, if any.
func ErrorCode(response string) (string, bool) {
	for _, line := range strings.Split(response, LF) {
		if Classify(line) == TypeError {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

// Redact masks session key values so commands can be logged.
func Redact(cmd string) string {
	for _, prefix := range []string{CmdAppSKey, CmdNwkSKey} {
		if strings.HasPrefix(cmd, prefix) {
			return prefix + "****"
		}
	}
	return cmd
}
