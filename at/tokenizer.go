package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by LF line endings and drops the carriage return
// preceding the LF, so both CRLF and bare LF framed output is handled.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[0:i], []byte(CR)), nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case line == UrcCall:
		return TypeURC
	default:
		return TypeData
	}
}

// Framing selects how the end of a response is recognised on a stream
// that carries no length prefix.
type Framing int

const (
	// FramingLine ends a response at the first line that is a final
	// result code.
	FramingLine Framing = iota
	// FramingSubstring ends a response as soon as "OK" or "ERROR" appears
	// anywhere in the accumulated text. A value field containing those
	// letters terminates the response early; kept for peers that depend
	// on the historical behaviour.
	FramingSubstring
)

func (f Framing) String() string {
	switch f {
	case FramingLine:
		return "line"
	case FramingSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// ParseFraming maps a configuration value onto a Framing.
func ParseFraming(s string) (Framing, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line":
		return FramingLine, true
	case "substring", "compat":
		return FramingSubstring, true
	default:
		return FramingLine, false
	}
}

// Complete reports whether the accumulated response is terminated.
func Complete(response string, f Framing) bool {
	if f == FramingSubstring {
		return strings.Contains(response, OK) || strings.Contains(response, ERROR)
	}

	scanner := bufio.NewScanner(strings.NewReader(response))
	scanner.Buffer(make([]byte, 0, 4096), len(response)+1)
	scanner.Split(Splitter)
	for scanner.Scan() {
		if Classify(strings.TrimSpace(scanner.Text())) == TypeFinal {
			return true
		}
	}
	return false
}

// Succeeded reports whether the response carries a final OK line.
func Succeeded(response string) bool {
	for line := range strings.SplitSeq(response, "\n") {
		if strings.TrimSpace(line) == OK {
			return true
		}
	}
	return false
}
