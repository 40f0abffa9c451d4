package domain

import (
	"bytes"
	"strings"
)

// MaxLineSize bounds a serial line. Longer input without a newline is cut
// off and returned as a line of its own.
const MaxLineSize = 1024

// Reserved reply tokens sent by the clock firmware.
const (
	AckCode           = "100 0"
	NackCode          = "100 1"
	ClockReportPrefix = "RTC:"
)

// ResponseKind is the semantic result of one received line.
type ResponseKind int

const (
	ResponseUnrecognized ResponseKind = iota
	ResponseAck
	ResponseNack
	ResponseClockReport
)

// String returns a human-readable representation of the kind.
func (k ResponseKind) String() string {
	switch k {
	case ResponseAck:
		return "ack"
	case ResponseNack:
		return "nack"
	case ResponseClockReport:
		return "clock-report"
	default:
		return "unrecognized"
	}
}

// Response is a classified serial line. Value holds the clock reading for
// ResponseClockReport and the raw line for ResponseUnrecognized.
type Response struct {
	Kind  ResponseKind
	Value string
}

// Classify maps one received line to its Response.
func Classify(line string) Response {
	switch {
	case strings.HasPrefix(line, ClockReportPrefix):
		return Response{Kind: ResponseClockReport, Value: strings.TrimPrefix(line, ClockReportPrefix)}
	case line == AckCode:
		return Response{Kind: ResponseAck}
	case line == NackCode:
		return Response{Kind: ResponseNack}
	default:
		return Response{Kind: ResponseUnrecognized, Value: line}
	}
}

// SplitLines splits data on newlines, strips a trailing carriage return from
// each line and drops lines left empty.
func SplitLines(data []byte) []string {
	var lines []string
	for _, part := range bytes.Split(data, []byte{'\n'}) {
		if line := trimLine(part); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// LineBuffer reassembles lines from raw serial reads. A line split across two
// reads is returned once, whole, when its newline arrives.
type LineBuffer struct {
	pending []byte
}

// Feed appends chunk and returns every complete, non-empty line it finished.
// Once more than MaxLineSize bytes are buffered without a newline, the first
// MaxLineSize of them are returned as a line and the rest are dropped.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)

	var lines []string
	if i := bytes.LastIndexByte(b.pending, '\n'); i >= 0 {
		lines = SplitLines(b.pending[:i])
		rest := copy(b.pending, b.pending[i+1:])
		b.pending = b.pending[:rest]
	}
	if len(b.pending) > MaxLineSize {
		lines = append(lines, trimLine(b.pending[:MaxLineSize]))
		b.pending = nil
	}
	return lines
}

// Flush returns the buffered partial line, if any, and clears the buffer.
func (b *LineBuffer) Flush() string {
	line := trimLine(b.pending)
	b.pending = nil
	return line
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (b *LineBuffer) Pending() int { return len(b.pending) }

func trimLine(b []byte) string {
	return string(bytes.TrimSuffix(b, []byte{'\r'}))
}
