package csv

// ParserState carries tokenizer state across chunk boundaries: the
// unconsumed byte tail, the scan resume offset within it, whether a quoted
// field is open, and running line/byte counters. It is a plain value -
// Consume returns the successor state rather than mutating in place, so the
// tokenizer behaves identically no matter where the chunk boundaries fall
// and can be unit tested with synthetic splits. The zero value is ready to
// use and Reset on the Source returns to it.
type ParserState struct {
	buf     []byte
	pos     int
	inQuote bool
	lines   int
	bytes   int64
}

// InQuote reports whether the state is inside an open quoted field.
func (st ParserState) InQuote() bool { return st.inQuote }

// Lines returns the number of completed physical lines emitted so far.
func (st ParserState) Lines() int { return st.lines }

// Bytes returns the total number of bytes consumed so far.
func (st ParserState) Bytes() int64 { return st.bytes }

// Pending returns the bytes buffered awaiting a line terminator.
func (st ParserState) Pending() []byte { return st.buf }

// Consume appends chunk to the buffered tail and scans it for completed
// physical lines, which it returns along with the successor state. A line
// terminator (\n, \r, or \r\n) is only recognized outside an open quote -
// this is what distinguishes a multi-line quoted field from a record
// boundary. A quote character inside a quoted field followed by a second
// quote is an escape, consumes both, and does not close the field. Whenever
// the scan cannot decide without seeing the next byte (quote or \r as the
// final buffered byte), it stops and resumes from the same offset on the
// next call.
func Consume(st ParserState, chunk []byte, quote, escape byte) (ParserState, [][]byte) {
	buf := append(st.buf, chunk...)
	var lines [][]byte
	i := st.pos
	lineStart := 0
	inQuote := st.inQuote
scan:
	for i < len(buf) {
		c := buf[i]
		if inQuote {
			switch {
			case escape != quote && c == escape:
				if i+1 >= len(buf) {
					break scan
				}
				i += 2
			case c == quote && i+1 >= len(buf):
				// could be a closing quote or half an escaped pair
				break scan
			case c == quote && buf[i+1] == quote:
				i += 2
			case c == quote:
				inQuote = false
				i++
			default:
				i++
			}
			continue
		}
		switch c {
		case quote:
			inQuote = true
			i++
		case '\n':
			lines = append(lines, buf[lineStart:i])
			i++
			lineStart = i
		case '\r':
			if i+1 >= len(buf) {
				// may be the first half of a split \r\n
				break scan
			}
			lines = append(lines, buf[lineStart:i])
			if buf[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
			lineStart = i
		default:
			i++
		}
	}
	rest := make([]byte, len(buf)-lineStart)
	copy(rest, buf[lineStart:])
	next := ParserState{
		buf:     rest,
		pos:     i - lineStart,
		inQuote: inQuote,
		lines:   st.lines + len(lines),
		bytes:   st.bytes + int64(len(chunk)),
	}
	return next, lines
}

// Flush returns any buffered final line - a file need not end with a line
// terminator - along with the drained state. An unterminated quoted field is
// flushed as-is; the field splitter reports it as a recoverable line error.
func Flush(st ParserState) (ParserState, []byte) {
	tail := st.buf
	if len(tail) > 0 && tail[len(tail)-1] == '\r' && !st.inQuote {
		tail = tail[:len(tail)-1]
	}
	next := ParserState{lines: st.lines, bytes: st.bytes}
	if len(tail) == 0 {
		return next, nil
	}
	next.lines++
	return next, tail
}
