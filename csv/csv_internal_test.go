package csv

import (
	"reflect"
	"testing"
)

// consumeAll feeds data through Consume in fixed-size chunks and flushes the
// tail, returning every emitted line as a string.
func consumeAll(data string, chunkSize int) []string {
	var st ParserState
	var out []string
	b := []byte(data)
	for len(b) > 0 {
		n := chunkSize
		if n > len(b) {
			n = len(b)
		}
		var lines [][]byte
		st, lines = Consume(st, b[:n], '"', '"')
		for _, l := range lines {
			out = append(out, string(l))
		}
		b = b[n:]
	}
	st, tail := Flush(st)
	_ = st
	if tail != nil {
		out = append(out, string(tail))
	}
	return out
}

func TestConsumeChunkIndependence(t *testing.T) {
	data := "a,b,c\n1,\"x,y\",3\r\n2,\"multi\nline\",4\r\n3,\"he said \"\"hi\"\"\",5\n"
	want := consumeAll(data, len(data))
	if len(want) != 4 {
		t.Fatalf("expected 4 lines from whole-input parse, got %v", want)
	}
	if want[2] != "2,\"multi\nline\",4" {
		t.Fatalf("quoted newline not preserved: %q", want[2])
	}
	for size := 1; size < len(data); size++ {
		got := consumeAll(data, size)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: got %q, want %q", size, got, want)
		}
	}
}

func TestConsumeBareCR(t *testing.T) {
	// \r alone is a line terminator, but only once the next byte proves it
	// isn't half of \r\n.
	for size := 1; size <= 10; size++ {
		got := consumeAll("a\rb\r\nc", size)
		want := []string{"a", "b", "c"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: got %q, want %q", size, got, want)
		}
	}
}

func TestConsumeStateAccessors(t *testing.T) {
	st, lines := Consume(ParserState{}, []byte("x,\"open\nquote"), '"', '"')
	if len(lines) != 0 {
		t.Fatalf("no line should complete inside an open quote: %v", lines)
	}
	if !st.InQuote() {
		t.Fatalf("expected open quote state")
	}
	if st.Bytes() != 13 {
		t.Fatalf("bytes: %d", st.Bytes())
	}
	st, lines = Consume(st, []byte("\",1\n"), '"', '"')
	if st.InQuote() {
		t.Fatalf("quote should have closed")
	}
	if len(lines) != 1 || string(lines[0]) != "x,\"open\nquote\",1" {
		t.Fatalf("unexpected lines: %q", lines)
	}
	if st.Lines() != 1 {
		t.Fatalf("lines: %d", st.Lines())
	}
}

func TestFlushTrailingLine(t *testing.T) {
	st, _ := Consume(ParserState{}, []byte("a,b\nc,d"), '"', '"')
	st, tail := Flush(st)
	if string(tail) != "c,d" {
		t.Fatalf("tail: %q", tail)
	}
	if st.Lines() != 2 {
		t.Fatalf("lines after flush: %d", st.Lines())
	}
	st, tail = Flush(st)
	if tail != nil {
		t.Fatalf("second flush should be empty, got %q", tail)
	}
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		line   string
		escape byte
		want   []string
		err    bool
	}{
		{line: "a,b,c", escape: '"', want: []string{"a", "b", "c"}},
		{line: "a, b ,c", escape: '"', want: []string{"a", "b", "c"}},
		{line: `1,"x,y",3`, escape: '"', want: []string{"1", "x,y", "3"}},
		{line: `a,"he said ""hi""",b`, escape: '"', want: []string{"a", `he said "hi"`, "b"}},
		{line: "2,\"multi\nline\",4", escape: '"', want: []string{"2", "multi\nline", "4"}},
		{line: `a,"b\"c",d`, escape: '\\', want: []string{"a", `b"c`, "d"}},
		{line: "a,,c", escape: '"', want: []string{"a", "", "c"}},
		{line: `a,"bc`, escape: '"', err: true},
	}
	for _, test := range tests {
		got, err := splitFields([]byte(test.line), ',', '"', test.escape)
		if test.err {
			if err == nil {
				t.Fatalf("%q: expected error, got %v", test.line, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", test.line, err)
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Fatalf("%q: got %v, want %v", test.line, got, test.want)
		}
	}
}

func TestValidateHeader(t *testing.T) {
	if err := validateHeader([]string{"a", "b", "c"}); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
	if err := validateHeader([]string{"a", "", "c"}); err == nil {
		t.Fatalf("empty column name accepted")
	}
	if err := validateHeader([]string{"a", "b", "a"}); err == nil {
		t.Fatalf("duplicate column name accepted")
	}
}
