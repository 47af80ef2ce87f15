package csv

import (
	"strings"

	"github.com/pkg/errors"
)

// splitFields splits one physical line into fields. The delimiter only
// separates fields outside quotes; inside a quoted field a doubled quote (or
// escape+quote when a distinct escape byte is configured) unescapes to one
// literal quote and a lone quote closes the field. Each field is
// space-trimmed and has at most one pair of surrounding quotes stripped.
func splitFields(line []byte, delim, quote, escape byte) ([]string, error) {
	raw := make([]string, 0, 16)
	start := 0
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inQuote {
			switch {
			case escape != quote && c == escape && i+1 < len(line):
				i++
			case c == quote && i+1 < len(line) && line[i+1] == quote:
				i++
			case c == quote:
				inQuote = false
			}
			continue
		}
		switch c {
		case quote:
			inQuote = true
		case delim:
			raw = append(raw, string(line[start:i]))
			start = i + 1
		}
	}
	if inQuote {
		return nil, errors.Errorf("unterminated quoted field in %q", string(line))
	}
	raw = append(raw, string(line[start:]))

	fields := make([]string, len(raw))
	for i, r := range raw {
		fields[i] = cleanField(r, quote, escape)
	}
	return fields, nil
}

// cleanField trims a raw field, strips one pair of surrounding quotes, and
// unescapes quote escapes.
func cleanField(f string, quote, escape byte) string {
	f = strings.TrimSpace(f)
	if len(f) >= 2 && f[0] == quote && f[len(f)-1] == quote {
		f = f[1 : len(f)-1]
	}
	q := string(quote)
	f = strings.ReplaceAll(f, q+q, q)
	if escape != quote {
		f = strings.ReplaceAll(f, string(escape)+q, q)
	}
	return f
}

// validateHeader rejects headers with empty or duplicate column names, since
// they become record keys for every subsequent row.
func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}
