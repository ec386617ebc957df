package parse

import "strings"

// Merger joins indented continuation lines (leading space or tab) onto the
// preceding line, for multi-line log output like stack traces. Lines are
// joined with a single space, keeping each continuation's own leading
// whitespace, so the merged message still matches single-line patterns. It
// is stateful and belongs to exactly one stream; it is not safe for
// concurrent use.
type Merger struct {
	buf []string
}

func NewMerger() *Merger {
	return &Merger{}
}

// Add offers the next raw line. When the line starts a new message, the
// previous buffered message is returned complete.
func (m *Merger) Add(line string) (string, bool) {
	if len(m.buf) == 0 {
		m.buf = append(m.buf, line)
		return "", false
	}
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
		m.buf = append(m.buf, line)
		return "", false
	}
	merged := strings.Join(m.buf, " ")
	m.buf = m.buf[:0]
	m.buf = append(m.buf, line)
	return merged, true
}

// Flush returns any buffered message at end-of-stream.
func (m *Merger) Flush() (string, bool) {
	if len(m.buf) == 0 {
		return "", false
	}
	merged := strings.Join(m.buf, " ")
	m.buf = m.buf[:0]
	return merged, true
}
