package grok

import "regexp"

// Matcher is a compiled grok template. It holds no per-call state, so one
// matcher may be shared by any number of goroutines.
type Matcher struct {
	name string
	re   *regexp.Regexp
}

// Name returns the top-level pattern name this matcher was compiled from.
func (m *Matcher) Name() string {
	return m.name
}

// CaptureNames lists the capture names the matcher can produce, in pattern
// order.
func (m *Matcher) CaptureNames() []string {
	var names []string
	for _, n := range m.re.SubexpNames() {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Match applies the matcher to one raw line, anchored to the whole line.
// On a match it returns the capture-name to substring mapping; captures that
// did not participate in the match are absent from the map. Non-matching
// lines return (nil, false) and never an error.
func (m *Matcher) Match(line string) (map[string]string, bool) {
	idx := m.re.FindStringSubmatchIndex(line)
	if idx == nil {
		return nil, false
	}
	caps := map[string]string{}
	for i, name := range m.re.SubexpNames() {
		if name == "" {
			continue
		}
		start, end := idx[2*i], idx[2*i+1]
		if start < 0 {
			continue
		}
		caps[name] = line[start:end]
	}
	return caps, true
}
