// Package grok compiles named, composable text-matching templates into
// anchored matchers that extract named substrings from log lines.
//
// Templates reference each other with %{NAME} or %{NAME:alias}. Compilation
// flattens the reference graph into a single regular expression, failing on
// undefined references, cyclic references, and invalid syntax. Bare %{NAME}
// references expand to non-capturing groups; an alias is what turns a
// reference into a capture. Compiled matchers are immutable and safe for
// concurrent use.
package grok

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrPatternCompile = errors.New("pattern compile error")
	ErrUnknownPattern = errors.New("unknown pattern")

	referenceRegex = regexp.MustCompile(`%\{(\w+)(?::(\w+))?}`)
)

// Library is a set of named grok templates. It is populated once at startup
// and read-only afterwards.
type Library struct {
	patterns map[string]string
}

// Option configures a Library under construction.
type Option func(*Library)

// WithoutDefaults drops the built-in pattern set, leaving only user-supplied
// definitions.
func WithoutDefaults() Option {
	return func(l *Library) {
		l.patterns = map[string]string{}
	}
}

// WithPattern adds or replaces a single named template.
func WithPattern(name, template string) Option {
	return func(l *Library) {
		l.patterns[name] = template
	}
}

// WithPatterns adds or replaces a batch of named templates.
func WithPatterns(defs map[string]string) Option {
	return func(l *Library) {
		for name, template := range defs {
			l.patterns[name] = template
		}
	}
}

// NewLibrary builds a pattern library from the built-in set plus any options.
func NewLibrary(opts ...Option) *Library {
	l := &Library{patterns: DefaultPatterns()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Has reports whether name is defined in the library.
func (l *Library) Has(name string) bool {
	_, ok := l.patterns[name]
	return ok
}

// Names lists defined pattern names, unordered.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.patterns))
	for name := range l.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile flattens the named template and everything it references into a
// single anchored matcher. The whole line must match.
func (l *Library) Compile(name string) (*Matcher, error) {
	if !l.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, name)
	}
	expanded, err := l.expand(name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(`^(?:` + expanded + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPatternCompile, name, err)
	}
	return &Matcher{name: name, re: re}, nil
}

func (l *Library) expand(name string, visiting map[string]bool) (string, error) {
	if visiting[name] {
		return "", fmt.Errorf("%w: cyclic reference through %s", ErrPatternCompile, name)
	}
	template, ok := l.patterns[name]
	if !ok {
		return "", fmt.Errorf("%w: undefined reference %s", ErrPatternCompile, name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var (
		out  strings.Builder
		last int
		rerr error
	)
	for _, loc := range referenceRegex.FindAllStringSubmatchIndex(template, -1) {
		if rerr != nil {
			break
		}
		out.WriteString(template[last:loc[0]])
		last = loc[1]
		ref := template[loc[2]:loc[3]]
		sub, err := l.expand(ref, visiting)
		if err != nil {
			rerr = err
			break
		}
		if loc[4] >= 0 {
			alias := template[loc[4]:loc[5]]
			out.WriteString(`(?P<` + alias + `>` + sub + `)`)
		} else {
			out.WriteString(`(?:` + sub + `)`)
		}
	}
	if rerr != nil {
		return "", rerr
	}
	out.WriteString(template[last:])
	return out.String(), nil
}
