// Package source provides the ingestion side of the pipeline: bounded
// sources (files, stdin) and unbounded network listeners (TCP, UDP) that
// feed raw lines downstream.
//
// Each file, TCP connection, or UDP peer is one logical stream: an
// independent ordered sequence of lines. Emitting blocks when downstream is
// full, which is how backpressure reaches the receive path.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/saylorsolutions/grokql/pkg/parse"
)

var (
	ErrBadSelector = errors.New("invalid source selector")
)

// Line is one raw line tagged with the logical stream that produced it.
type Line struct {
	Stream string
	Text   string
}

// EmitFunc hands one line downstream. It blocks under backpressure and
// returns an error only when the pipeline is shutting down.
type EmitFunc func(Line) error

// Source produces raw lines until end-of-stream (bounded sources) or until
// the context is cancelled (network listeners). Per-line and per-connection
// problems are logged and isolated; an error return means the source could
// not run at all.
type Source interface {
	Name() string
	Run(ctx context.Context, emit EmitFunc) error
}

// Kind discriminates selector types.
type Kind int

const (
	KindFile Kind = iota
	KindStdin
	KindTCP
	KindUDP
)

// Selector is a parsed source designation: a plain path, "-" for stdin,
// "syslog-tcp:<host>:<port>", or "syslog-udp:<host>:<port>".
type Selector struct {
	Kind Kind
	Path string
	Addr string
}

func ParseSelector(s string) (Selector, error) {
	switch {
	case s == "":
		return Selector{}, fmt.Errorf("%w: empty", ErrBadSelector)
	case s == "-":
		return Selector{Kind: KindStdin}, nil
	case strings.HasPrefix(s, "syslog-tcp:"):
		return parseListenSelector(KindTCP, s, strings.TrimPrefix(s, "syslog-tcp:"))
	case strings.HasPrefix(s, "syslog-udp:"):
		return parseListenSelector(KindUDP, s, strings.TrimPrefix(s, "syslog-udp:"))
	default:
		return Selector{Kind: KindFile, Path: s}, nil
	}
}

func parseListenSelector(kind Kind, orig, addr string) (Selector, error) {
	if !strings.Contains(addr, ":") {
		return Selector{}, fmt.Errorf("%w: %q needs <host>:<port>", ErrBadSelector, orig)
	}
	return Selector{Kind: kind, Addr: addr}, nil
}

// Options configure source construction.
type Options struct {
	// Follow keeps a file source open, tailing new lines as they appear.
	Follow bool
	// MergeLines joins indented continuation lines per logical stream.
	MergeLines bool
	// Logger defaults to hclog.Default when nil.
	Logger hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.Default()
	}
	return o.Logger
}

// New builds the Source for a parsed selector.
func New(sel Selector, opts Options) (Source, error) {
	switch sel.Kind {
	case KindStdin:
		return newStdinSource(opts), nil
	case KindFile:
		return newFileSource(sel.Path, opts), nil
	case KindTCP:
		return newTCPSource(sel.Addr, opts), nil
	case KindUDP:
		return newUDPSource(sel.Addr, opts), nil
	}
	return nil, fmt.Errorf("%w: unsupported kind %d", ErrBadSelector, sel.Kind)
}

// mergingEmit wraps emit with a per-stream continuation-line merger.
// The returned flush must be called at end-of-stream.
func mergingEmit(stream string, emit EmitFunc) (line func(string) error, flush func() error) {
	m := parse.NewMerger()
	line = func(text string) error {
		merged, ready := m.Add(text)
		if !ready {
			return nil
		}
		return emit(Line{Stream: stream, Text: merged})
	}
	flush = func() error {
		merged, ok := m.Flush()
		if !ok {
			return nil
		}
		return emit(Line{Stream: stream, Text: merged})
	}
	return line, flush
}

// plainEmit is the non-merging counterpart of mergingEmit.
func plainEmit(stream string, emit EmitFunc) (line func(string) error, flush func() error) {
	line = func(text string) error {
		return emit(Line{Stream: stream, Text: text})
	}
	flush = func() error {
		return nil
	}
	return line, flush
}

func streamEmit(stream string, merge bool, emit EmitFunc) (func(string) error, func() error) {
	if merge {
		return mergingEmit(stream, emit)
	}
	return plainEmit(stream, emit)
}

func trimLineEnding(s string) string {
	return strings.TrimSuffix(s, "\r")
}
