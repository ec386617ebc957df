package source

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/nxadm/tail"
)

type fileSource struct {
	path   string
	follow bool
	merge  bool
	log    hclog.Logger
}

func newFileSource(path string, opts Options) Source {
	return &fileSource{
		path:   path,
		follow: opts.Follow,
		merge:  opts.MergeLines,
		log:    opts.logger().Named("file-source").With("path", path),
	}
}

func (s *fileSource) Name() string {
	return s.path
}

func (s *fileSource) Run(ctx context.Context, emit EmitFunc) error {
	if s.follow {
		return s.runFollow(ctx, emit)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return runReader(ctx, f, s.path, s.merge, emit)
}

// runFollow tails the file, picking up appended lines until cancellation.
func (s *fileSource) runFollow(ctx context.Context, emit EmitFunc) error {
	t, err := tail.TailFile(s.path, tail.Config{
		ReOpen:    true,
		MustExist: true,
		Follow:    true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = t.Stop()
	}()
	line, flush := streamEmit(s.path, s.merge, emit)
	for {
		select {
		case <-ctx.Done():
			return flush()
		case l, ok := <-t.Lines:
			if !ok {
				return flush()
			}
			if l.Err != nil {
				s.log.Warn("Tail error", "error", l.Err)
				continue
			}
			if err := line(trimLineEnding(l.Text)); err != nil {
				return err
			}
		}
	}
}

type stdinSource struct {
	merge bool
}

func newStdinSource(opts Options) Source {
	return &stdinSource{merge: opts.MergeLines}
}

func (s *stdinSource) Name() string {
	return "stdin"
}

func (s *stdinSource) Run(ctx context.Context, emit EmitFunc) error {
	return runReader(ctx, os.Stdin, "stdin", s.merge, emit)
}

// runReader drains a sequential reader line by line, suspending only on
// actual I/O, until end-of-file or cancellation.
func runReader(ctx context.Context, r io.Reader, stream string, merge bool, emit EmitFunc) error {
	line, flush := streamEmit(stream, merge, emit)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := line(trimLineEnding(scanner.Text())); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}
