package source

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

type tcpSource struct {
	addr  string
	merge bool
	log   hclog.Logger
}

func newTCPSource(addr string, opts Options) Source {
	return &tcpSource{
		addr:  addr,
		merge: opts.MergeLines,
		log:   opts.logger().Named("tcp-source").With("addr", addr),
	}
}

func (s *tcpSource) Name() string {
	return "syslog-tcp:" + s.addr
}

// Run accepts connections until the context is cancelled. Each connection is
// its own logical stream; a malformed or dropped connection never affects
// the others. A bind failure is returned immediately.
func (s *tcpSource) Run(ctx context.Context, emit EmitFunc) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("Listening")

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Debug("Listener closed")
				return nil
			}
			s.log.Warn("Accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn, emit)
		}()
	}
}

func (s *tcpSource) handleConn(ctx context.Context, conn net.Conn, emit EmitFunc) {
	stream := "tcp/" + uuid.NewString()
	log := s.log.With("remote", conn.RemoteAddr().String(), "stream", stream)
	log.Info("Accepted connection")
	defer func() {
		_ = conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblock reads on shutdown
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	line, flush := streamEmit(stream, s.merge, emit)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := line(trimLineEnding(scanner.Text())); err != nil {
			log.Debug("Pipeline closed, dropping connection")
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		// this stream ends, others are unaffected
		log.Warn("Connection error", "error", err)
	}
	if err := flush(); err != nil {
		return
	}
	log.Debug("Connection closed")
}
