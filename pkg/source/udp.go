package source

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	maxDatagramSize = 64 * 1024
	// peers quiet for longer than this are flushed and forgotten
	defaultPeerIdleTTL = 2 * time.Minute
	peerSweepInterval  = 30 * time.Second
)

type udpSource struct {
	addr    string
	merge   bool
	idleTTL time.Duration
	log     hclog.Logger

	mu    sync.Mutex
	peers map[string]*udpPeer
}

// udpPeer is the per-sender stream state: a partial-line carry buffer and
// the merging emit chain for that stream.
type udpPeer struct {
	line     func(string) error
	flush    func() error
	pending  string
	lastSeen time.Time
}

func newUDPSource(addr string, opts Options) Source {
	return &udpSource{
		addr:    addr,
		merge:   opts.MergeLines,
		idleTTL: defaultPeerIdleTTL,
		log:     opts.logger().Named("udp-source").With("addr", addr),
		peers:   map[string]*udpPeer{},
	}
}

func (s *udpSource) Name() string {
	return "syslog-udp:" + s.addr
}

// Run receives datagrams until the context is cancelled. Each distinct
// sending peer is one logical stream. Idle peers are flushed and dropped by
// a periodic sweep.
func (s *udpSource) Run(ctx context.Context, emit EmitFunc) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("Listening")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sweepDone := make(chan struct{})
	go s.sweepLoop(ctx, sweepDone)
	defer func() {
		<-sweepDone
		s.flushAll()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Debug("Listener closed")
				return nil
			}
			s.log.Warn("Receive failed", "error", err)
			continue
		}
		if err := s.receive(addr.String(), string(buf[:n]), emit); err != nil {
			s.log.Debug("Pipeline closed, stopping receive")
			return nil
		}
	}
}

func (s *udpSource) peer(addr string, emit EmitFunc) *udpPeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[addr]
	if !ok {
		line, flush := streamEmit("udp/"+addr, s.merge, emit)
		p = &udpPeer{line: line, flush: flush}
		s.peers[addr] = p
		s.log.Debug("New peer stream", "peer", addr)
	}
	p.lastSeen = time.Now()
	return p
}

// receive splits a datagram into lines, carrying any trailing partial line
// until the peer's next datagram.
func (s *udpSource) receive(addr, data string, emit EmitFunc) error {
	p := s.peer(addr, emit)
	data = p.pending + data
	p.pending = ""
	for {
		text, rest, found := strings.Cut(data, "\n")
		if !found {
			p.pending = text
			return nil
		}
		if err := p.line(trimLineEnding(text)); err != nil {
			return err
		}
		data = rest
	}
}

func (s *udpSource) sweepLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(peerSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

func (s *udpSource) sweepIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.idleTTL)
	for addr, p := range s.peers {
		if p.lastSeen.After(cutoff) {
			continue
		}
		s.flushPeer(addr, p)
		delete(s.peers, addr)
		s.log.Info("Closed idle peer stream", "peer", addr)
	}
}

func (s *udpSource) flushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, p := range s.peers {
		s.flushPeer(addr, p)
		delete(s.peers, addr)
	}
}

func (s *udpSource) flushPeer(addr string, p *udpPeer) {
	if p.pending != "" {
		if err := p.line(trimLineEnding(p.pending)); err != nil {
			return
		}
		p.pending = ""
	}
	if err := p.flush(); err != nil {
		s.log.Debug("Flush failed for peer", "peer", addr)
	}
}
