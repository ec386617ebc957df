package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPReceiveSplitsDatagram(t *testing.T) {
	src := newUDPSource("127.0.0.1:0", Options{}).(*udpSource)
	var c lineCollector

	require.NoError(t, src.receive("10.0.0.1:5000", "one\r\ntwo\npartial", c.emit))
	assert.Equal(t, []string{"one", "two"}, c.texts())

	// trailing fragment completes with the peer's next datagram
	require.NoError(t, src.receive("10.0.0.1:5000", " tail\nthree\n", c.emit))
	assert.Equal(t, []string{"one", "two", "partial tail", "three"}, c.texts())
}

func TestUDPPeersAreSeparateStreams(t *testing.T) {
	src := newUDPSource("127.0.0.1:0", Options{}).(*udpSource)
	var c lineCollector

	require.NoError(t, src.receive("10.0.0.1:5000", "from first\n", c.emit))
	require.NoError(t, src.receive("10.0.0.2:5000", "from second\n", c.emit))
	require.Len(t, c.lines, 2)
	assert.Equal(t, "udp/10.0.0.1:5000", c.lines[0].Stream)
	assert.Equal(t, "udp/10.0.0.2:5000", c.lines[1].Stream)

	// one peer's fragment does not leak into another's stream
	require.NoError(t, src.receive("10.0.0.1:5000", "frag", c.emit))
	require.NoError(t, src.receive("10.0.0.2:5000", "whole\n", c.emit))
	assert.Equal(t, []string{"from first", "from second", "whole"}, c.texts())
}

func TestUDPIdleSweepFlushesPending(t *testing.T) {
	src := newUDPSource("127.0.0.1:0", Options{}).(*udpSource)
	src.idleTTL = time.Millisecond
	var c lineCollector

	require.NoError(t, src.receive("10.0.0.1:5000", "dangling fragment", c.emit))
	assert.Empty(t, c.texts())

	time.Sleep(5 * time.Millisecond)
	src.sweepIdle()
	assert.Equal(t, []string{"dangling fragment"}, c.texts())
	assert.Empty(t, src.peers)

	// a fresh datagram from the same address is a new stream
	require.NoError(t, src.receive("10.0.0.1:5000", "rejoined\n", c.emit))
	assert.Equal(t, []string{"dangling fragment", "rejoined"}, c.texts())
}

func TestUDPFlushAll(t *testing.T) {
	src := newUDPSource("127.0.0.1:0", Options{}).(*udpSource)
	var c lineCollector

	require.NoError(t, src.receive("10.0.0.1:5000", "left over", c.emit))
	require.NoError(t, src.receive("10.0.0.2:5000", "done\nalso left", c.emit))
	assert.Equal(t, []string{"done"}, c.texts())

	src.flushAll()
	assert.ElementsMatch(t, []string{"done", "left over", "also left"}, c.texts())
	assert.Empty(t, src.peers)
}
