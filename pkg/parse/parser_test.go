package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saylorsolutions/grokql/pkg/grok"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

func syslogParser(t *testing.T, specs []string, opts ...Option) *Parser {
	t.Helper()
	m, err := grok.NewLibrary().Compile("SYSLOGLINE")
	require.NoError(t, err)
	fields, err := schema.ParseFieldSpecs(specs)
	require.NoError(t, err)
	s, err := schema.New("SYSLOGLINE", fields)
	require.NoError(t, err)
	return NewParser(m, s, opts...)
}

func TestParser_Parse_Syslog(t *testing.T) {
	p := syslogParser(t, []string{"+timestamp:ts:%b %e %H:%M:%S", "+message"})
	r, err := p.Parse("Apr 27 00:25:39 actek-mac syslogd[106]: ASL Sender Statistics")
	require.NoError(t, err)

	ts, ok := r.ValueOf("timestamp")
	require.True(t, ok)
	assert.Equal(t, value.KindTime, ts.Kind())
	assert.Equal(t, time.April, ts.Time().Month())
	assert.Equal(t, 27, ts.Time().Day())
	assert.Equal(t, 0, ts.Time().Hour())
	assert.Equal(t, 25, ts.Time().Minute())
	assert.Equal(t, 39, ts.Time().Second())

	msg, ok := r.ValueOf("message")
	require.True(t, ok)
	assert.Equal(t, "ASL Sender Statistics", msg.Str())
}

func TestParser_Parse_Deterministic(t *testing.T) {
	p := syslogParser(t, []string{"+timestamp:ts:%b %e %H:%M:%S", "logsource", "program", "pid:int", "+message"})
	const line = "Apr 22 02:34:54 actek-mac login[49532]: USER_PROCESS: 49532 ttys000"
	first, err := p.Parse(line)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Parse(line)
		require.NoError(t, err)
		assert.Equal(t, first.Values(), again.Values())
	}
	pid, _ := first.ValueOf("pid")
	assert.Equal(t, int64(49532), pid.Int())
}

func TestParser_Parse_NoMatch(t *testing.T) {
	p := syslogParser(t, []string{"+message"})
	_, err := p.Parse("{}} not a syslog line")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Contains(t, perr.Line, "not a syslog line")
}

func TestParser_Parse_MissingCaptures(t *testing.T) {
	t.Run("optional missing is null", func(t *testing.T) {
		p := syslogParser(t, []string{"pid:int", "+message"})
		r, err := p.Parse("Apr 27 00:25:39 actek-mac syslogd: ASL Sender Statistics")
		require.NoError(t, err)
		pid, ok := r.ValueOf("pid")
		require.True(t, ok)
		assert.True(t, pid.IsNull())
	})
	t.Run("required missing fails line", func(t *testing.T) {
		p := syslogParser(t, []string{"+pid:int", "+message"})
		_, err := p.Parse("Apr 27 00:25:39 actek-mac syslogd: ASL Sender Statistics")
		assert.ErrorIs(t, err, ErrMissingRequired)
	})
}

func TestParser_ConversionPolicy(t *testing.T) {
	lib := grok.NewLibrary(
		grok.WithoutDefaults(),
		grok.WithPattern("W", `\S+`),
		grok.WithPattern("pair", `%{W:a} %{W:b}`),
	)
	m, err := lib.Compile("pair")
	require.NoError(t, err)
	fields, err := schema.ParseFieldSpecs([]string{"a:int", "b"})
	require.NoError(t, err)
	s, err := schema.New("pair", fields)
	require.NoError(t, err)

	t.Run("lenient yields null", func(t *testing.T) {
		p := NewParser(m, s)
		r, err := p.Parse("notanint hello")
		require.NoError(t, err)
		a, _ := r.ValueOf("a")
		assert.True(t, a.IsNull())
	})
	t.Run("strict fails line", func(t *testing.T) {
		p := NewParser(m, s, Strict())
		_, err := p.Parse("notanint hello")
		assert.ErrorIs(t, err, ErrConversion)
	})
}

func TestMerger(t *testing.T) {
	m := NewMerger()
	_, ready := m.Add("first line")
	assert.False(t, ready)
	_, ready = m.Add("  continuation")
	assert.False(t, ready)
	_, ready = m.Add("\tanother continuation")
	assert.False(t, ready)

	merged, ready := m.Add("second line")
	require.True(t, ready)
	assert.Equal(t, "first line   continuation \tanother continuation", merged)

	merged, ok := m.Flush()
	require.True(t, ok)
	assert.Equal(t, "second line", merged)

	_, ok = m.Flush()
	assert.False(t, ok)
}

func TestMergedMessageStillParses(t *testing.T) {
	m := NewMerger()
	_, ready := m.Add("Apr 27 00:25:39 actek-mac syslogd[106]: ASL Sender Statistics")
	require.False(t, ready)
	_, ready = m.Add("\tnotify records: 1024")
	require.False(t, ready)
	merged, ok := m.Flush()
	require.True(t, ok)

	p := syslogParser(t, []string{"program", "+message"})
	r, err := p.Parse(merged)
	require.NoError(t, err)
	msg, ok := r.ValueOf("message")
	require.True(t, ok)
	assert.Equal(t, "ASL Sender Statistics \tnotify records: 1024", msg.Str())
}
