package output

import (
	"context"
	"io"
	"strings"

	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

const sqlTimeLayout = "2006-01-02 15:04:05"

// SQLTextSink renders batches as SQL text: an optional CREATE TABLE
// statement first, then one multi-row INSERT per batch. The output is meant
// to be piped into a database CLI.
type SQLTextSink struct {
	w         io.Writer
	schema    *schema.Schema
	withDDL   bool
	wroteHead bool
}

type SQLTextOption func(*SQLTextSink)

// WithDDL emits a CREATE TABLE IF NOT EXISTS statement before the first
// insert.
func WithDDL() SQLTextOption {
	return func(s *SQLTextSink) {
		s.withDDL = true
	}
}

func NewSQLTextSink(w io.Writer, s *schema.Schema, opts ...SQLTextOption) *SQLTextSink {
	sink := &SQLTextSink{
		w:      w,
		schema: s,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink
}

func (s *SQLTextSink) WriteBatch(_ context.Context, batch *record.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	var buf strings.Builder
	if s.withDDL && !s.wroteHead {
		writeCreateTable(&buf, s.schema)
	}
	s.wroteHead = true

	buf.WriteString("INSERT INTO ")
	buf.WriteString(s.schema.Name())
	buf.WriteString(" (")
	buf.WriteString(strings.Join(s.schema.Columns(), ","))
	buf.WriteString(")\n VALUES \n")
	records := batch.Records()
	for i, r := range records {
		buf.WriteByte('(')
		for j := 0; j < r.Len(); j++ {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeSQLLiteral(&buf, r.Value(j))
		}
		buf.WriteByte(')')
		if i < len(records)-1 {
			buf.WriteString(",\n")
		} else {
			buf.WriteString(";\n")
		}
	}
	_, err := io.WriteString(s.w, buf.String())
	return err
}

func (s *SQLTextSink) Close() error {
	return closeWriter(s.w)
}

func writeCreateTable(buf *strings.Builder, s *schema.Schema) {
	buf.WriteString("CREATE TABLE IF NOT EXISTS ")
	buf.WriteString(s.Name())
	buf.WriteString(" (\n")
	for i := 0; i < s.Len(); i++ {
		if i > 0 {
			buf.WriteString(",\n")
		}
		f := s.Field(i)
		buf.WriteString(f.Output)
		buf.WriteByte(' ')
		buf.WriteString(sqlType(f.Type.Kind()))
		if f.Required {
			buf.WriteString(" NOT NULL")
		}
	}
	buf.WriteString(");\n")
}

func writeSQLLiteral(buf *strings.Builder, v value.Value) {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteString("NULL")
	case value.KindBool:
		if v.Bool() {
			buf.WriteString("TRUE")
		} else {
			buf.WriteString("FALSE")
		}
	case value.KindTime:
		buf.WriteByte('\'')
		buf.WriteString(v.Time().Format(sqlTimeLayout))
		buf.WriteByte('\'')
	case value.KindString:
		buf.WriteByte('\'')
		buf.WriteString(strings.ReplaceAll(v.Str(), "'", "''"))
		buf.WriteByte('\'')
	default:
		buf.WriteString(v.Render())
	}
}
