package output

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
)

// CSVSink renders batches as CSV rows, writing the header once before the
// first row. Null values render as empty cells.
type CSVSink struct {
	w         io.Writer
	csv       *csv.Writer
	schema    *schema.Schema
	wroteHead bool
}

func NewCSVSink(w io.Writer, s *schema.Schema) *CSVSink {
	return &CSVSink{
		w:      w,
		csv:    csv.NewWriter(w),
		schema: s,
	}
}

func (s *CSVSink) WriteBatch(_ context.Context, batch *record.Batch) error {
	if !s.wroteHead {
		if err := s.csv.Write(s.schema.Columns()); err != nil {
			return err
		}
		s.wroteHead = true
	}
	row := make([]string, s.schema.Len())
	for _, r := range batch.Records() {
		for i := range row {
			row[i] = r.Value(i).Render()
		}
		if err := s.csv.Write(row); err != nil {
			return err
		}
	}
	s.csv.Flush()
	return s.csv.Error()
}

func (s *CSVSink) Close() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	return closeWriter(s.w)
}
