package record

import (
	"errors"

	"github.com/saylorsolutions/grokql/pkg/schema"
)

var (
	ErrSealed = errors.New("batch is sealed")
)

// Batch is a bounded accumulation of records sharing one schema.
//
// A batch is mutated only by its single owning accumulation task: appends
// until Seal, then immutable and safe to share read-only. Sealing is the
// only state transition and happens exactly once, when accumulation
// finishes.
type Batch struct {
	schema  *schema.Schema
	records []Record
	sealed  bool
}

// NewBatch opens an empty batch for the schema.
func NewBatch(s *schema.Schema, sizeHint int) *Batch {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Batch{
		schema:  s,
		records: make([]Record, 0, sizeHint),
	}
}

// FromRecords builds an already-sealed batch, mainly for query execution
// results and tests.
func FromRecords(s *schema.Schema, records []Record) *Batch {
	return &Batch{
		schema:  s,
		records: records,
		sealed:  true,
	}
}

func (b *Batch) Schema() *schema.Schema {
	return b.schema
}

func (b *Batch) Len() int {
	return len(b.records)
}

func (b *Batch) Sealed() bool {
	return b.sealed
}

// Append adds a record. The record's schema must be the batch schema.
func (b *Batch) Append(r Record) error {
	if b.sealed {
		return ErrSealed
	}
	if r.schema != b.schema {
		return ErrSchemaMismatch
	}
	b.records = append(b.records, r)
	return nil
}

// Seal closes the batch to further appends. Idempotent.
func (b *Batch) Seal() {
	b.sealed = true
}

// Record returns the i-th record in append order.
func (b *Batch) Record(i int) Record {
	return b.records[i]
}

// Records returns the rows in append order. The returned slice must not be
// mutated; use it only after the batch is sealed.
func (b *Batch) Records() []Record {
	return b.records
}
