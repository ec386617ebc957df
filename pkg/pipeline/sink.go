package pipeline

import (
	"context"

	"github.com/saylorsolutions/grokql/pkg/record"
)

// Sink consumes transformed batches at the downstream end of the pipeline.
// WriteBatch is called from a single goroutine; implementations do not need
// to be safe for concurrent use. Close is called once after the last write.
type Sink interface {
	WriteBatch(ctx context.Context, batch *record.Batch) error
	Close() error
}
