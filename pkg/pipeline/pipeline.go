// Package pipeline connects sources, the line parser, a compiled query
// plan, and a sink into one running unit.
//
// Lines flow through bounded channels so backpressure reaches the ingestion
// side instead of growing memory. A batching stage seals line batches on a
// size limit or an age ticker, a worker pool parses and transforms sealed
// batches, and a single writer goroutine feeds the sink. Lines within a
// batch keep arrival order, so a single stream's lines stay ordered
// relative to each other.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/saylorsolutions/grokql/pkg/parse"
	"github.com/saylorsolutions/grokql/pkg/query"
	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/source"
)

var (
	ErrBadPolicy = errors.New("unknown parse failure policy")
	ErrNoSources = errors.New("at least one source is required")
)

// FailurePolicy decides what happens to a line that fails to parse.
type FailurePolicy int

const (
	// LogAndDrop logs the failed line and continues. The default.
	LogAndDrop FailurePolicy = iota
	// Drop discards the failed line silently, counting it only in metrics.
	Drop
	// Escalate stops the pipeline on the first failed line.
	Escalate
)

func (p FailurePolicy) String() string {
	switch p {
	case Drop:
		return "drop"
	case Escalate:
		return "escalate"
	default:
		return "log"
	}
}

// ParsePolicy reads a policy name as it appears in config files and flags.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "log":
		return LogAndDrop, nil
	case "drop":
		return Drop, nil
	case "escalate":
		return Escalate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadPolicy, s)
}

// Config tunes pipeline behavior. Zero values take defaults.
type Config struct {
	// BatchSize seals a line batch when it reaches this many lines.
	BatchSize int
	// FlushInterval seals a partial batch that has aged past it.
	FlushInterval time.Duration
	// Workers is the parse/transform pool size.
	Workers int
	Policy  FailurePolicy
	Logger  hclog.Logger
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Logger == nil {
		c.Logger = hclog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil)
	}
	return c
}

type Pipeline struct {
	sources []source.Source
	parser  *parse.Parser
	plan    *query.Plan
	sink    Sink
	cfg     Config
	log     hclog.Logger
}

func New(sources []source.Source, parser *parse.Parser, plan *query.Plan, sink Sink, cfg Config) (*Pipeline, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	cfg = cfg.withDefaults()
	return &Pipeline{
		sources: sources,
		parser:  parser,
		plan:    plan,
		sink:    sink,
		cfg:     cfg,
		log:     cfg.Logger.Named("pipeline"),
	}, nil
}

// Run ingests until every bounded source finishes or ctx is cancelled, then
// drains buffered work and returns. Cancelling ctx stops intake but still
// flushes what was already accepted. An internal failure (a source that
// cannot run, an escalated parse failure, a sink write error) aborts the
// drain and is returned. The sink is not closed by Run.
func (p *Pipeline) Run(ctx context.Context) error {
	g, abortCtx := errgroup.WithContext(context.Background())

	// sources stop on user cancellation or internal abort, whichever first
	srcCtx, stopSources := context.WithCancel(ctx)
	defer stopSources()
	go func() {
		<-abortCtx.Done()
		stopSources()
	}()

	intake := make(chan source.Line, p.cfg.BatchSize)
	work := make(chan []source.Line, p.cfg.Workers)
	results := make(chan *record.Batch, p.cfg.Workers)

	srcGroup := new(errgroup.Group)
	for _, src := range p.sources {
		src := src
		srcGroup.Go(func() error {
			log := p.log.With("source", src.Name())
			log.Info("Source starting")
			if err := src.Run(srcCtx, p.intakeEmit(abortCtx, intake)); err != nil {
				log.Error("Source failed", "error", err)
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			log.Debug("Source finished")
			return nil
		})
	}
	g.Go(func() error {
		defer close(intake)
		return srcGroup.Wait()
	})

	g.Go(func() error {
		defer close(work)
		return p.batchLines(abortCtx, intake, work)
	})

	var workerWG sync.WaitGroup
	workerWG.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			defer workerWG.Done()
			return p.runWorker(abortCtx, work, results)
		})
	}
	go func() {
		workerWG.Wait()
		close(results)
	}()

	g.Go(func() error {
		return p.writeResults(abortCtx, results)
	})
	return g.Wait()
}

func (p *Pipeline) intakeEmit(ctx context.Context, intake chan<- source.Line) source.EmitFunc {
	return func(l source.Line) error {
		select {
		case intake <- l:
			p.cfg.Metrics.LinesReceived.Inc()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// batchLines accumulates intake lines and seals batches on size or age.
// A tick with nothing pending is a no-op.
func (p *Pipeline) batchLines(ctx context.Context, intake <-chan source.Line, work chan<- []source.Line) error {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	pending := make([]source.Line, 0, p.cfg.BatchSize)
	seal := func() error {
		if len(pending) == 0 {
			return nil
		}
		sealed := pending
		pending = make([]source.Line, 0, p.cfg.BatchSize)
		select {
		case work <- sealed:
			// counted only once handed to a worker, so a batch abandoned
			// on shutdown never shows up as sealed
			p.cfg.Metrics.BatchesSealed.Inc()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case l, ok := <-intake:
			if !ok {
				return seal()
			}
			pending = append(pending, l)
			if len(pending) >= p.cfg.BatchSize {
				if err := seal(); err != nil {
					return err
				}
				ticker.Reset(p.cfg.FlushInterval)
			}
		case <-ticker.C:
			if err := seal(); err != nil {
				return err
			}
		}
	}
}

func (p *Pipeline) runWorker(ctx context.Context, work <-chan []source.Line, results chan<- *record.Batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case lines, ok := <-work:
			if !ok {
				return nil
			}
			batch, err := p.parseBatch(lines)
			if err != nil {
				return err
			}
			out, err := p.plan.Execute(batch)
			if err != nil {
				return err
			}
			select {
			case results <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) parseBatch(lines []source.Line) (*record.Batch, error) {
	batch := record.NewBatch(p.parser.Schema(), len(lines))
	for _, l := range lines {
		rec, err := p.parser.Parse(l.Text)
		if err != nil {
			p.cfg.Metrics.ParseFailures.Inc()
			switch p.cfg.Policy {
			case Escalate:
				return nil, fmt.Errorf("stream %s: %w", l.Stream, err)
			case LogAndDrop:
				p.log.Warn("Dropping unparseable line", "stream", l.Stream, "error", err)
			}
			continue
		}
		if err := batch.Append(rec); err != nil {
			return nil, err
		}
	}
	batch.Seal()
	return batch, nil
}

func (p *Pipeline) writeResults(ctx context.Context, results <-chan *record.Batch) error {
	for batch := range results {
		if batch.Len() == 0 {
			continue
		}
		if err := p.sink.WriteBatch(ctx, batch); err != nil {
			return fmt.Errorf("sink write: %w", err)
		}
		p.cfg.Metrics.RecordsEmitted.Add(float64(batch.Len()))
	}
	return nil
}
