package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/saylorsolutions/grokql/pkg/config"
	"github.com/saylorsolutions/grokql/pkg/grok"
	"github.com/saylorsolutions/grokql/pkg/output"
	"github.com/saylorsolutions/grokql/pkg/parse"
	"github.com/saylorsolutions/grokql/pkg/pipeline"
	"github.com/saylorsolutions/grokql/pkg/query"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/source"
)

// plumbing is everything a validated config compiles into, short of
// running it.
type plumbing struct {
	parser  *parse.Parser
	plan    *query.Plan
	sources []source.Source
	policy  pipeline.FailurePolicy
}

// buildPlumbing compiles the pattern, schema, query, and sources. Any error
// here is a startup error, reported before ingestion begins.
func buildPlumbing(cfg *config.Config, log hclog.Logger) (*plumbing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var libOpts []grok.Option
	if cfg.NoDefaultPatterns {
		libOpts = append(libOpts, grok.WithoutDefaults())
	}
	if len(cfg.ExtraPatterns) > 0 {
		libOpts = append(libOpts, grok.WithPatterns(cfg.ExtraPatterns))
	}
	matcher, err := grok.NewLibrary(libOpts...).Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", cfg.Pattern, err)
	}

	fields, err := schema.ParseFieldSpecs(cfg.Columns)
	if err != nil {
		return nil, err
	}
	s, err := schema.New(cfg.Pattern, fields)
	if err != nil {
		return nil, err
	}

	var parseOpts []parse.Option
	if cfg.StrictTypes {
		parseOpts = append(parseOpts, parse.Strict())
	}

	q := cfg.Query
	if q == "" {
		q = "select * from " + cfg.Pattern
	}
	plan, err := query.Compile(q, s)
	if err != nil {
		return nil, err
	}

	policy, err := pipeline.ParsePolicy(cfg.OnFailure)
	if err != nil {
		return nil, err
	}

	srcOpts := source.Options{
		Follow:     cfg.Follow,
		MergeLines: cfg.MergeLines,
		Logger:     log,
	}
	sources := make([]source.Source, 0, len(cfg.Inputs))
	for _, input := range cfg.Inputs {
		sel, err := source.ParseSelector(input)
		if err != nil {
			return nil, err
		}
		src, err := source.New(sel, srcOpts)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return &plumbing{
		parser:  parse.NewParser(matcher, s, parseOpts...),
		plan:    plan,
		sources: sources,
		policy:  policy,
	}, nil
}

// buildSink opens the configured output.
func buildSink(cfg *config.Config, s *schema.Schema, log hclog.Logger) (pipeline.Sink, error) {
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if format == output.FormatSQLite {
		if cfg.Output == "" || cfg.Output == "-" {
			return nil, fmt.Errorf("%w: the sqlite format needs an output file", config.ErrConfig)
		}
		return output.NewSQLiteSink(log, cfg.Output, s)
	}
	var w io.Writer = os.Stdout
	if cfg.Output != "" && cfg.Output != "-" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, err
		}
		w = f
	}
	switch format {
	case output.FormatSQL:
		var opts []output.SQLTextOption
		if cfg.AddDDL {
			opts = append(opts, output.WithDDL())
		}
		return output.NewSQLTextSink(w, s, opts...), nil
	default:
		return output.NewCSVSink(w, s), nil
	}
}
