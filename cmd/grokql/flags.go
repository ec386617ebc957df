package main

import (
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/saylorsolutions/grokql/pkg/config"
)

// configFlags mirror the config file fields so any of them can be set or
// overridden from the command line.
type configFlags struct {
	configFile    *string
	inputs        *[]string
	follow        *bool
	mergeLines    *bool
	pattern       *string
	columns       *[]string
	extraPatterns *map[string]string
	noDefaults    *bool
	strictTypes   *bool
	query         *string
	output        *string
	format        *string
	addDDL        *bool
	batchSize     *int
	flushInterval *time.Duration
	workers       *int
	onFailure     *string
	metricsAddr   *string
}

func addConfigFlags(cmd *kingpin.CmdClause) *configFlags {
	f := &configFlags{}
	f.configFile = cmd.Flag("config", "YAML config file. Flags override file values.").Short('c').String()
	f.inputs = cmd.Flag("input", "Source selector: a path, '-' for stdin, syslog-tcp:<host>:<port>, or syslog-udp:<host>:<port>. Repeatable.").Short('i').Strings()
	f.follow = cmd.Flag("follow", "Keep file inputs open, tailing appended lines.").Short('f').Bool()
	f.mergeLines = cmd.Flag("merge-lines", "Join indented continuation lines with the preceding line.").Bool()
	f.pattern = cmd.Flag("pattern", "Top-level grok pattern name. Doubles as the query table name.").Short('p').String()
	f.columns = cmd.Flag("column", "Field spec '[+]name[:rename][:type]'. Repeatable, in output order.").Strings()
	f.extraPatterns = cmd.Flag("extra-pattern", "Extra grok pattern definition, NAME=regex. Repeatable.").StringMap()
	f.noDefaults = cmd.Flag("no-default-patterns", "Start from an empty pattern library.").Bool()
	f.strictTypes = cmd.Flag("strict-types", "Fail a line when a capture does not convert to its declared type.").Bool()
	f.query = cmd.Flag("query", "SELECT query applied to each batch.").Short('q').String()
	f.output = cmd.Flag("output", "Output destination, '-' for stdout.").Short('o').String()
	f.format = cmd.Flag("format", "Output format: csv, sql, or sqlite.").String()
	f.addDDL = cmd.Flag("add-ddl", "Emit CREATE TABLE before inserts (sql format).").Bool()
	f.batchSize = cmd.Flag("batch-size", "Lines per batch before sealing.").Int()
	f.flushInterval = cmd.Flag("flush-interval", "Maximum age of a partial batch before it flushes.").Duration()
	f.workers = cmd.Flag("workers", "Parse worker pool size.").Int()
	f.onFailure = cmd.Flag("on-failure", "Parse failure policy: log, drop, or escalate.").String()
	f.metricsAddr = cmd.Flag("metrics-addr", "Serve Prometheus metrics on this address, e.g. ':9090'.").String()
	return f
}

// load reads the config file when given, then merges flag values over it.
func (f *configFlags) load() (*config.Config, error) {
	cfg := &config.Config{}
	if *f.configFile != "" {
		loaded, err := config.Load(*f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return cfg.Merge(&config.Config{
		Inputs:            *f.inputs,
		Follow:            *f.follow,
		MergeLines:        *f.mergeLines,
		Pattern:           *f.pattern,
		Columns:           *f.columns,
		ExtraPatterns:     *f.extraPatterns,
		NoDefaultPatterns: *f.noDefaults,
		StrictTypes:       *f.strictTypes,
		Query:             *f.query,
		Output:            *f.output,
		Format:            *f.format,
		AddDDL:            *f.addDDL,
		BatchSize:         *f.batchSize,
		FlushInterval:     config.Duration(*f.flushInterval),
		Workers:           *f.workers,
		OnFailure:         *f.onFailure,
		MetricsAddr:       *f.metricsAddr,
	}), nil
}
