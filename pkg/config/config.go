// Package config loads pipeline configuration from YAML files. CLI flags
// take precedence by merging over the file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfig = errors.New("invalid configuration")
)

// Duration wraps time.Duration so YAML values read as "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the file-level configuration. Zero values mean "not set" so a
// merge can tell configured values from defaults.
type Config struct {
	// Inputs are source selectors: paths, "-", syslog-tcp:..., syslog-udp:...
	Inputs []string `yaml:"inputs"`
	// Follow keeps file inputs open, tailing appended lines.
	Follow bool `yaml:"follow"`
	// MergeLines joins indented continuation lines per stream.
	MergeLines bool `yaml:"merge_lines"`

	// Pattern is the top-level grok pattern name, and the query table name.
	Pattern string `yaml:"pattern"`
	// Columns are field specs: "[+]name[:rename][:type]".
	Columns []string `yaml:"columns"`
	// ExtraPatterns adds or overrides grok pattern definitions by name.
	ExtraPatterns map[string]string `yaml:"extra_patterns"`
	// NoDefaultPatterns drops the built-in pattern set.
	NoDefaultPatterns bool `yaml:"no_default_patterns"`
	// StrictTypes makes a conversion failure fail the line.
	StrictTypes bool `yaml:"strict_types"`

	Query string `yaml:"query"`

	// Output is the destination: a path or "-" for stdout.
	Output string `yaml:"output"`
	// Format selects the sink: csv, sql, or sqlite.
	Format string `yaml:"format"`
	// AddDDL emits CREATE TABLE before inserts on the sql format.
	AddDDL bool `yaml:"add_ddl"`

	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
	Workers       int      `yaml:"workers"`
	// OnFailure is the parse failure policy: log, drop, or escalate.
	OnFailure string `yaml:"on_failure"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads a YAML config file, rejecting unknown keys.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	return &c, nil
}

// Merge lays o's set values over c, returning c. Slices and maps replace
// wholesale; booleans merge with or.
func (c *Config) Merge(o *Config) *Config {
	if o == nil {
		return c
	}
	if len(o.Inputs) > 0 {
		c.Inputs = o.Inputs
	}
	c.Follow = c.Follow || o.Follow
	c.MergeLines = c.MergeLines || o.MergeLines
	if o.Pattern != "" {
		c.Pattern = o.Pattern
	}
	if len(o.Columns) > 0 {
		c.Columns = o.Columns
	}
	if len(o.ExtraPatterns) > 0 {
		if c.ExtraPatterns == nil {
			c.ExtraPatterns = map[string]string{}
		}
		for name, def := range o.ExtraPatterns {
			c.ExtraPatterns[name] = def
		}
	}
	c.NoDefaultPatterns = c.NoDefaultPatterns || o.NoDefaultPatterns
	c.StrictTypes = c.StrictTypes || o.StrictTypes
	if o.Query != "" {
		c.Query = o.Query
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	c.AddDDL = c.AddDDL || o.AddDDL
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.FlushInterval > 0 {
		c.FlushInterval = o.FlushInterval
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.OnFailure != "" {
		c.OnFailure = o.OnFailure
	}
	if o.MetricsAddr != "" {
		c.MetricsAddr = o.MetricsAddr
	}
	return c
}

// Validate checks the cross-field requirements a runnable config must meet.
func (c *Config) Validate() error {
	if c.Pattern == "" {
		return fmt.Errorf("%w: a grok pattern name is required", ErrConfig)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("%w: at least one column spec is required", ErrConfig)
	}
	if len(c.Inputs) == 0 {
		return fmt.Errorf("%w: at least one input is required", ErrConfig)
	}
	return nil
}
