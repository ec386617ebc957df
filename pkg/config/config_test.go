package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
inputs:
  - /var/log/system.log
  - syslog-tcp:0.0.0.0:1514
merge_lines: true
pattern: SYSLOGLINE
columns:
  - "+timestamp:ts:%b %e %H:%M:%S"
  - logsource
  - pid:int
  - message
extra_patterns:
  APPLINE: "%{WORD:level} %{GREEDYDATA:rest}"
query: select * from SYSLOGLINE where pid > 100
output: out.csv
format: csv
batch_size: 500
flush_interval: 30s
workers: 4
on_failure: drop
metrics_addr: ":9090"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/var/log/system.log", "syslog-tcp:0.0.0.0:1514"}, c.Inputs)
	assert.True(t, c.MergeLines)
	assert.Equal(t, "SYSLOGLINE", c.Pattern)
	assert.Len(t, c.Columns, 4)
	assert.Equal(t, "+timestamp:ts:%b %e %H:%M:%S", c.Columns[0])
	assert.Equal(t, "%{WORD:level} %{GREEDYDATA:rest}", c.ExtraPatterns["APPLINE"])
	assert.Equal(t, 500, c.BatchSize)
	assert.Equal(t, 30*time.Second, c.FlushInterval.Std())
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, "drop", c.OnFailure)
	assert.Equal(t, ":9090", c.MetricsAddr)
	require.NoError(t, c.Validate())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "patern: TYPO\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "flush_interval: soon\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := &Config{
		Inputs:    []string{"a.log"},
		Pattern:   "SYSLOGLINE",
		Columns:   []string{"message"},
		Format:    "csv",
		BatchSize: 100,
	}
	override := &Config{
		Inputs:     []string{"b.log", "-"},
		Format:     "sqlite",
		Output:     "out.db",
		MergeLines: true,
		Workers:    8,
	}
	merged := base.Merge(override)
	assert.Equal(t, []string{"b.log", "-"}, merged.Inputs)
	assert.Equal(t, "SYSLOGLINE", merged.Pattern)
	assert.Equal(t, "sqlite", merged.Format)
	assert.Equal(t, "out.db", merged.Output)
	assert.Equal(t, 100, merged.BatchSize)
	assert.Equal(t, 8, merged.Workers)
	assert.True(t, merged.MergeLines)

	assert.Same(t, base, base.Merge(nil))
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		config  Config
		wantErr bool
	}{
		"Complete": {
			config: Config{Inputs: []string{"-"}, Pattern: "SYSLOGLINE", Columns: []string{"message"}},
		},
		"No pattern": {
			config:  Config{Inputs: []string{"-"}, Columns: []string{"message"}},
			wantErr: true,
		},
		"No columns": {
			config:  Config{Inputs: []string{"-"}, Pattern: "SYSLOGLINE"},
			wantErr: true,
		},
		"No inputs": {
			config:  Config{Pattern: "SYSLOGLINE", Columns: []string{"message"}},
			wantErr: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
