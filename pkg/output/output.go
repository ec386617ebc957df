// Package output provides the built-in sinks: CSV text, SQL insert text,
// and a SQLite database file.
package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	ErrBadFormat = errors.New("unknown output format")
)

// sqlType maps a column kind to its portable DDL type.
func sqlType(k value.Kind) string {
	switch k {
	case value.KindInt:
		return "BIGINT"
	case value.KindFloat:
		return "DOUBLE"
	case value.KindBool:
		return "BOOLEAN"
	case value.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func closeWriter(w io.Writer) error {
	if c, ok := w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Format names a built-in sink type.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatSQL     Format = "sql"
	FormatSQLite  Format = "sqlite"
	DefaultFormat        = FormatCSV
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return DefaultFormat, nil
	case FormatCSV, FormatSQL, FormatSQLite:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadFormat, s)
}
