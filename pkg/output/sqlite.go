package output

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"

	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	tablePattern = regexp.MustCompile(`^[\w\d]+$`)
	ErrBadTable  = errors.New("invalid table name")
)

// SQLiteSink writes batches to a SQLite database file. The table is created
// from the schema on first use, and each batch becomes one transaction of
// prepared inserts.
type SQLiteSink struct {
	db      *sql.DB
	schema  *schema.Schema
	insert  string
	prepped bool
	log     hclog.Logger
}

func NewSQLiteSink(log hclog.Logger, filename string, s *schema.Schema) (*SQLiteSink, error) {
	if !tablePattern.MatchString(s.Name()) {
		return nil, fmt.Errorf("%w: %s", ErrBadTable, s.Name())
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	return &SQLiteSink{
		db:     db,
		schema: s,
		insert: insertStatement(s),
		log:    log.Named("sqlite-sink").With("table", s.Name()),
	}, nil
}

func (s *SQLiteSink) WriteBatch(ctx context.Context, batch *record.Batch) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()
	args := make([]any, s.schema.Len())
	for _, r := range batch.Records() {
		for i := range args {
			args[i] = driverValue(r.Value(i))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("Wrote batch", "records", batch.Len())
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) ensureTable(ctx context.Context) error {
	if s.prepped {
		return nil
	}
	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE IF NOT EXISTS ")
	ddl.WriteString(s.schema.Name())
	ddl.WriteString(" (")
	for i := 0; i < s.schema.Len(); i++ {
		if i > 0 {
			ddl.WriteString(", ")
		}
		f := s.schema.Field(i)
		ddl.WriteString(f.Output)
		ddl.WriteByte(' ')
		ddl.WriteString(sqliteType(f.Type.Kind()))
	}
	ddl.WriteString(")")
	if _, err := s.db.ExecContext(ctx, ddl.String()); err != nil {
		return err
	}
	s.prepped = true
	return nil
}

func insertStatement(s *schema.Schema) string {
	marks := make([]string, s.Len())
	for i := range marks {
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Name(),
		strings.Join(s.Columns(), ","),
		strings.Join(marks, ","))
}

func sqliteType(k value.Kind) string {
	switch k {
	case value.KindInt, value.KindBool:
		return "INTEGER"
	case value.KindFloat:
		return "REAL"
	case value.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func driverValue(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindInt:
		return v.Int()
	case value.KindFloat:
		return v.Float()
	case value.KindBool:
		return v.Bool()
	case value.KindTime:
		return v.Time()
	default:
		return v.Str()
	}
}
