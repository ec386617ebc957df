package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

func syslogSchema(t *testing.T) *schema.Schema {
	t.Helper()
	fields, err := schema.ParseFieldSpecs([]string{
		"+timestamp:ts:%b %e %H:%M:%S",
		"logsource",
		"pid:int",
		"+message",
	})
	require.NoError(t, err)
	s, err := schema.New("SYSLOGLINE", fields)
	require.NoError(t, err)
	return s
}

func row(t *testing.T, s *schema.Schema, ts time.Time, source string, pid value.Value, msg string) record.Record {
	t.Helper()
	r, err := record.New(s, []value.Value{value.Time(ts), value.String(source), pid, value.String(msg)})
	require.NoError(t, err)
	return r
}

func matchingBatch(t *testing.T, s *schema.Schema, n int) *record.Batch {
	t.Helper()
	b := record.NewBatch(s, n)
	base := time.Date(2022, 4, 27, 0, 25, 39, 0, time.Local)
	for i := 0; i < n; i++ {
		r := row(t, s, base.Add(time.Duration(i)*time.Second), fmt.Sprintf("host-%d", i), value.Int(int64(100+i)), "ASL Sender Statistics")
		require.NoError(t, b.Append(r))
	}
	b.Seal()
	return b
}

func TestCompile_Errors(t *testing.T) {
	s := syslogSchema(t)
	tests := map[string]string{
		"unknown table":       `select * from NOT_A_TABLE`,
		"unknown column":      `select nope from SYSLOGLINE`,
		"unknown where col":   `select * from SYSLOGLINE where nope = 1`,
		"negative limit":      `select * from SYSLOGLINE limit -1`,
		"negative offset":     `select * from SYSLOGLINE offset -3`,
		"float limit":         `select * from SYSLOGLINE limit 1.5`,
		"missing from":        `select *`,
		"trailing garbage":    `select * from SYSLOGLINE garbage`,
		"unterminated string": `select * from SYSLOGLINE where message = "oops`,
		"unsupported func":    `select * from SYSLOGLINE where UPPER(message) = "X"`,
		"bad date format":     `select * from SYSLOGLINE where timestamp > DATE("%Q", "2022")`,
		"unparseable date":    `select * from SYSLOGLINE where timestamp > DATE("%Y-%m-%d", "not a date")`,
		"dangling operator":   `select * from SYSLOGLINE where message =`,
		"empty":               ``,
		"ungrouped column":    `select logsource, count(*) from SYSLOGLINE`,
		"group col dropped":   `select count(*) from SYSLOGLINE group by logsource`,
		"group by unknown":    `select count(*) from SYSLOGLINE group by nope`,
		"wildcard group by":   `select * from SYSLOGLINE group by logsource`,
		"sum of string":       `select sum(message) from SYSLOGLINE`,
		"sum distinct":        `select sum(distinct pid) from SYSLOGLINE`,
		"count distinct star": `select count(distinct *) from SYSLOGLINE`,
		"avg star":            `select avg(*) from SYSLOGLINE`,
		"duplicate agg names": `select count(*), count(*) from SYSLOGLINE`,
	}
	for name, src := range tests {
		src := src
		t.Run(name, func(t *testing.T) {
			_, err := Compile(src, s)
			assert.ErrorIs(t, err, ErrQueryCompile)
		})
	}
}

func TestCompile_CaseInsensitiveKeywords(t *testing.T) {
	s := syslogSchema(t)
	_, err := Compile(`SELECT * FROM SYSLOGLINE WHERE pid > 100 LIMIT 5 OFFSET 1`, s)
	require.NoError(t, err)
	_, err = Compile(`select * from SYSLOGLINE where pid > 100 limit 5 offset 1`, s)
	require.NoError(t, err)
}

func TestExecute_WildcardRoundTrip(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5)
	plan, err := Compile(`select * from SYSLOGLINE`, s)
	require.NoError(t, err)

	out, err := plan.Execute(batch)
	require.NoError(t, err)
	require.Equal(t, batch.Len(), out.Len())
	assert.Equal(t, s.Columns(), out.Schema().Columns())
	for i := 0; i < batch.Len(); i++ {
		assert.Equal(t, batch.Record(i).Values(), out.Record(i).Values())
	}
}

func TestExecute_Idempotent(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5)
	plan, err := Compile(`select message, pid from SYSLOGLINE where pid >= 101 limit 2`, s)
	require.NoError(t, err)

	first, err := plan.Execute(batch)
	require.NoError(t, err)
	second, err := plan.Execute(batch)
	require.NoError(t, err)
	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		assert.Equal(t, first.Record(i).Values(), second.Record(i).Values())
	}
	// input batch untouched
	assert.Equal(t, 5, batch.Len())
}

func TestExecute_FilterLimitOffset(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5)
	plan, err := Compile(`select * from SYSLOGLINE where message="ASL Sender Statistics" limit 3 offset 1`, s)
	require.NoError(t, err)

	out, err := plan.Execute(batch)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	// rows 2-4 of the original 5, in original order
	for i := 0; i < 3; i++ {
		src, _ := out.Record(i).ValueOf("logsource")
		assert.Equal(t, fmt.Sprintf("host-%d", i+1), src.Str())
	}
}

func TestExecute_Boundaries(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5)

	t.Run("offset beyond rows", func(t *testing.T) {
		plan, err := Compile(`select * from SYSLOGLINE offset 100`, s)
		require.NoError(t, err)
		out, err := plan.Execute(batch)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})
	t.Run("limit zero", func(t *testing.T) {
		plan, err := Compile(`select * from SYSLOGLINE limit 0`, s)
		require.NoError(t, err)
		out, err := plan.Execute(batch)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})
	t.Run("empty batch", func(t *testing.T) {
		empty := record.NewBatch(s, 0)
		empty.Seal()
		plan, err := Compile(`select * from SYSLOGLINE where pid > 0`, s)
		require.NoError(t, err)
		out, err := plan.Execute(empty)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})
}

func TestExecute_NullSemantics(t *testing.T) {
	s := syslogSchema(t)
	b := record.NewBatch(s, 2)
	base := time.Date(2022, 4, 27, 0, 25, 39, 0, time.Local)
	require.NoError(t, b.Append(row(t, s, base, "a", value.Null(), "with null pid")))
	require.NoError(t, b.Append(row(t, s, base, "b", value.Int(200), "with pid")))
	b.Seal()

	t.Run("comparison against null never matches", func(t *testing.T) {
		plan, err := Compile(`select * from SYSLOGLINE where pid > 0`, s)
		require.NoError(t, err)
		out, err := plan.Execute(b)
		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		src, _ := out.Record(0).ValueOf("logsource")
		assert.Equal(t, "b", src.Str())
	})
	t.Run("not of null comparison never matches either", func(t *testing.T) {
		plan, err := Compile(`select * from SYSLOGLINE where not pid > 0`, s)
		require.NoError(t, err)
		out, err := plan.Execute(b)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})
	t.Run("or recovers known truth", func(t *testing.T) {
		plan, err := Compile(`select * from SYSLOGLINE where pid > 0 or logsource = "a"`, s)
		require.NoError(t, err)
		out, err := plan.Execute(b)
		require.NoError(t, err)
		assert.Equal(t, 2, out.Len())
	})
}

func TestExecute_DateFunction(t *testing.T) {
	s := syslogSchema(t)
	b := record.NewBatch(s, 2)
	early := time.Date(time.Now().Year(), 4, 20, 0, 0, 0, 0, time.Local)
	late := time.Date(time.Now().Year(), 4, 30, 0, 0, 0, 0, time.Local)
	require.NoError(t, b.Append(row(t, s, early, "early", value.Int(1), "m")))
	require.NoError(t, b.Append(row(t, s, late, "late", value.Int(2), "m")))
	b.Seal()

	plan, err := Compile(`select logsource from SYSLOGLINE where timestamp > DATE("%b %e %H:%M:%S", "Apr 25 00:00:00")`, s)
	require.NoError(t, err)
	out, err := plan.Execute(b)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	src, _ := out.Record(0).ValueOf("logsource")
	assert.Equal(t, "late", src.Str())
	assert.Equal(t, []string{"logsource"}, out.Schema().Columns())
}

func TestExecute_Precedence(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5) // pids 100..104, hosts host-0..host-4

	// AND binds tighter than OR: matches host-0 plus pid>=103
	plan, err := Compile(`select * from SYSLOGLINE where logsource = "host-0" or pid >= 103 and message = "ASL Sender Statistics"`, s)
	require.NoError(t, err)
	out, err := plan.Execute(batch)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())

	// parentheses override
	plan, err = Compile(`select * from SYSLOGLINE where (logsource = "host-0" or pid >= 103) and message = "nope"`, s)
	require.NoError(t, err)
	out, err = plan.Execute(batch)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func groupedBatch(t *testing.T, s *schema.Schema) *record.Batch {
	t.Helper()
	b := record.NewBatch(s, 5)
	base := time.Date(2022, 4, 27, 0, 25, 39, 0, time.Local)
	require.NoError(t, b.Append(row(t, s, base, "a", value.Int(1), "m")))
	require.NoError(t, b.Append(row(t, s, base, "a", value.Int(3), "m")))
	require.NoError(t, b.Append(row(t, s, base, "b", value.Int(5), "m")))
	require.NoError(t, b.Append(row(t, s, base, "a", value.Null(), "m")))
	require.NoError(t, b.Append(row(t, s, base, "b", value.Int(7), "m")))
	b.Seal()
	return b
}

func TestExecute_GroupBy(t *testing.T) {
	s := syslogSchema(t)
	b := groupedBatch(t, s)
	plan, err := Compile(`select logsource, count(*) as n, count(pid) as with_pid, sum(pid) as total, `+
		`min(pid) as lo, max(pid) as hi, avg(pid) as mean from SYSLOGLINE group by logsource`, s)
	require.NoError(t, err)

	out, err := plan.Execute(b)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"logsource", "n", "with_pid", "total", "lo", "hi", "mean"}, out.Schema().Columns())

	// groups come out in first-seen row order
	first, second := out.Record(0), out.Record(1)
	src, _ := first.ValueOf("logsource")
	assert.Equal(t, "a", src.Str())
	n, _ := first.ValueOf("n")
	assert.Equal(t, int64(3), n.Int())
	withPid, _ := first.ValueOf("with_pid")
	assert.Equal(t, int64(2), withPid.Int())
	total, _ := first.ValueOf("total")
	assert.Equal(t, int64(4), total.Int())
	lo, _ := first.ValueOf("lo")
	assert.Equal(t, int64(1), lo.Int())
	hi, _ := first.ValueOf("hi")
	assert.Equal(t, int64(3), hi.Int())
	mean, _ := first.ValueOf("mean")
	assert.Equal(t, 2.0, mean.Float())

	src, _ = second.ValueOf("logsource")
	assert.Equal(t, "b", src.Str())
	total, _ = second.ValueOf("total")
	assert.Equal(t, int64(12), total.Int())
	mean, _ = second.ValueOf("mean")
	assert.Equal(t, 6.0, mean.Float())

	// repeated execution yields identical output
	again, err := plan.Execute(b)
	require.NoError(t, err)
	require.Equal(t, out.Len(), again.Len())
	for i := 0; i < out.Len(); i++ {
		assert.Equal(t, out.Record(i).Values(), again.Record(i).Values())
	}
}

func TestExecute_GroupByWithoutAggregates(t *testing.T) {
	s := syslogSchema(t)
	b := groupedBatch(t, s) // sources a,a,b,a,b
	plan, err := Compile(`select logsource from SYSLOGLINE group by logsource`, s)
	require.NoError(t, err)
	out, err := plan.Execute(b)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	var got []string
	for i := 0; i < out.Len(); i++ {
		src, _ := out.Record(i).ValueOf("logsource")
		got = append(got, src.Str())
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestExecute_GroupByDefaultNames(t *testing.T) {
	s := syslogSchema(t)
	plan, err := Compile(`select logsource, count(*), sum(pid) from SYSLOGLINE group by logsource`, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"logsource", "count", "sum_pid"}, plan.Schema().Columns())
}

func TestExecute_GlobalAggregate(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5) // pids 100..104

	t.Run("filter feeds the fold", func(t *testing.T) {
		plan, err := Compile(`select count(*) as n, max(pid) as hi from SYSLOGLINE where pid >= 101`, s)
		require.NoError(t, err)
		out, err := plan.Execute(batch)
		require.NoError(t, err)
		require.Equal(t, 1, out.Len())
		n, _ := out.Record(0).ValueOf("n")
		assert.Equal(t, int64(4), n.Int())
		hi, _ := out.Record(0).ValueOf("hi")
		assert.Equal(t, int64(104), hi.Int())
	})
	t.Run("no matching rows means no groups", func(t *testing.T) {
		plan, err := Compile(`select count(*) as n from SYSLOGLINE where pid > 1000`, s)
		require.NoError(t, err)
		out, err := plan.Execute(batch)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})
	t.Run("empty batch means no groups", func(t *testing.T) {
		empty := record.NewBatch(s, 0)
		empty.Seal()
		plan, err := Compile(`select count(*) as n from SYSLOGLINE`, s)
		require.NoError(t, err)
		out, err := plan.Execute(empty)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})
}

func TestExecute_CountDistinct(t *testing.T) {
	s := syslogSchema(t)
	b := groupedBatch(t, s) // sources a,a,b,a,b with pids 1,3,5,null,7
	plan, err := Compile(`select count(distinct logsource) as sources, count(distinct pid) as pids from SYSLOGLINE`, s)
	require.NoError(t, err)
	out, err := plan.Execute(b)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	sources, _ := out.Record(0).ValueOf("sources")
	assert.Equal(t, int64(2), sources.Int())
	// the null pid does not count as a distinct value
	pids, _ := out.Record(0).ValueOf("pids")
	assert.Equal(t, int64(4), pids.Int())
}

func TestExecute_GroupLimitOffset(t *testing.T) {
	s := syslogSchema(t)
	batch := matchingBatch(t, s, 5) // hosts host-0..host-4, one row each
	plan, err := Compile(`select logsource, count(*) as n from SYSLOGLINE group by logsource limit 2 offset 1`, s)
	require.NoError(t, err)
	out, err := plan.Execute(batch)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	// offset and limit apply to group rows, in first-seen order
	for i := 0; i < 2; i++ {
		src, _ := out.Record(i).ValueOf("logsource")
		assert.Equal(t, fmt.Sprintf("host-%d", i+1), src.Str())
	}
}

func TestExecute_WrongSchema(t *testing.T) {
	s := syslogSchema(t)
	other := syslogSchema(t)
	plan, err := Compile(`select * from SYSLOGLINE`, s)
	require.NoError(t, err)
	b := record.NewBatch(other, 0)
	b.Seal()
	_, err = plan.Execute(b)
	assert.ErrorIs(t, err, ErrWrongSchema)
}
