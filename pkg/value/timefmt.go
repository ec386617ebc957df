package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTimeFormat = errors.New("invalid time format")
)

// strftime conversion specifiers mapped to Go reference-time layout elements.
// Only the subset that appears in log timestamp formats is supported; an
// unknown specifier is a format compile error rather than a silent literal.
var layoutElements = map[string]string{
	"%a":  "Mon",
	"%A":  "Monday",
	"%b":  "Jan",
	"%B":  "January",
	"%d":  "02",
	"%e":  "_2",
	"%H":  "15",
	"%I":  "03",
	"%j":  "002",
	"%m":  "01",
	"%M":  "04",
	"%p":  "PM",
	"%S":  "05",
	"%y":  "06",
	"%Y":  "2006",
	"%z":  "-0700",
	"%:z": "-07:00",
	"%Z":  "MST",
	"%3f": "000",
	"%6f": "000000",
	"%9f": "000000000",
	"%%":  "%",
}

var yearSpecifiers = []string{"%Y", "%y"}
var zoneSpecifiers = []string{"%z", "%:z", "%Z"}

// TimeFormat is a compiled strftime-style timestamp format.
//
// Formats that carry no year (common for syslog) are parsed by appending the
// current year, and formats that carry no zone are interpreted in the local
// time zone, the same way the original field declarations expect.
type TimeFormat struct {
	spec    string
	layout  string
	hasYear bool
	hasZone bool
}

// CompileTimeFormat translates a strftime-style format into a TimeFormat.
func CompileTimeFormat(spec string) (*TimeFormat, error) {
	var (
		layout  strings.Builder
		hasYear bool
		hasZone bool
	)
	for _, ys := range yearSpecifiers {
		if strings.Contains(spec, ys) {
			hasYear = true
		}
	}
	for _, zs := range zoneSpecifiers {
		if strings.Contains(spec, zs) {
			hasZone = true
		}
	}
	rest := spec
	for len(rest) > 0 {
		if rest[0] != '%' {
			layout.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}
		matched := false
		// longest specifiers first so %:z wins over %z lookups failing
		for _, width := range []int{3, 2} {
			if len(rest) < width {
				continue
			}
			if el, ok := layoutElements[rest[:width]]; ok {
				layout.WriteString(el)
				rest = rest[width:]
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: unsupported specifier at %q in %q", ErrTimeFormat, rest, spec)
		}
	}
	return &TimeFormat{
		spec:    spec,
		layout:  layout.String(),
		hasYear: hasYear,
		hasZone: hasZone,
	}, nil
}

func (f *TimeFormat) Spec() string {
	return f.spec
}

// Parse interprets s according to the compiled format.
func (f *TimeFormat) Parse(s string) (time.Time, error) {
	layout, value := f.layout, s
	if !f.hasYear {
		layout += " 2006"
		value += " " + strconv.Itoa(time.Now().Year())
	}
	if f.hasZone {
		return time.Parse(layout, value)
	}
	return time.ParseInLocation(layout, value, time.Local)
}
