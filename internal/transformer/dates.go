package transformer

import (
	"math"
	"strconv"
	"time"

	"tabetl/internal/table"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical rendering of an inferred date.
const DateLayout = "2006-01-02 15:04:05"

// EpochPolicy decides how numeric date columns are scaled.
type EpochPolicy string

const (
	// EpochLegacy divides every numeric value by 1000, whatever its width.
	EpochLegacy EpochPolicy = "legacy"
	// EpochAuto reads values of at most 10 digits as seconds and values of
	// 13 or more digits as milliseconds.
	EpochAuto EpochPolicy = "auto"
)

type DateOptions struct {
	Policy EpochPolicy
	// Location renders epochs and interprets strings without a zone.
	// Nil means time.Local.
	Location *time.Location
}

// DateKind is what the first non-null cell of a date column looked like.
type DateKind string

const (
	DateNumeric DateKind = "numeric"
	DateString  DateKind = "string"
	DateOther   DateKind = "other"
	DateMissing DateKind = "missing"
	DateEmpty   DateKind = "empty"
)

// DateReport describes what InferDates did to one column.
type DateReport struct {
	Column string
	Kind   DateKind
	// Unit is "seconds" or "milliseconds" for converted numeric columns.
	Unit      string
	Converted int
	Nulled    int
	// Skipped is set when the column was left untouched.
	Skipped string
}

// InferDates rewrites each named column into canonical date strings. Absent
// and all-null columns are skipped. A numeric column is read as a Unix
// epoch, scaled per Policy; string and other columns are parsed cell by
// cell. Cells that cannot be converted become null. It never fails.
func InferDates(t *table.Table, columns []string, opts DateOptions) []DateReport {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	policy := opts.Policy
	if policy == "" {
		policy = EpochLegacy
	}

	reports := make([]DateReport, 0, len(columns))
	for _, name := range columns {
		vals, ok := t.Column(name)
		if !ok {
			reports = append(reports, DateReport{Column: name, Kind: DateMissing, Skipped: "column not found"})
			continue
		}
		first, ok := firstNonNull(vals)
		if !ok {
			reports = append(reports, DateReport{Column: name, Kind: DateEmpty, Skipped: "no non-null values"})
			continue
		}

		var rep DateReport
		if first.IsNumeric() {
			rep = convertEpochs(vals, first, policy, loc)
		} else {
			rep = parseDates(vals, loc)
			if first.Kind() != table.KindString {
				rep.Kind = DateOther
			}
		}
		rep.Column = name
		reports = append(reports, rep)
	}
	return reports
}

func firstNonNull(vals []table.Value) (table.Value, bool) {
	for _, v := range vals {
		if !v.IsNull() {
			if v.Kind() == table.KindFloat && math.IsNaN(v.AsFloat()) {
				continue
			}
			return v, true
		}
	}
	return table.Null(), false
}

// epochDigits counts the digits of the integer part of v.
func epochDigits(v table.Value) int {
	var n int64
	if v.Kind() == table.KindInt {
		n = v.AsInt()
	} else {
		n = int64(v.AsFloat())
	}
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return len(s) - 1
	}
	return len(s)
}

func convertEpochs(vals []table.Value, first table.Value, policy EpochPolicy, loc *time.Location) DateReport {
	rep := DateReport{Kind: DateNumeric}

	digits := epochDigits(first)
	var divide bool
	switch {
	case digits <= 10:
		rep.Unit = "seconds"
		divide = policy != EpochAuto
	case digits >= 13:
		rep.Unit = "milliseconds"
		divide = true
	default:
		rep.Skipped = "epoch width of " + strconv.Itoa(digits) + " digits is neither seconds nor milliseconds"
		return rep
	}

	for i, v := range vals {
		if v.IsNull() {
			continue
		}
		ts, ok := epochTime(v, divide)
		if !ok {
			vals[i] = table.Null()
			rep.Nulled++
			continue
		}
		vals[i] = table.String(ts.In(loc).Format(DateLayout))
		rep.Converted++
	}
	return rep
}

// maxEpochSeconds is 9999-12-31T23:59:59Z.
const maxEpochSeconds = 253402300799

func epochTime(v table.Value, divide bool) (time.Time, bool) {
	switch v.Kind() {
	case table.KindInt:
		n := v.AsInt()
		if divide {
			// Floor division keeps whole seconds for negative epochs too.
			sec, ms := n/1000, n%1000
			if ms < 0 {
				sec--
				ms += 1000
			}
			return boundedUnix(sec, ms*int64(time.Millisecond))
		}
		return boundedUnix(n, 0)
	case table.KindFloat:
		f := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, false
		}
		if divide {
			f /= 1000
		}
		if math.Abs(f) > maxEpochSeconds {
			return time.Time{}, false
		}
		sec := math.Floor(f)
		return boundedUnix(int64(sec), int64((f-sec)*1e9))
	default:
		return time.Time{}, false
	}
}

func boundedUnix(sec, nsec int64) (time.Time, bool) {
	if sec > maxEpochSeconds || sec < -maxEpochSeconds {
		return time.Time{}, false
	}
	return time.Unix(sec, nsec), true
}

func parseDates(vals []table.Value, loc *time.Location) DateReport {
	rep := DateReport{Kind: DateString}
	for i, v := range vals {
		if v.IsNull() {
			continue
		}
		if v.Kind() != table.KindString {
			vals[i] = table.Null()
			rep.Nulled++
			continue
		}
		ts, err := dateparse.ParseIn(v.AsString(), loc)
		if err != nil {
			vals[i] = table.Null()
			rep.Nulled++
			continue
		}
		vals[i] = table.String(ts.Format(DateLayout))
		rep.Converted++
	}
	return rep
}
