// Package timeseries turns raw historical rows from the broker into a
// canonical, ordered OHLCV series.
package timeseries

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/shopspring/decimal"
)

// RawRow is one row of the broker's historical response, keyed by whatever
// field names the broker used.
type RawRow map[string]interface{}

// Field aliases in priority order. The first present key wins.
var (
	datetimeFields = []string{"timestamp", "dateTime", "time", "datetime"}
	openFields     = []string{"open"}
	highFields     = []string{"high"}
	lowFields      = []string{"low"}
	closeFields    = []string{"close", "ltp"}
	volumeFields   = []string{"volume", "vol"}
)

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
}

// DataError describes a value that could not be coerced. Row is the index in
// the input slice.
type DataError struct {
	Row    int
	Field  string
	Value  interface{}
	Reason string
}

func (e DataError) Error() string {
	return fmt.Sprintf("row %d: field %s: %s (value %v)", e.Row, e.Field, e.Reason, e.Value)
}

// Result is a normalized series plus the problems met while building it
type Result struct {
	Bars   []models.Bar
	Issues []DataError
}

// Normalize maps field-name variants onto the canonical bar shape, coerces
// numbers, sorts by datetime and keeps the last-seen row for duplicate
// timestamps. Datetimes are converted to UTC; layouts without an offset are
// read as UTC. Unparseable numeric values become missing values; rows without
// a usable datetime are dropped. Both cases are reported in Result.Issues.
func Normalize(rows []RawRow) Result {
	var res Result

	type indexed struct {
		seq int
		bar models.Bar
	}
	parsed := make([]indexed, 0, len(rows))

	for i, row := range rows {
		key, raw, ok := lookup(row, datetimeFields)
		if !ok {
			res.Issues = append(res.Issues, DataError{Row: i, Field: "datetime", Reason: "missing"})
			continue
		}
		ts, err := parseDatetime(raw)
		if err != nil {
			res.Issues = append(res.Issues, DataError{Row: i, Field: key, Value: raw, Reason: err.Error()})
			continue
		}

		bar := models.Bar{Datetime: ts.UTC()}
		bar.Open = res.decimalField(i, row, openFields)
		bar.High = res.decimalField(i, row, highFields)
		bar.Low = res.decimalField(i, row, lowFields)
		bar.Close = res.decimalField(i, row, closeFields)
		bar.Volume = res.volumeField(i, row)

		parsed = append(parsed, indexed{seq: i, bar: bar})
	}

	sort.SliceStable(parsed, func(a, b int) bool {
		return parsed[a].bar.Datetime.Before(parsed[b].bar.Datetime)
	})

	// Stable sort keeps input order among equal timestamps, so the last
	// element of each run is the last-seen row.
	res.Bars = make([]models.Bar, 0, len(parsed))
	for _, p := range parsed {
		n := len(res.Bars)
		if n > 0 && res.Bars[n-1].Datetime.Equal(p.bar.Datetime) {
			res.Bars[n-1] = p.bar
			continue
		}
		res.Bars = append(res.Bars, p.bar)
	}

	return res
}

func (r *Result) decimalField(row int, raw RawRow, names []string) decimal.NullDecimal {
	key, value, ok := lookup(raw, names)
	if !ok {
		return decimal.NullDecimal{}
	}
	d, err := toDecimal(value)
	if err != nil {
		r.Issues = append(r.Issues, DataError{Row: row, Field: key, Value: value, Reason: err.Error()})
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (r *Result) volumeField(row int, raw RawRow) sql.NullInt64 {
	key, value, ok := lookup(raw, volumeFields)
	if !ok {
		return sql.NullInt64{}
	}
	d, err := toDecimal(value)
	if err != nil {
		r.Issues = append(r.Issues, DataError{Row: row, Field: key, Value: value, Reason: err.Error()})
		return sql.NullInt64{}
	}
	if !d.Equal(d.Truncate(0)) {
		r.Issues = append(r.Issues, DataError{Row: row, Field: key, Value: value, Reason: "volume is not an integer"})
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: d.IntPart(), Valid: true}
}

func lookup(row RawRow, names []string) (string, interface{}, bool) {
	for _, name := range names {
		if v, ok := row[name]; ok && v != nil {
			return name, v, true
		}
	}
	return "", nil, false
}

func toDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if s == "" {
			return decimal.Decimal{}, fmt.Errorf("empty value")
		}
		return decimal.NewFromString(s)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", value)
	}
}

// parseDatetime accepts layout strings and epoch numbers. Epoch values above
// 1e12 are taken as milliseconds.
func parseDatetime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n), nil
		}
		return time.Time{}, fmt.Errorf("unrecognised datetime format")
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return time.Time{}, fmt.Errorf("invalid epoch: %w", err)
			}
			n = int64(f)
		}
		return fromEpoch(n), nil
	case float64:
		return fromEpoch(int64(v)), nil
	case int64:
		return fromEpoch(v), nil
	case int:
		return fromEpoch(int64(v)), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", value)
	}
}

func fromEpoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
