// Package table projects raw records into display rows and filters and
// sorts them the way the dashboard tables do.
package table

import (
	"strings"
	"time"
)

// EmptySentinel is the filter value that selects rows whose value is empty.
const EmptySentinel = "empty"

type ColumnKind int

const (
	Text ColumnKind = iota
	// Numeric values are matched as text against their string form.
	Numeric
	// Date values are ISO dates; filters are a single day or a DateRange.
	Date
	// Exact values, such as statuses, must equal the filter.
	Exact
)

// FilterValue is either a Token or a DateRange.
type FilterValue interface {
	filterValue()
}

// Token is a plain filter string. On date columns it names a single day.
type Token string

// DateRange bounds a date column; either side may be empty.
type DateRange struct {
	Start string
	End   string
}

func (Token) filterValue()     {}
func (DateRange) filterValue() {}

func isEmptyValue(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "-"
}

// matchToken applies the shared empty-value rules and then cmp.
func matchToken(value string, token string, cmp func(value, token string) bool) bool {
	if token == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(token), EmptySentinel) {
		return isEmptyValue(value)
	}
	if isEmptyValue(value) {
		return false
	}
	return cmp(value, token)
}

func containsFold(value, token string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(token))
}

func equalValue(value, token string) bool { return value == token }

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses the ISO forms the server and the filter inputs use.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// day truncates t to its calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func matchDate(value string, f FilterValue) bool {
	switch f := f.(type) {
	case nil:
		return true
	case Token:
		return matchToken(value, string(f), func(value, token string) bool {
			v, ok := ParseDate(value)
			want, ok2 := ParseDate(token)
			return ok && ok2 && day(v).Equal(day(want))
		})
	case DateRange:
		if f.Start == "" && f.End == "" {
			return true
		}
		v, ok := ParseDate(value)
		if !ok {
			return false
		}
		v = day(v)
		if f.Start != "" {
			start, ok := ParseDate(f.Start)
			if !ok || v.Before(day(start)) {
				return false
			}
		}
		if f.End != "" {
			end, ok := ParseDate(f.End)
			if !ok || v.After(day(end)) {
				return false
			}
		}
		return true
	}
	return false
}

func (col Column[R]) match(row R, f FilterValue) bool {
	value := col.Value(row)
	if col.Kind == Date {
		return matchDate(value, f)
	}
	tok, ok := f.(Token)
	if !ok {
		return false
	}
	switch col.Kind {
	case Exact:
		return matchToken(value, string(tok), equalValue)
	default:
		return matchToken(value, string(tok), containsFold)
	}
}
