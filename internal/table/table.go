package table

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Column describes one table column over rows of type R.
type Column[R any] struct {
	ID         string
	Kind       ColumnKind
	Value      func(R) string
	Sortable   bool
	Searchable bool
}

// Query is the user's current filter and sort state.
type Query struct {
	Filters map[string]FilterValue
	Search  string
	SortBy  string
	Desc    bool
}

// Apply returns the rows passing every column filter and the global search,
// sorted stably by the chosen column. The input slice is not modified.
func Apply[R any](rows []R, cols []Column[R], q Query) ([]R, error) {
	byID := make(map[string]Column[R], len(cols))
	for _, c := range cols {
		byID[c.ID] = c
	}
	type active struct {
		col Column[R]
		f   FilterValue
	}
	var filters []active
	for id, f := range q.Filters {
		col, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", id)
		}
		filters = append(filters, active{col, f})
	}
	search := strings.TrimSpace(q.Search)

	out := make([]R, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, a := range filters {
			if !a.col.match(row, a.f) {
				keep = false
				break
			}
		}
		if keep && search != "" {
			keep = matchesSearch(row, cols, search)
		}
		if keep {
			out = append(out, row)
		}
	}

	if q.SortBy != "" {
		col, ok := byID[q.SortBy]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", q.SortBy)
		}
		if !col.Sortable {
			return nil, fmt.Errorf("column %q is not sortable", q.SortBy)
		}
		slices.SortStableFunc(out, func(a, b R) int {
			c := compareValues(col.Kind, col.Value(a), col.Value(b))
			if q.Desc {
				return -c
			}
			return c
		})
	}
	return out, nil
}

func matchesSearch[R any](row R, cols []Column[R], search string) bool {
	for _, c := range cols {
		if c.Searchable && containsFold(c.Value(row), search) {
			return true
		}
	}
	return false
}

// compareValues orders empty values last and compares numbers and dates by
// value.
func compareValues(kind ColumnKind, a, b string) int {
	ea, eb := isEmptyValue(a), isEmptyValue(b)
	switch {
	case ea && eb:
		return 0
	case ea:
		return 1
	case eb:
		return -1
	}
	switch kind {
	case Numeric:
		na, errA := strconv.ParseFloat(a, 64)
		nb, errB := strconv.ParseFloat(b, 64)
		if errA == nil && errB == nil {
			return cmp.Compare(na, nb)
		}
	case Date:
		ta, okA := ParseDate(a)
		tb, okB := ParseDate(b)
		if okA && okB {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
