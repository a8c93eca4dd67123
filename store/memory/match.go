package memory

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/DaoCloud/listcache/filter"
)

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02"}

func parseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// compareIndex orders two index values, numerically or chronologically when
// both sides allow it.
func compareIndex(a, b string) int {
	if fa, ok := parseNumber(a); ok {
		if fb, ok := parseNumber(b); ok {
			return compareFloat(fa, fb)
		}
	}
	if ta, ok := parseTime(a); ok {
		if tb, ok := parseTime(b); ok {
			return compareTime(ta, tb)
		}
	}
	return strings.Compare(a, b)
}

// compare orders an index value against a filter scalar, using the scalar
// type. The index value must parse as that type; text compares without case.
func compare(v string, s filter.Scalar) (int, bool) {
	switch sv := s.(type) {
	case filter.Number:
		f, ok := parseNumber(v)
		if !ok {
			return 0, false
		}
		return compareFloat(f, float64(sv)), true
	case filter.Date:
		t, ok := parseTime(v)
		if !ok {
			return 0, false
		}
		return compareTime(t, time.Time(sv)), true
	case filter.String:
		return strings.Compare(strings.ToLower(v), strings.ToLower(string(sv))), true
	}
	return 0, false
}

func textOf(d filter.Descriptor) string {
	if s, ok := d.Value.(filter.Scalar); ok {
		return strings.ToLower(s.Text())
	}
	return ""
}

func match(index map[string]string, d filter.Descriptor) bool {
	v := index[d.Field]
	switch d.Operator {
	case filter.OpContains:
		return strings.Contains(strings.ToLower(v), textOf(d))
	case filter.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(v), textOf(d))
	case filter.OpEndsWith:
		return strings.HasSuffix(strings.ToLower(v), textOf(d))
	case filter.OpEquals, filter.OpGreaterThan, filter.OpLessThan:
		s, ok := d.Value.(filter.Scalar)
		if !ok {
			return false
		}
		c, ok := compare(v, s)
		if !ok {
			return false
		}
		switch d.Operator {
		case filter.OpGreaterThan:
			return c > 0
		case filter.OpLessThan:
			return c < 0
		}
		return c == 0
	case filter.OpBetween:
		r, ok := d.Value.(filter.Range)
		if !ok {
			return false
		}
		low, okLow := compare(v, r.From)
		high, okHigh := compare(v, r.To)
		return okLow && okHigh && low >= 0 && high <= 0
	case filter.OpIsAnyOf:
		l, _ := d.Value.(filter.List)
		return lo.SomeBy(l, func(s filter.Scalar) bool {
			c, ok := compare(v, s)
			return ok && c == 0
		})
	case filter.OpIsEmpty:
		return strings.TrimSpace(v) == ""
	case filter.OpIsNotEmpty:
		return strings.TrimSpace(v) != ""
	}
	return false
}

// matchAll ANDs the filters.
func matchAll(index map[string]string, filters []filter.Descriptor) bool {
	for _, d := range filters {
		if !match(index, d) {
			return false
		}
	}
	return true
}
