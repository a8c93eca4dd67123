package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// State is the raw state of a UI filter widget. Normalize returns
// (nil, nil) when the widget has nothing selected, which removes the filter.
type State interface {
	Normalize(field string) (*Descriptor, error)
}

func invalid(field string, op Operator, reason string) error {
	return &ConfigurationError{Field: field, Operator: op, Reason: reason}
}

// TextState is a free text input with an operator picker.
type TextState struct {
	Operator Operator
	Value    string
}

func (s TextState) Normalize(field string) (*Descriptor, error) {
	switch s.Operator {
	case OpContains, OpEquals, OpStartsWith, OpEndsWith:
		v := strings.TrimSpace(s.Value)
		if v == "" {
			return nil, nil
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: String(v)}, nil
	case OpIsEmpty, OpIsNotEmpty:
		return &Descriptor{Field: field, Operator: s.Operator, Value: None{}}, nil
	case OpIsAnyOf, OpBetween, OpGreaterThan, OpLessThan:
		return nil, invalid(field, s.Operator, "not supported by text filters")
	}
	return nil, invalid(field, s.Operator, "unknown operator")
}

// SelectState is a multi-select. The default operator is isAnyOf;
// MatchAll ("all of") is only expressible for a single selected value.
type SelectState struct {
	Operator Operator
	Values   []string
	MatchAll bool
}

func (s SelectState) Normalize(field string) (*Descriptor, error) {
	op := s.Operator
	if op == "" {
		op = OpIsAnyOf
	}
	switch op {
	case OpIsAnyOf:
		values := trimValues(s.Values)
		if len(values) == 0 {
			return nil, nil
		}
		if s.MatchAll {
			if len(values) > 1 {
				return nil, invalid(field, op, "matching all of several values is not supported")
			}
			return &Descriptor{Field: field, Operator: OpEquals, Value: String(values[0])}, nil
		}
		return &Descriptor{
			Field:    field,
			Operator: OpIsAnyOf,
			Value:    List(lo.Map(values, func(v string, _ int) Scalar { return String(v) })),
		}, nil
	case OpIsEmpty, OpIsNotEmpty:
		return &Descriptor{Field: field, Operator: op, Value: None{}}, nil
	case OpContains, OpEquals, OpStartsWith, OpEndsWith, OpBetween, OpGreaterThan, OpLessThan:
		return nil, invalid(field, op, "not supported by select filters")
	}
	return nil, invalid(field, op, "unknown operator")
}

// NumberState holds the raw text of a numeric filter widget.
// Value is used by equals/greaterThan/lessThan, From and To by between,
// Values by isAnyOf.
type NumberState struct {
	Operator Operator
	Value    string
	From     string
	To       string
	Values   []string
}

func (s NumberState) Normalize(field string) (*Descriptor, error) {
	switch s.Operator {
	case OpEquals, OpGreaterThan, OpLessThan:
		v := strings.TrimSpace(s.Value)
		if v == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, invalid(field, s.Operator, "not a number: "+v)
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: Number(n)}, nil
	case OpBetween:
		from, to := strings.TrimSpace(s.From), strings.TrimSpace(s.To)
		if from == "" && to == "" {
			return nil, nil
		}
		if from == "" || to == "" {
			return nil, invalid(field, s.Operator, "both bounds required")
		}
		low, err := strconv.ParseFloat(from, 64)
		if err != nil {
			return nil, invalid(field, s.Operator, "not a number: "+from)
		}
		high, err := strconv.ParseFloat(to, 64)
		if err != nil {
			return nil, invalid(field, s.Operator, "not a number: "+to)
		}
		if low > high {
			return nil, invalid(field, s.Operator, "lower bound above upper bound")
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: Range{From: Number(low), To: Number(high)}}, nil
	case OpIsAnyOf:
		values := trimValues(s.Values)
		if len(values) == 0 {
			return nil, nil
		}
		list := make(List, 0, len(values))
		for _, v := range values {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, invalid(field, s.Operator, "not a number: "+v)
			}
			list = append(list, Number(n))
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: list}, nil
	case OpIsEmpty, OpIsNotEmpty:
		return &Descriptor{Field: field, Operator: s.Operator, Value: None{}}, nil
	case OpContains, OpStartsWith, OpEndsWith:
		return nil, invalid(field, s.Operator, "not supported by number filters")
	}
	return nil, invalid(field, s.Operator, "unknown operator")
}

// DateState is a date picker: greaterThan is "after" (uses From),
// lessThan is "before" (uses To), between uses both. Zero times are unset.
type DateState struct {
	Operator Operator
	From     time.Time
	To       time.Time
}

func (s DateState) Normalize(field string) (*Descriptor, error) {
	switch s.Operator {
	case OpGreaterThan, OpEquals:
		if s.From.IsZero() {
			return nil, nil
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: Date(s.From)}, nil
	case OpLessThan:
		if s.To.IsZero() {
			return nil, nil
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: Date(s.To)}, nil
	case OpBetween:
		if s.From.IsZero() && s.To.IsZero() {
			return nil, nil
		}
		if s.From.IsZero() || s.To.IsZero() {
			return nil, invalid(field, s.Operator, "both bounds required")
		}
		if s.From.After(s.To) {
			return nil, invalid(field, s.Operator, "start after end")
		}
		return &Descriptor{Field: field, Operator: s.Operator, Value: Range{From: Date(s.From), To: Date(s.To)}}, nil
	case OpIsEmpty, OpIsNotEmpty:
		return &Descriptor{Field: field, Operator: s.Operator, Value: None{}}, nil
	case OpContains, OpStartsWith, OpEndsWith, OpIsAnyOf:
		return nil, invalid(field, s.Operator, "not supported by date filters")
	}
	return nil, invalid(field, s.Operator, "unknown operator")
}

// Preset wraps an already built descriptor, e.g. one parsed from an
// expression, so it can go through the same mutation path as widget state.
type Preset Descriptor

func (p Preset) Normalize(field string) (*Descriptor, error) {
	d := Descriptor(p)
	d.Field = field
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Normalize turns widget state into a descriptor. A nil state removes the filter.
func Normalize(field string, s State) (*Descriptor, error) {
	if s == nil {
		return nil, nil
	}
	return s.Normalize(field)
}

// trimValues trims every entry and drops the empty ones, without dedup.
func trimValues(values []string) []string {
	return lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	})
}
