package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Descriptor is a normalized filter ready to be sent to a query executor.
type Descriptor struct {
	Field    string
	Operator Operator
	Value    Value
}

type wireDescriptor struct {
	Field    string          `json:"field"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Validate checks that the value shape matches the operator.
func (d Descriptor) Validate() error {
	if d.Field == "" {
		return &ConfigurationError{Operator: d.Operator, Reason: "empty field"}
	}
	bad := func(reason string) error {
		return &ConfigurationError{Field: d.Field, Operator: d.Operator, Reason: reason}
	}
	switch d.Operator {
	case OpContains, OpStartsWith, OpEndsWith:
		if _, ok := d.Value.(String); !ok {
			return bad("text value required")
		}
	case OpEquals, OpGreaterThan, OpLessThan:
		if _, ok := d.Value.(Scalar); !ok {
			return bad("scalar value required")
		}
	case OpBetween:
		r, ok := d.Value.(Range)
		if !ok || r.From == nil || r.To == nil {
			return bad("both bounds required")
		}
	case OpIsAnyOf:
		l, ok := d.Value.(List)
		if !ok || len(l) == 0 {
			return bad("non-empty list required")
		}
	case OpIsEmpty, OpIsNotEmpty:
		if _, ok := d.Value.(None); !ok && d.Value != nil {
			return bad("no value allowed")
		}
	default:
		return bad("unknown operator")
	}
	return nil
}

// MarshalJSON omits value for isEmpty and isNotEmpty.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	w := wireDescriptor{
		Field:    d.Field,
		Operator: d.Operator,
	}
	if d.Operator.HasValue() {
		bs, err := json.Marshal(wireValue(d.Value))
		if err != nil {
			return nil, err
		}
		w.Value = bs
	}
	return json.Marshal(w)
}

func (d *Descriptor) UnmarshalJSON(bs []byte) error {
	w := wireDescriptor{}
	if err := json.Unmarshal(bs, &w); err != nil {
		return err
	}
	res := Descriptor{Field: w.Field, Operator: w.Operator}
	var err error
	switch w.Operator {
	case OpIsEmpty, OpIsNotEmpty:
		res.Value = None{}
	case OpIsAnyOf:
		var ss []Scalar
		ss, err = decodeScalars(w.Value)
		res.Value = List(ss)
	case OpBetween:
		var ss []Scalar
		ss, err = decodeScalars(w.Value)
		if err == nil && len(ss) != 2 {
			err = fmt.Errorf("between expects 2 values, got %d", len(ss))
		}
		if err == nil {
			res.Value = Range{From: ss[0], To: ss[1]}
		}
	default:
		if len(w.Value) == 0 {
			err = fmt.Errorf("missing value")
			break
		}
		res.Value, err = decodeScalar(w.Value)
	}
	if err != nil {
		return fmt.Errorf("filter %s %s: %w", w.Field, w.Operator, err)
	}
	if err := res.Validate(); err != nil {
		return err
	}
	*d = res
	return nil
}

// Equal compares descriptors by their wire form.
func (d Descriptor) Equal(o Descriptor) bool {
	a, errA := json.Marshal(d)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (d Descriptor) String() string {
	if !d.Operator.HasValue() {
		return fmt.Sprintf("%s %s", d.Field, d.Operator)
	}
	bs, _ := json.Marshal(wireValue(d.Value))
	return fmt.Sprintf("%s %s %s", d.Field, d.Operator, bs)
}

// ConfigurationError reports a malformed filter value. Such a filter is
// never forwarded to the fetch function.
type ConfigurationError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid filter on `%s` (%s): %s", e.Field, e.Operator, e.Reason)
}
