package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Value is the operator dependent payload of a Descriptor. The concrete
// types are String, Number, Date (scalars), Range, List and None.
type Value interface {
	isValue()
}

// Scalar is a single comparable value.
type Scalar interface {
	Value
	// Text is the canonical wire text of the scalar.
	Text() string
	wire() interface{}
}

type String string

type Number float64

type Date time.Time

// Range is the inclusive [From, To] tuple used by between.
type Range struct {
	From Scalar
	To   Scalar
}

// List is the non-empty set of candidates used by isAnyOf.
type List []Scalar

// None is carried by isEmpty and isNotEmpty.
type None struct{}

func (String) isValue() {}
func (Number) isValue() {}
func (Date) isValue()   {}
func (Range) isValue()  {}
func (List) isValue()   {}
func (None) isValue()   {}

func (s String) Text() string { return string(s) }

func (n Number) Text() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }

func (d Date) Text() string { return time.Time(d).UTC().Format(time.RFC3339Nano) }

func (s String) wire() interface{} { return string(s) }
func (n Number) wire() interface{} { return float64(n) }
func (d Date) wire() interface{}   { return d.Text() }

func wireValue(v Value) interface{} {
	switch vv := v.(type) {
	case Scalar:
		return vv.wire()
	case Range:
		return []interface{}{vv.From.wire(), vv.To.wire()}
	case List:
		res := make([]interface{}, 0, len(vv))
		for _, s := range vv {
			res = append(res, s.wire())
		}
		return res
	}
	return nil
}

func decodeScalar(raw json.RawMessage) (Scalar, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return scalarOf(v)
}

func scalarOf(v interface{}) (Scalar, error) {
	switch vv := v.(type) {
	case float64:
		return Number(vv), nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, vv); err == nil {
			return Date(t), nil
		}
		return String(vv), nil
	}
	return nil, fmt.Errorf("unsupported filter value %v (%T)", v, v)
}

func decodeScalars(raw json.RawMessage) ([]Scalar, error) {
	var vs []interface{}
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, err
	}
	res := make([]Scalar, 0, len(vs))
	for _, v := range vs {
		s, err := scalarOf(v)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}
