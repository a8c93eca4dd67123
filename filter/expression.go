package filter

import (
	"fmt"
	"strconv"
	"strings"

	k8labels "k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
)

// ParseExpression parses a selector style expression such as
//
//	site=north,species in (oak,ash),age>3,!notes,planted_by
//
// into descriptors, ordered by field. `=`/`==` is equals, a bare key is
// isNotEmpty, `!key` is isEmpty, `>`/`<` take an integer bound. `in` is isAnyOf
// over a set: its values come back deduplicated and sorted, unlike the
// select widget which keeps them as entered.
func ParseExpression(expr string) ([]Descriptor, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	reqs, err := k8labels.ParseToRequirements(expr)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse the filter expression \"%s\": %v", expr, err)
	}
	res := make([]Descriptor, 0, len(reqs))
	for _, req := range reqs {
		d := Descriptor{Field: req.Key()}
		values := req.Values().List()
		switch req.Operator() {
		case selection.Equals, selection.DoubleEquals:
			if len(values) != 1 {
				return nil, fmt.Errorf("equals operator must have exactly one value")
			}
			d.Operator = OpEquals
			d.Value = String(values[0])
		case selection.In:
			d.Operator = OpIsAnyOf
			list := make(List, 0, len(values))
			for _, v := range values {
				if v = strings.TrimSpace(v); v != "" {
					list = append(list, String(v))
				}
			}
			d.Value = list
		case selection.Exists:
			d.Operator = OpIsNotEmpty
			d.Value = None{}
		case selection.DoesNotExist:
			d.Operator = OpIsEmpty
			d.Value = None{}
		case selection.GreaterThan, selection.LessThan:
			if len(values) != 1 {
				return nil, fmt.Errorf("%q operator must have exactly one value", req.Operator())
			}
			n, err := strconv.ParseFloat(values[0], 64)
			if err != nil {
				return nil, fmt.Errorf("value of `%s` can not convert to number", req.Key())
			}
			d.Operator = OpGreaterThan
			if req.Operator() == selection.LessThan {
				d.Operator = OpLessThan
			}
			d.Value = Number(n)
		case selection.NotIn, selection.NotEquals:
			return nil, fmt.Errorf("%q isn't supported in filter expressions", req.Operator())
		default:
			return nil, fmt.Errorf("%q is not a valid filter operator", req.Operator())
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}
