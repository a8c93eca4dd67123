package order

import (
	"fmt"
	"strings"

	"github.com/DaoCloud/listcache/common/constants"
)

type Direction string

const (
	ASC  Direction = constants.SortASC
	DESC Direction = constants.SortDesc
)

type Descriptor struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// List is a multi-column sort. It holds at most one descriptor per field,
// in activation order; that order is the wire order.
type List []Descriptor

// Toggle cycles field through unsorted -> ASC -> DESC -> unsorted. A newly
// sorted field is appended last, a direction change keeps its position.
func (l List) Toggle(field string) List {
	switch d, _ := l.Direction(field); d {
	case "":
		return l.Set(field, ASC)
	case ASC:
		return l.Set(field, DESC)
	default:
		return l.Clear(field)
	}
}

// Set returns a copy of the list with field sorted in direction d.
func (l List) Set(field string, d Direction) List {
	res := make(List, 0, len(l)+1)
	found := false
	for _, s := range l {
		if s.Field == field {
			s.Direction = d
			found = true
		}
		res = append(res, s)
	}
	if !found {
		res = append(res, Descriptor{Field: field, Direction: d})
	}
	return res
}

// Clear returns a copy of the list without field.
func (l List) Clear(field string) List {
	res := make(List, 0, len(l))
	for _, s := range l {
		if s.Field != field {
			res = append(res, s)
		}
	}
	return res
}

func (l List) Direction(field string) (Direction, bool) {
	for _, s := range l {
		if s.Field == field {
			return s.Direction, true
		}
	}
	return "", false
}

func (l List) Equal(o List) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders "a asc, b desc".
func (l List) String() string {
	parts := make([]string, 0, len(l))
	for _, s := range l {
		parts = append(parts, s.Field+" "+string(s.Direction))
	}
	return strings.Join(parts, ", ")
}

// Parse reads the "a asc, b desc" form; the direction defaults to asc.
func Parse(s string) (List, error) {
	res := List{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st := Descriptor{Direction: ASC}
		fs := strings.Fields(part)
		if len(fs) > 2 {
			return nil, fmt.Errorf("error sort format `%s`", part)
		}
		if len(fs) == 2 {
			switch strings.ToLower(fs[1]) {
			case constants.SortDesc:
				st.Direction = DESC
			case constants.SortASC:
				st.Direction = ASC
			default:
				return nil, fmt.Errorf("error sort format `%s`", fs[1])
			}
		}
		st.Field = fs[0]
		if _, ok := res.Direction(st.Field); ok {
			return nil, fmt.Errorf("duplicated sort key: %s", st.Field)
		}
		res = append(res, st)
	}
	return res, nil
}
