package filter

// Operator is the normalized comparison applied to a field.
type Operator string

const (
	OpContains    Operator = "contains"
	OpEquals      Operator = "equals"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"
	OpIsAnyOf     Operator = "isAnyOf"
	OpBetween     Operator = "between"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
)

// Operators returns every supported operator.
func Operators() []Operator {
	return []Operator{
		OpContains, OpEquals, OpStartsWith, OpEndsWith, OpIsEmpty,
		OpIsNotEmpty, OpIsAnyOf, OpBetween, OpGreaterThan, OpLessThan,
	}
}

func (op Operator) IsValid() bool {
	switch op {
	case OpContains, OpEquals, OpStartsWith, OpEndsWith, OpIsEmpty,
		OpIsNotEmpty, OpIsAnyOf, OpBetween, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// HasValue reports whether the operator carries a value on the wire.
// isEmpty and isNotEmpty never do.
func (op Operator) HasValue() bool {
	return op != OpIsEmpty && op != OpIsNotEmpty
}
