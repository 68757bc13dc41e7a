package types

import (
	"fmt"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

// arity is the number of values each operator reads.
var arity = map[CommonFilterOperator]int{
	CommonFilterOperatorEq:        1,
	CommonFilterOperatorNotEq:     1,
	CommonFilterOperatorLt:        1,
	CommonFilterOperatorLte:       1,
	CommonFilterOperatorGt:        1,
	CommonFilterOperatorGte:       1,
	CommonFilterOperatorDateRange: 2,
	CommonFilterOperatorRange:     2,
	CommonFilterOperatorIn:        1,
}

// CommonFilter is one admin-supplied condition on a ledger column.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Validate checks the operator, the value count and that Field is one of columns.
func (f *CommonFilter) Validate(columns ...string) error {
	n, ok := arity[f.Operator]
	if !ok {
		return fmt.Errorf("unknown filter operator %q", f.Operator)
	}
	if len(f.Values) < n {
		return fmt.Errorf("filter on %s: operator %s needs %d value(s)", f.Field, f.Operator, n)
	}
	for _, c := range columns {
		if c == f.Field {
			return nil
		}
	}
	return fmt.Errorf("field %q cannot be filtered", f.Field)
}

// Build constructs a GORM expression. Field is always quoted as a column.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}
	col := clause.Column{Name: f.Field}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: col, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: col, Value: f.Values[0]}, clause.Lte{Column: col, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return
		}
		// half-open [from, to) so adjacent day windows do not overlap
		clause.And(clause.Gte{Column: col, Value: f.Values[0]}, clause.Lt{Column: col, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: col, Values: f.Values}.Build(builder)
	}
}

// AndFilters combines filters into one expression joined by AND.
type AndFilters []*CommonFilter

// Validate runs CommonFilter.Validate on every filter.
func (w AndFilters) Validate(columns ...string) error {
	for _, f := range w {
		if f == nil {
			return fmt.Errorf("nil filter")
		}
		if err := f.Validate(columns...); err != nil {
			return err
		}
	}
	return nil
}

func (w AndFilters) Build(builder clause.Builder) {
	if len(w) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w))
	for _, f := range w {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}
