package types

import (
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	CommonFilterOperatorRange CommonFilterOperator = "range"
	CommonFilterOperatorIn    CommonFilterOperator = "in"
	CommonFilterOperatorNull  CommonFilterOperator = "is_null"
)

// CommonFilter is one predicate of an admin scan. Nested Filters are ANDed
// together and replace Field/Operator when present.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
	Filters  []CommonFilter       `json:"filters"`
}

// Validate rejects filters on columns outside allowed. Field names are
// interpolated into SQL, so every scan endpoint must call this first.
func (f *CommonFilter) Validate(allowed []string) error {
	if len(f.Filters) > 0 {
		for i := range f.Filters {
			if err := f.Filters[i].Validate(allowed); err != nil {
				return err
			}
		}
		return nil
	}
	if !lo.Contains(allowed, f.Field) {
		return fmt.Errorf("filter field %q is not allowed", f.Field)
	}
	if f.Operator == CommonFilterOperatorRange && len(f.Values) < 2 {
		return fmt.Errorf("filter %q: range needs two values", f.Field)
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Filters) > 0 {
		exprs := lo.Map(f.Filters, func(sub CommonFilter, _ int) clause.Expression {
			return &sub
		})
		clause.And(exprs...).Build(builder)
		return
	}

	if f.Operator == CommonFilterOperatorNull {
		if len(f.Values) > 0 && fmt.Sprint(f.Values[0]) == "false" {
			clause.Expr{SQL: "? IS NOT NULL", Vars: []any{clause.Column{Name: f.Field}}}.Build(builder)
			return
		}
		clause.Expr{SQL: "? IS NULL", Vars: []any{clause.Column{Name: f.Field}}}.Build(builder)
		return
	}

	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	}
}
