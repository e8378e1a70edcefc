/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package specification

import (
	"strings"

	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
)

const (
	matchAll  = "1 = 1"
	matchNone = "1 = 0"
)

// Specification is a predicate over one entity type. Build renders it as a
// WHERE clause whose "?" placeholders are bound to the filter args, so no
// value is ever concatenated into the SQL text.
type Specification interface {
	Build(r FieldResolver) (*types.QueryFilter, error)
}

// Func adapts a function to Specification.
type Func func(r FieldResolver) (*types.QueryFilter, error)

func (f Func) Build(r FieldResolver) (*types.QueryFilter, error) { return f(r) }

type comparison struct {
	field string
	op    string
	value interface{}
}

func (c comparison) Build(r FieldResolver) (*types.QueryFilter, error) {
	column, err := r.Column(c.field)
	if err != nil {
		return nil, err
	}
	return types.NewQueryFilter("? "+c.op+" ?", bun.Ident(column), c.value), nil
}

// Eq matches rows whose field equals value.
func Eq(field string, value interface{}) Specification { return comparison{field, "=", value} }

// Ne matches rows whose field differs from value. NULL never matches.
func Ne(field string, value interface{}) Specification { return comparison{field, "<>", value} }

func Gt(field string, value interface{}) Specification { return comparison{field, ">", value} }

func Gte(field string, value interface{}) Specification { return comparison{field, ">=", value} }

func Lt(field string, value interface{}) Specification { return comparison{field, "<", value} }

func Lte(field string, value interface{}) Specification { return comparison{field, "<=", value} }

// Like matches field against a SQL LIKE pattern using % and _ wildcards.
func Like(field string, pattern string) Specification { return comparison{field, "LIKE", pattern} }

// ContainsFold matches rows whose field contains s, ignoring case. LIKE
// wildcards inside s keep their meaning.
func ContainsFold(field string, s string) Specification {
	return Func(func(r FieldResolver) (*types.QueryFilter, error) {
		column, err := r.Column(field)
		if err != nil {
			return nil, err
		}
		return types.NewQueryFilter("LOWER(?) LIKE ?", bun.Ident(column), "%"+strings.ToLower(s)+"%"), nil
	})
}

// In matches rows whose field is one of values; no values matches nothing.
func In(field string, values ...interface{}) Specification {
	return membership(field, false, values)
}

// NotIn matches rows whose field is none of values; no values matches all.
func NotIn(field string, values ...interface{}) Specification {
	return membership(field, true, values)
}

func membership(field string, negate bool, values []interface{}) Specification {
	return Func(func(r FieldResolver) (*types.QueryFilter, error) {
		column, err := r.Column(field)
		if err != nil {
			return nil, err
		}
		switch {
		case len(values) == 0 && negate:
			return types.NewQueryFilter(matchAll), nil
		case len(values) == 0:
			return types.NewQueryFilter(matchNone), nil
		case negate:
			return types.NewQueryFilter("? NOT IN (?)", bun.Ident(column), bun.In(values)), nil
		default:
			return types.NewQueryFilter("? IN (?)", bun.Ident(column), bun.In(values)), nil
		}
	})
}

func IsNull(field string) Specification { return nullCheck(field, "IS NULL") }

func IsNotNull(field string) Specification { return nullCheck(field, "IS NOT NULL") }

func nullCheck(field, op string) Specification {
	return Func(func(r FieldResolver) (*types.QueryFilter, error) {
		column, err := r.Column(field)
		if err != nil {
			return nil, err
		}
		return types.NewQueryFilter("? "+op, bun.Ident(column)), nil
	})
}

// Between matches low <= field <= high.
func Between(field string, low, high interface{}) Specification {
	return Func(func(r FieldResolver) (*types.QueryFilter, error) {
		column, err := r.Column(field)
		if err != nil {
			return nil, err
		}
		return types.NewQueryFilter("? BETWEEN ? AND ?", bun.Ident(column), low, high), nil
	})
}

// Raw wraps a literal WHERE clause. Column names in schema are not resolved.
func Raw(schema string, args ...interface{}) Specification {
	return Func(func(FieldResolver) (*types.QueryFilter, error) {
		return types.NewQueryFilter(schema, args...), nil
	})
}

// All matches every row.
func All() Specification { return Raw(matchAll) }

// And matches rows satisfying every spec. Nil specs are skipped and an
// empty And matches every row.
func And(specs ...Specification) Specification {
	return junction("AND", matchAll, specs)
}

// Or matches rows satisfying at least one spec. Nil specs are skipped and
// an empty Or matches no row.
func Or(specs ...Specification) Specification {
	return junction("OR", matchNone, specs)
}

func junction(op, empty string, specs []Specification) Specification {
	return Func(func(r FieldResolver) (*types.QueryFilter, error) {
		filters := make([]*types.QueryFilter, 0, len(specs))
		for _, spec := range specs {
			if spec == nil {
				continue
			}
			filter, err := spec.Build(r)
			if err != nil {
				return nil, err
			}
			if filter.IsEmpty() {
				filter = types.NewQueryFilter(matchAll)
			}
			filters = append(filters, filter)
		}
		switch len(filters) {
		case 0:
			return types.NewQueryFilter(empty), nil
		case 1:
			return filters[0], nil
		}
		parts := make([]string, len(filters))
		var args []interface{}
		for i, filter := range filters {
			parts[i] = "(" + filter.Schema + ")"
			args = append(args, filter.Args...)
		}
		return types.NewQueryFilter(strings.Join(parts, " "+op+" "), args...), nil
	})
}

// Not negates spec. A nil spec counts as All, so its negation matches nothing.
func Not(spec Specification) Specification {
	return Func(func(r FieldResolver) (*types.QueryFilter, error) {
		if spec == nil {
			return types.NewQueryFilter(matchNone), nil
		}
		filter, err := spec.Build(r)
		if err != nil {
			return nil, err
		}
		if filter.IsEmpty() {
			return types.NewQueryFilter(matchNone), nil
		}
		return types.NewQueryFilter("NOT ("+filter.Schema+")", filter.Args...), nil
	})
}
