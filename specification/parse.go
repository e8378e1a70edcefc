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
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrSyntax is returned by Parse for clauses it cannot read.
var ErrSyntax = errors.New("invalid filter expression")

var (
	nullPattern       = regexp.MustCompile(`(?i)^\s*([A-Za-z_][A-Za-z0-9_]*)\s+is\s+(not\s+)?null\s*$`)
	comparisonPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(>=|<=|!=|=|>|<|~)\s*(.*?)\s*$`)
)

// Parse reads a single clause of the form "field op value" where op is one
// of = != > >= < <= and ~ (LIKE), or "field is [not] null". Quoted values
// are strings; unquoted values are read as integers or floats when they
// parse as such, and as strings otherwise.
func Parse(expr string) (Specification, error) {
	if m := nullPattern.FindStringSubmatch(expr); m != nil {
		if m[2] != "" {
			return IsNotNull(m[1]), nil
		}
		return IsNull(m[1]), nil
	}

	m := comparisonPattern.FindStringSubmatch(expr)
	if m == nil || m[3] == "" {
		return nil, fmt.Errorf("%w: %q", ErrSyntax, expr)
	}
	field, op, value := m[1], m[2], parseValue(m[3])

	switch op {
	case "=":
		return Eq(field, value), nil
	case "!=":
		return Ne(field, value), nil
	case ">":
		return Gt(field, value), nil
	case ">=":
		return Gte(field, value), nil
	case "<":
		return Lt(field, value), nil
	case "<=":
		return Lte(field, value), nil
	default:
		return Like(field, fmt.Sprint(value)), nil
	}
}

// ParseAll parses every clause and joins them with And, or with Or when matchAny
// is set. No clauses yields All.
func ParseAll(exprs []string, matchAny bool) (Specification, error) {
	specs := make([]Specification, 0, len(exprs))
	for _, expr := range exprs {
		spec, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return All(), nil
	}
	if matchAny {
		return Or(specs...), nil
	}
	return And(specs...), nil
}

func parseValue(s string) interface{} {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
