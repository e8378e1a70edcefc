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

package types

import "strings"

// Direction is the ordering direction of a sort clause.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

var _ BaseEnum = Direction(0)

func (d Direction) IsValid() bool { return d == Ascending || d == Descending }

func (d Direction) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

// String returns the SQL keyword for the direction.
func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return IllegalName
	}
}

func (d Direction) Name() string { return d.String() }

func (d Direction) Desc() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return IllegalDesc
	}
}

// ParseDirection accepts "asc"/"desc" in any case; anything else is ascending.
func ParseDirection(s string) Direction {
	d, _ := EnumOf(s, Ascending, Descending)
	return d
}

// Order is a single sort clause on an entity field.
type Order struct {
	Field     string
	Direction Direction
}

// Sort is an ordered list of sort clauses; the first clause has precedence.
type Sort []Order

// Asc returns an ascending order on field.
func Asc(field string) Order { return Order{Field: field, Direction: Ascending} }

// Desc returns a descending order on field.
func Desc(field string) Order { return Order{Field: field, Direction: Descending} }

// By builds a Sort from the given orders.
func By(orders ...Order) Sort { return orders }

// Unsorted returns an empty Sort.
func Unsorted() Sort { return Sort{} }

func (s Sort) IsSorted() bool { return len(s) > 0 }

// And returns a new Sort with the orders of other appended.
func (s Sort) And(other Sort) Sort {
	out := make(Sort, 0, len(s)+len(other))
	out = append(out, s...)
	return append(out, other...)
}

// ParseSort reads clauses like "price desc, appleName".
func ParseSort(expr string) Sort {
	var sort Sort
	for _, part := range strings.Split(expr, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		dir := Ascending
		if len(fields) > 1 {
			dir = ParseDirection(fields[1])
		}
		sort = append(sort, Order{Field: fields[0], Direction: dir})
	}
	return sort
}
