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
	"strings"

	"github.com/uptrace/bun/schema"
)

// ErrUnknownField is returned when a field name does not map to a column.
var ErrUnknownField = errors.New("unknown field")

// FieldResolver maps an entity field name to its column name.
type FieldResolver interface {
	Column(field string) (string, error)
}

// ResolverFunc adapts a function to FieldResolver.
type ResolverFunc func(field string) (string, error)

func (f ResolverFunc) Column(field string) (string, error) { return f(field) }

type columnResolver struct {
	entity  string
	columns map[string]string
}

// ForTable resolves the Go field name, its lower camel form or the column
// name of any field of table, ignoring case.
func ForTable(table *schema.Table) FieldResolver {
	r := &columnResolver{entity: table.TypeName, columns: make(map[string]string, len(table.Fields)*2)}
	for _, f := range table.Fields {
		r.columns[strings.ToLower(f.GoName)] = f.Name
		r.columns[strings.ToLower(f.Name)] = f.Name
	}
	return r
}

// Columns resolves from an explicit field to column mapping. Column names
// resolve to themselves.
func Columns(entity string, mapping map[string]string) FieldResolver {
	r := &columnResolver{entity: entity, columns: make(map[string]string, len(mapping)*2)}
	for field, column := range mapping {
		r.columns[strings.ToLower(field)] = column
		r.columns[strings.ToLower(column)] = column
	}
	return r
}

func (r *columnResolver) Column(field string) (string, error) {
	if column, ok := r.columns[strings.ToLower(strings.TrimSpace(field))]; ok {
		return column, nil
	}
	return "", fmt.Errorf("%w: %s has no field %q", ErrUnknownField, r.entity, field)
}
