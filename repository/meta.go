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

package repository

import (
	"fmt"
	"reflect"

	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// entityMeta caches the Bun table of a model and its primary key field.
type entityMeta struct {
	table    *schema.Table
	pk       *schema.Field
	resolver specification.FieldResolver
}

func newEntityMeta(db *bun.DB, typ reflect.Type, idType reflect.Type) (*entityMeta, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	table := db.Table(typ)
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s has %d", ErrCompositeKey, table.TypeName, len(table.PKs))
	}
	pk := table.PKs[0]
	if !idType.ConvertibleTo(pk.StructField.Type) {
		return nil, fmt.Errorf("id type %s is not convertible to %s.%s (%s)",
			idType, table.TypeName, pk.GoName, pk.StructField.Type)
	}
	return &entityMeta{
		table:    table,
		pk:       pk,
		resolver: specification.ForTable(table),
	}, nil
}

// pkValue returns the addressable primary key field of entity.
func (m *entityMeta) pkValue(entity interface{}) reflect.Value {
	return reflect.ValueOf(entity).Elem().FieldByIndex(m.pk.Index)
}

func (m *entityMeta) setPK(entity interface{}, id interface{}) {
	v := m.pkValue(entity)
	v.Set(reflect.ValueOf(id).Convert(v.Type()))
}

func (m *entityMeta) hasZeroPK(entity interface{}) bool {
	return m.pkValue(entity).IsZero()
}

func (m *entityMeta) pkIdent() schema.Ident {
	return bun.Ident(m.pk.Name)
}

func (m *entityMeta) filter(spec specification.Specification) (*types.QueryFilter, error) {
	if spec == nil {
		return nil, nil
	}
	return spec.Build(m.resolver)
}

// columns resolves field names to column names.
func (m *entityMeta) columns(fields []string) ([]string, error) {
	columns := make([]string, len(fields))
	for i, field := range fields {
		column, err := m.resolver.Column(field)
		if err != nil {
			return nil, err
		}
		columns[i] = column
	}
	return columns, nil
}

func (m *entityMeta) applySort(q *bun.SelectQuery, sort types.Sort) (*bun.SelectQuery, error) {
	for _, order := range sort {
		column, err := m.resolver.Column(order.Field)
		if err != nil {
			return nil, err
		}
		if order.Direction == types.Descending {
			q = q.OrderExpr("? DESC", bun.Ident(column))
		} else {
			q = q.OrderExpr("? ASC", bun.Ident(column))
		}
	}
	return q, nil
}
