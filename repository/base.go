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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/tomoncle/hicode/database"
	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any, ID comparable] struct {
	db   *bun.DB
	once sync.Once
	meta *entityMeta
	err  error
}

// NewRepository returns a generic repository backed by the provided Bun DB.
// T must be a Bun model with exactly one primary key whose type ID converts
// to; otherwise every operation fails with ErrCompositeKey or a conversion
// error.
func NewRepository[T any, ID comparable](db *bun.DB) Repository[T, ID] {
	return &baseRepositoryImpl[T, ID]{db: db}
}

func (r *baseRepositoryImpl[T, ID]) entity() (*entityMeta, error) {
	r.once.Do(func() {
		r.meta, r.err = newEntityMeta(r.db,
			reflect.TypeOf((*T)(nil)).Elem(),
			reflect.TypeOf((*ID)(nil)).Elem(),
		)
	})
	return r.meta, r.err
}

func (r *baseRepositoryImpl[T, ID]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T, ID]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T, ID]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T, ID]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T, ID]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T, ID]) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if r.db == nil {
		return ErrNoDatabase
	}
	return r.db.RunInTx(ctx, nil, fn)
}

func (r *baseRepositoryImpl[T, ID]) Save(ctx context.Context, entity *T) (*T, error) {
	if _, err := r.entity(); err != nil {
		return nil, err
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return r.save(ctx, tx, entity)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, ID]) SaveAll(ctx context.Context, entities ...*T) ([]*T, error) {
	if _, err := r.entity(); err != nil {
		return nil, err
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, entity := range entities {
			if err := r.save(ctx, tx, entity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T, ID]) SaveWithTx(ctx context.Context, tx bun.IDB, entity *T) (*T, error) {
	if err := r.save(ctx, tx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// save updates the row with entity's ID if there is one and inserts
// otherwise. An ID that matches no row is discarded so the storage assigns
// a new one; it is restored if the insert fails.
func (r *baseRepositoryImpl[T, ID]) save(ctx context.Context, db bun.IDB, entity *T) (err error) {
	m, err := r.entity()
	if err != nil {
		return err
	}
	if entity == nil {
		return ErrNilEntity
	}

	pk := m.pkValue(entity)
	if !pk.IsZero() {
		keyed := new(T)
		m.pkValue(keyed).Set(pk)
		exists, existsErr := db.NewSelect().Model(keyed).WherePK().Exists(ctx)
		if existsErr != nil {
			return database.TranslateError(existsErr)
		}
		if exists {
			_, err = db.NewUpdate().Model(entity).WherePK().Exec(ctx)
			return database.TranslateError(err)
		}
		stale := reflect.New(pk.Type()).Elem()
		stale.Set(pk)
		pk.Set(reflect.Zero(pk.Type()))
		defer func() {
			if err != nil {
				pk.Set(stale)
			}
		}()
	}

	_, err = db.NewInsert().Model(entity).Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) keyed(id ID) (*T, error) {
	m, err := r.entity()
	if err != nil {
		return nil, err
	}
	entity := new(T)
	m.setPK(entity, id)
	return entity, nil
}

func (r *baseRepositoryImpl[T, ID]) FindByID(ctx context.Context, id ID) (*T, bool, error) {
	entity, err := r.keyed(id)
	if err != nil {
		return nil, false, err
	}
	err = r.db.NewSelect().Model(entity).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, database.TranslateError(err)
	}
	return entity, true, nil
}

func (r *baseRepositoryImpl[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	entity, err := r.keyed(id)
	if err != nil {
		return false, err
	}
	exists, err := r.db.NewSelect().Model(entity).WherePK().Exists(ctx)
	return exists, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) FindAll(ctx context.Context) ([]*T, error) {
	return r.FindAllBySorted(ctx, nil, nil)
}

func (r *baseRepositoryImpl[T, ID]) FindAllSorted(ctx context.Context, sort types.Sort) ([]*T, error) {
	return r.FindAllBySorted(ctx, nil, sort)
}

func (r *baseRepositoryImpl[T, ID]) FindAllByID(ctx context.Context, ids ...ID) ([]*T, error) {
	m, err := r.entity()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return make([]*T, 0), nil
	}
	return r.Query(ctx, "? IN (?)", m.pkIdent(), bun.In(ids))
}

func (r *baseRepositoryImpl[T, ID]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	if _, err := r.entity(); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	if !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T, ID]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	return r.List(ctx, types.NewQueryFilter(query, args...))
}

func (r *baseRepositoryImpl[T, ID]) Count(ctx context.Context) (int, error) {
	return r.CountBy(ctx, nil)
}

func (r *baseRepositoryImpl[T, ID]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	return r.PageBy(ctx, nil, pageRequest)
}

func (r *baseRepositoryImpl[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	return r.DeleteByIDWithTx(ctx, r.db, id)
}

func (r *baseRepositoryImpl[T, ID]) DeleteByIDWithTx(ctx context.Context, tx bun.IDB, id ID) error {
	entity, err := r.keyed(id)
	if err != nil {
		return err
	}
	_, err = tx.NewDelete().Model(entity).WherePK().Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) Delete(ctx context.Context, entity *T) error {
	m, err := r.entity()
	if err != nil {
		return err
	}
	if entity == nil {
		return ErrNilEntity
	}
	if m.hasZeroPK(entity) {
		return nil
	}
	keyed := new(T)
	m.pkValue(keyed).Set(m.pkValue(entity))
	_, err = r.db.NewDelete().Model(keyed).WherePK().Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) DeleteAllByID(ctx context.Context, ids ...ID) error {
	m, err := r.entity()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = r.db.NewDelete().Model((*T)(nil)).Where("? IN (?)", m.pkIdent(), bun.In(ids)).Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) DeleteAll(ctx context.Context) error {
	_, err := r.DeleteBy(ctx, nil)
	return err
}

func (r *baseRepositoryImpl[T, ID]) FindOne(ctx context.Context, spec specification.Specification) (*T, bool, error) {
	m, err := r.entity()
	if err != nil {
		return nil, false, err
	}
	filter, err := m.filter(spec)
	if err != nil {
		return nil, false, err
	}
	entities := make([]*T, 0, 2)
	query := r.db.NewSelect().Model(&entities).Limit(2)
	if !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, false, database.TranslateError(err)
	}
	switch len(entities) {
	case 0:
		return nil, false, nil
	case 1:
		return entities[0], true, nil
	default:
		return nil, false, ErrNonUniqueResult
	}
}

func (r *baseRepositoryImpl[T, ID]) FindAllBy(ctx context.Context, spec specification.Specification) ([]*T, error) {
	return r.FindAllBySorted(ctx, spec, nil)
}

func (r *baseRepositoryImpl[T, ID]) FindAllBySorted(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error) {
	m, err := r.entity()
	if err != nil {
		return nil, err
	}
	filter, err := m.filter(spec)
	if err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	if !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if query, err = m.applySort(query, sort); err != nil {
		return nil, err
	}
	if err := query.Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T, ID]) PageBy(ctx context.Context, spec specification.Specification, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	m, err := r.entity()
	if err != nil {
		return nil, err
	}
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, 0)
	}
	filter, err := m.filter(spec)
	if err != nil {
		return nil, err
	}

	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, database.TranslateError(err)
	}
	if query, err = m.applySort(query, pageRequest.GetSort()); err != nil {
		return nil, err
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	pagination.Total = total
	if entities != nil {
		pagination.Items = entities
	}
	return pagination, nil
}

func (r *baseRepositoryImpl[T, ID]) CountBy(ctx context.Context, spec specification.Specification) (int, error) {
	m, err := r.entity()
	if err != nil {
		return 0, err
	}
	filter, err := m.filter(spec)
	if err != nil {
		return 0, err
	}
	query := r.db.NewSelect().Model((*T)(nil))
	if !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	count, err := query.Count(ctx)
	return count, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) ExistsBy(ctx context.Context, spec specification.Specification) (bool, error) {
	m, err := r.entity()
	if err != nil {
		return false, err
	}
	filter, err := m.filter(spec)
	if err != nil {
		return false, err
	}
	query := r.db.NewSelect().Model((*T)(nil))
	if !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	exists, err := query.Exists(ctx)
	return exists, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) DeleteBy(ctx context.Context, spec specification.Specification) (int64, error) {
	m, err := r.entity()
	if err != nil {
		return 0, err
	}
	filter, err := m.filter(spec)
	if err != nil {
		return 0, err
	}
	if filter.IsEmpty() {
		filter = types.NewQueryFilter("1 = 1")
	}
	res, err := r.db.NewDelete().Model((*T)(nil)).Where(filter.Schema, filter.Args...).Exec(ctx)
	if err != nil {
		return 0, database.TranslateError(err)
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T, ID]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error {
	return r.multipleUpsert(ctx, r.db, fields, duplicateKeys, entities...)
}

func (r *baseRepositoryImpl[T, ID]) UpsertWithTx(ctx context.Context, tx bun.IDB, fields []string, duplicateKeys []string, entities ...*T) error {
	return r.multipleUpsert(ctx, tx, fields, duplicateKeys, entities...)
}

func (r *baseRepositoryImpl[T, ID]) multipleUpsert(ctx context.Context, db bun.IDB, fields []string, duplicateKeys []string, entities ...*T) error {
	m, err := r.entity()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrEmptyFields
	}
	if len(entities) == 0 {
		return nil
	}
	columns, err := m.columns(fields)
	if err != nil {
		return err
	}
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{m.pk.Name}
	}
	keys, err := m.columns(duplicateKeys)
	if err != nil {
		return err
	}

	switch {
	case r.db.HasFeature(feature.InsertOnConflict):
		err = r.upsertOnConflict(ctx, db, columns, keys, entities)
	case r.db.HasFeature(feature.InsertOnDuplicateKey):
		err = r.upsertOnDuplicateKey(ctx, db, columns, entities)
	default:
		err = r.upsertFallback(ctx, db, entities)
	}
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T, ID]) upsertOnDuplicateKey(ctx context.Context, db bun.IDB, columns []string, entities []*T) error {
	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)*2)
	for i, column := range columns {
		assignments[i] = "? = VALUES(?)"
		args = append(args, bun.Ident(column), bun.Ident(column))
	}
	_, err := db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE").
		Set(strings.Join(assignments, ", "), args...).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T, ID]) upsertOnConflict(ctx context.Context, db bun.IDB, columns []string, keys []string, entities []*T) error {
	placeholders := make([]string, len(keys))
	keyIdents := make([]interface{}, len(keys))
	for i, key := range keys {
		placeholders[i] = "?"
		keyIdents[i] = bun.Ident(key)
	}
	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)*2)
	for i, column := range columns {
		assignments[i] = "? = EXCLUDED.?"
		args = append(args, bun.Ident(column), bun.Ident(column))
	}
	_, err := db.NewInsert().
		Model(&entities).
		On("CONFLICT ("+strings.Join(placeholders, ", ")+") DO UPDATE", keyIdents...).
		Set(strings.Join(assignments, ", "), args...).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T, ID]) upsertFallback(ctx context.Context, db bun.IDB, entities []*T) error {
	for _, entity := range entities {
		_, err := db.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			_, updateErr := db.NewUpdate().Model(entity).WherePK().Exec(ctx)
			if updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}
