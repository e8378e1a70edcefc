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

	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines identity based CRUD operations for an entity type T
// whose single primary key has type ID.
type CrudRepository[T any, ID comparable] interface {
	// Save inserts entity when its ID is zero or no row has that ID, and
	// overwrites the matching row otherwise. A fresh ID is written back.
	Save(ctx context.Context, entity *T) (*T, error)

	// SaveAll saves every entity in one transaction.
	SaveAll(ctx context.Context, entities ...*T) ([]*T, error)

	// FindByID reports found=false with a nil error when no row matches.
	FindByID(ctx context.Context, id ID) (*T, bool, error)

	ExistsByID(ctx context.Context, id ID) (bool, error)

	FindAll(ctx context.Context) ([]*T, error)

	FindAllSorted(ctx context.Context, sort types.Sort) ([]*T, error)

	// FindAllByID skips ids without a row.
	FindAllByID(ctx context.Context, ids ...ID) ([]*T, error)

	// List returns the rows matching a raw filter; a nil filter matches all.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query returns the rows matching a raw WHERE clause.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	Count(ctx context.Context) (int, error)

	// DeleteByID is a no-op when no row has id.
	DeleteByID(ctx context.Context, id ID) error

	// Delete removes the row with entity's ID; transient entities are ignored.
	Delete(ctx context.Context, entity *T) error

	DeleteAllByID(ctx context.Context, ids ...ID) error

	DeleteAll(ctx context.Context) error

	// Upsert inserts entities and, on a conflict over duplicateKeys, updates
	// fields. Fields and keys may be given as Go field or column names.
	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error
}

// SpecificationExecutor runs specification queries.
type SpecificationExecutor[T any] interface {
	// FindOne returns ErrNonUniqueResult when more than one row matches.
	FindOne(ctx context.Context, spec specification.Specification) (*T, bool, error)

	FindAllBy(ctx context.Context, spec specification.Specification) ([]*T, error)

	FindAllBySorted(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error)

	PageBy(ctx context.Context, spec specification.Specification, page *types.PageRequest) (*types.Pagination[T], error)

	CountBy(ctx context.Context, spec specification.Specification) (int, error)

	ExistsBy(ctx context.Context, spec specification.Specification) (bool, error)

	// DeleteBy returns the number of rows removed.
	DeleteBy(ctx context.Context, spec specification.Specification) (int64, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// TransactionRepository runs writes on a caller supplied bun.IDB, which may
// be a bun.Tx obtained from RunInTx.
type TransactionRepository[T any, ID comparable] interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
	SaveWithTx(ctx context.Context, tx bun.IDB, entity *T) (*T, error)
	DeleteByIDWithTx(ctx context.Context, tx bun.IDB, id ID) error
	UpsertWithTx(ctx context.Context, tx bun.IDB, fields []string, duplicateKeys []string, entities ...*T) error
}

// Repository combines CRUD, specification, pagination and transactional
// operations and exposes Bun query builders for advanced use cases.
type Repository[T any, ID comparable] interface {
	CrudRepository[T, ID]
	SpecificationExecutor[T]
	PageQueryRepository[T]
	TransactionRepository[T, ID]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
