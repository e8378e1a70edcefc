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

package hicode

import (
	"context"
	"sync"

	"github.com/tomoncle/hicode/database"
	"github.com/tomoncle/hicode/model"
	"github.com/tomoncle/hicode/repository"
	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
)

type Service[T any, ID comparable] interface {
	// Get returns a single entity by its identifier; found is false when
	// no row has that identifier.
	Get(ctx context.Context, id ID) (entity *T, found bool, err error)

	// All returns all entities, ordered by sort when given.
	All(ctx context.Context, sort types.Sort) ([]*T, error)

	// List returns entities that match the provided raw filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Find returns entities that satisfy spec, ordered by sort when given.
	Find(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error)

	// FindOne returns the single entity satisfying spec.
	FindOne(ctx context.Context, spec specification.Specification) (*T, bool, error)

	// Page returns a page of entities satisfying spec; a nil spec matches all.
	Page(ctx context.Context, spec specification.Specification, page *types.PageRequest) (*types.Pagination[T], error)

	// Count returns the number of entities satisfying spec.
	Count(ctx context.Context, spec specification.Specification) (int, error)

	// Save inserts or overwrites entities by identifier.
	Save(ctx context.Context, entities ...*T) ([]*T, error)

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error

	// Delete removes the entities with the given identifiers.
	Delete(ctx context.Context, id ...ID) error

	// DeleteBy removes the entities satisfying spec.
	DeleteBy(ctx context.Context, spec specification.Specification) (int64, error)

	// Transaction runs fn in a transaction; use the *WithTx methods inside.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error

	// SaveWithTx saves an entity within an existing transaction.
	SaveWithTx(ctx context.Context, tx bun.IDB, entity *T) (*T, error)

	// SaveOrUpdateWithTx upserts entities within a transaction.
	SaveOrUpdateWithTx(ctx context.Context, tx bun.IDB, fields []string, duplicateKeys []string, entities ...*T) error

	// DeleteWithTx removes an entity within a transaction.
	DeleteWithTx(ctx context.Context, tx bun.IDB, id ID) error

	// SelectBuilder returns a Bun select query builder on the global
	// database, or repository.ErrNoDatabase before database.InitDB.
	SelectBuilder() (*bun.SelectQuery, error)

	// InsertBuilder returns a Bun insert query builder.
	InsertBuilder() (*bun.InsertQuery, error)

	// UpdateBuilder returns a Bun update query builder.
	UpdateBuilder() (*bun.UpdateQuery, error)

	// DeleteBuilder returns a Bun delete query builder.
	DeleteBuilder() (*bun.DeleteQuery, error)
}

// RepositoryFactory binds a repository to a database.
type RepositoryFactory[T any, ID comparable] func(db *bun.DB) repository.Repository[T, ID]

type baseServiceImpl[T any, ID comparable] struct {
	newRepo RepositoryFactory[T, ID]
	mu      sync.Mutex
	db      *bun.DB
	repo    repository.Repository[T, ID]
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database connection. The repository is
// bound on first use and rebound when database.InitDB replaces the
// connection.
func NewService[T any, ID comparable]() Service[T, ID] {
	return NewServiceWith[T, ID](repository.NewRepository[T, ID])
}

// NewServiceWith is NewService with a custom repository constructor.
func NewServiceWith[T any, ID comparable](newRepo RepositoryFactory[T, ID]) Service[T, ID] {
	return &baseServiceImpl[T, ID]{newRepo: newRepo}
}

// NewAppleService returns the Service of model.Apple.
func NewAppleService() Service[model.Apple, int64] {
	return NewServiceWith[model.Apple, int64](func(db *bun.DB) repository.Repository[model.Apple, int64] {
		return repository.NewAppleRepository(db)
	})
}

// NewUserService returns the Service of model.User.
func NewUserService() Service[model.User, int64] {
	return NewServiceWith[model.User, int64](func(db *bun.DB) repository.Repository[model.User, int64] {
		return repository.NewUserRepository(db)
	})
}

func (s *baseServiceImpl[T, ID]) baseRepo() repository.Repository[T, ID] {
	s.mu.Lock()
	defer s.mu.Unlock()
	db := database.GetDB()
	if s.repo == nil || s.db != db {
		s.db = db
		s.repo = s.newRepo(db)
	}
	return s.repo
}

func (s *baseServiceImpl[T, ID]) Get(ctx context.Context, id ID) (*T, bool, error) {
	return s.baseRepo().FindByID(ctx, id)
}

func (s *baseServiceImpl[T, ID]) All(ctx context.Context, sort types.Sort) ([]*T, error) {
	return s.baseRepo().FindAllSorted(ctx, sort)
}

func (s *baseServiceImpl[T, ID]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return s.baseRepo().List(ctx, filter)
}

func (s *baseServiceImpl[T, ID]) Find(ctx context.Context, spec specification.Specification, sort types.Sort) ([]*T, error) {
	return s.baseRepo().FindAllBySorted(ctx, spec, sort)
}

func (s *baseServiceImpl[T, ID]) FindOne(ctx context.Context, spec specification.Specification) (*T, bool, error) {
	return s.baseRepo().FindOne(ctx, spec)
}

func (s *baseServiceImpl[T, ID]) Page(ctx context.Context, spec specification.Specification, page *types.PageRequest) (*types.Pagination[T], error) {
	return s.baseRepo().PageBy(ctx, spec, page)
}

func (s *baseServiceImpl[T, ID]) Count(ctx context.Context, spec specification.Specification) (int, error) {
	return s.baseRepo().CountBy(ctx, spec)
}

func (s *baseServiceImpl[T, ID]) Save(ctx context.Context, entities ...*T) ([]*T, error) {
	return s.baseRepo().SaveAll(ctx, entities...)
}

func (s *baseServiceImpl[T, ID]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error {
	return s.baseRepo().Upsert(ctx, fields, duplicateKeys, entities...)
}

func (s *baseServiceImpl[T, ID]) Delete(ctx context.Context, id ...ID) error {
	return s.baseRepo().DeleteAllByID(ctx, id...)
}

func (s *baseServiceImpl[T, ID]) DeleteBy(ctx context.Context, spec specification.Specification) (int64, error) {
	return s.baseRepo().DeleteBy(ctx, spec)
}

func (s *baseServiceImpl[T, ID]) Transaction(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.baseRepo().RunInTx(ctx, fn)
}

func (s *baseServiceImpl[T, ID]) SaveWithTx(ctx context.Context, tx bun.IDB, entity *T) (*T, error) {
	return s.baseRepo().SaveWithTx(ctx, tx, entity)
}

func (s *baseServiceImpl[T, ID]) SaveOrUpdateWithTx(ctx context.Context, tx bun.IDB, fields []string, duplicateKeys []string, entities ...*T) error {
	return s.baseRepo().UpsertWithTx(ctx, tx, fields, duplicateKeys, entities...)
}

func (s *baseServiceImpl[T, ID]) DeleteWithTx(ctx context.Context, tx bun.IDB, id ID) error {
	return s.baseRepo().DeleteByIDWithTx(ctx, tx, id)
}

// connectedRepo is baseRepo for callers that cannot report a nil database
// through a repository call.
func (s *baseServiceImpl[T, ID]) connectedRepo() (repository.Repository[T, ID], error) {
	repo := s.baseRepo()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, repository.ErrNoDatabase
	}
	return repo, nil
}

func (s *baseServiceImpl[T, ID]) SelectBuilder() (*bun.SelectQuery, error) {
	repo, err := s.connectedRepo()
	if err != nil {
		return nil, err
	}
	return repo.NewSelect(), nil
}

func (s *baseServiceImpl[T, ID]) InsertBuilder() (*bun.InsertQuery, error) {
	repo, err := s.connectedRepo()
	if err != nil {
		return nil, err
	}
	return repo.NewInsert(), nil
}

func (s *baseServiceImpl[T, ID]) UpdateBuilder() (*bun.UpdateQuery, error) {
	repo, err := s.connectedRepo()
	if err != nil {
		return nil, err
	}
	return repo.NewUpdate(), nil
}

func (s *baseServiceImpl[T, ID]) DeleteBuilder() (*bun.DeleteQuery, error) {
	repo, err := s.connectedRepo()
	if err != nil {
		return nil, err
	}
	return repo.NewDelete(), nil
}
