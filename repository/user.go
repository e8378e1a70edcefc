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
	"github.com/tomoncle/hicode/model"
	"github.com/uptrace/bun"
)

// UserRepository is the repository of model.User keyed by its int64 ID.
type UserRepository interface {
	Repository[model.User, int64]
}

func NewUserRepository(db *bun.DB) UserRepository {
	return NewRepository[model.User, int64](db)
}
