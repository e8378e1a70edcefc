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

// AppleRepository is the repository of model.Apple keyed by its int64 ID.
type AppleRepository interface {
	Repository[model.Apple, int64]
}

func NewAppleRepository(db *bun.DB) AppleRepository {
	return NewRepository[model.Apple, int64](db)
}
