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

package model

import (
	"fmt"

	"github.com/uptrace/bun"
)

// Apple is a row of the apple table. ID is zero until the first save.
type Apple struct {
	bun.BaseModel `bun:"table:apple,alias:apple" json:"-" yaml:"-"`

	ID        int64   `bun:"id,pk,autoincrement" json:"id" yaml:"id"`
	AppleName string  `bun:"apple_name" json:"appleName" yaml:"appleName"`
	Taste     string  `bun:"taste" json:"taste" yaml:"taste"`
	Price     float64 `bun:"price" json:"price" yaml:"price"`
}

// NewApple returns a transient Apple.
func NewApple(appleName, taste string, price float64) *Apple {
	return &Apple{AppleName: appleName, Taste: taste, Price: price}
}

// Equal reports whether every field of a and other matches.
func (a *Apple) Equal(other *Apple) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.ID == other.ID &&
		a.AppleName == other.AppleName &&
		a.Taste == other.Taste &&
		a.Price == other.Price
}

func (a *Apple) String() string {
	if a == nil {
		return "Apple<nil>"
	}
	return fmt.Sprintf("Apple{id=%d, appleName=%q, taste=%q, price=%v}", a.ID, a.AppleName, a.Taste, a.Price)
}
