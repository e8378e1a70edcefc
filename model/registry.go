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

import "github.com/tomoncle/hicode/database"

// Table creation order. The tables are independent, the values only make
// the order deterministic.
const (
	ApplePriority = 10
	UserPriority  = 20
)

func init() {
	for _, m := range Models() {
		database.RegisteredModel(m)
	}
}

// Models returns the SQL models of this package.
func Models() []database.SQLModel {
	return []database.SQLModel{
		database.NewModelAdapter((*Apple)(nil), ApplePriority),
		database.NewModelAdapter((*User)(nil), UserPriority),
	}
}
