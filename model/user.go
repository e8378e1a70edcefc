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

	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
)

// User is a row of the user table. Beyond the username and email, any
// deployment specific attributes are kept in the JSON Attributes column.
type User struct {
	bun.BaseModel `bun:"table:user,alias:u" json:"-" yaml:"-"`

	ID         int64            `bun:"id,pk,autoincrement" json:"id" yaml:"id"`
	Username   string           `bun:"username" json:"username" yaml:"username"`
	Email      string           `bun:"email" json:"email" yaml:"email"`
	Attributes types.JsonObject `bun:"attributes,type:json" json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// NewUser returns a transient User.
func NewUser(username, email string, attributes types.JsonObject) *User {
	return &User{Username: username, Email: email, Attributes: attributes}
}

// Equal reports whether every field of u and other matches. Attributes are
// compared by their JSON form.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.ID == other.ID &&
		u.Username == other.Username &&
		u.Email == other.Email &&
		u.Attributes.Equal(other.Attributes)
}

func (u *User) String() string {
	if u == nil {
		return "User<nil>"
	}
	return fmt.Sprintf("User{id=%d, username=%q, email=%q, attributes=%s}", u.ID, u.Username, u.Email, u.Attributes)
}
