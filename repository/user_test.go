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
	"testing"

	"github.com/tomoncle/hicode/model"
	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupTestDB(t))

	alice, err := repo.Save(ctx, model.NewUser("alice", "alice@example.com", types.JsonObject{
		"admin": true,
		"age":   42,
		"tags":  []interface{}{"a", "b"},
	}))
	if err != nil {
		t.Fatalf("Save(alice): %v", err)
	}
	bob, err := repo.Save(ctx, model.NewUser("bob", "bob@example.com", nil))
	if err != nil {
		t.Fatalf("Save(bob): %v", err)
	}
	if alice.ID == bob.ID {
		t.Fatalf("users share id %d", alice.ID)
	}

	got, found, err := repo.FindByID(ctx, alice.ID)
	if err != nil || !found {
		t.Fatalf("FindByID(alice) = %v, %v, %v", got, found, err)
	}
	if !got.Equal(alice) {
		t.Errorf("FindByID(alice) = %v, want %v", got, alice)
	}
	if got.Attributes["age"] != float64(42) {
		t.Errorf("age attribute = %#v", got.Attributes["age"])
	}

	got, _, err = repo.FindByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("FindByID(bob): %v", err)
	}
	if got.Attributes != nil {
		t.Errorf("bob attributes = %v, want nil", got.Attributes)
	}

	bob.Attributes = types.JsonObject{"team": "ops"}
	if _, err := repo.Save(ctx, bob); err != nil {
		t.Fatalf("Save(bob) update: %v", err)
	}
	got, _, _ = repo.FindByID(ctx, bob.ID)
	if !got.Equal(bob) {
		t.Errorf("updated bob = %v, want %v", got, bob)
	}

	user, found, err := repo.FindOne(ctx, specification.Eq("email", "bob@example.com"))
	if err != nil || !found || user.ID != bob.ID {
		t.Errorf("FindOne(email) = %v, %v, %v", user, found, err)
	}

	if err := repo.DeleteByID(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(all) != 1 || !all[0].Equal(bob) {
		t.Errorf("FindAll = %v, want [%v]", all, bob)
	}
}
