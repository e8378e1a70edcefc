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
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tomoncle/hicode/database"
	"github.com/tomoncle/hicode/model"
	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var dbCounter atomic.Int64

// setupTestDB opens a private in-memory SQLite database with the apple and
// user tables created by the migration manager.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	mm := database.NewMigrationManager(db, nil, database.MigrationOptions{Models: model.Models()})
	if err := mm.RunMigrations(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func seedApples(t *testing.T, repo AppleRepository) []*model.Apple {
	t.Helper()
	apples, err := repo.SaveAll(context.Background(),
		model.NewApple("Fuji", "sweet", 1.99),
		model.NewApple("Gala", "mild", 1.25),
		model.NewApple("Granny Smith", "sour", 0.75),
		model.NewApple("Honeycrisp", "sweet", 2.5),
		model.NewApple("Braeburn", "tart", 1.5),
	)
	if err != nil {
		t.Fatalf("failed to seed apples: %v", err)
	}
	return apples
}

func names(apples []*model.Apple) []string {
	out := make([]string, len(apples))
	for i, a := range apples {
		out[i] = a.AppleName
	}
	return out
}

func TestAppleRepository_FujiLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewAppleRepository(setupTestDB(t))

	saved, err := repo.Save(ctx, &model.Apple{AppleName: "Fuji", Taste: "sweet", Price: 1.99})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := &model.Apple{ID: 1, AppleName: "Fuji", Taste: "sweet", Price: 1.99}
	if !saved.Equal(want) {
		t.Fatalf("Save returned %v, want %v", saved, want)
	}

	got, found, err := repo.FindByID(ctx, 1)
	if err != nil || !found {
		t.Fatalf("FindByID(1) = %v, %v, %v", got, found, err)
	}
	if !got.Equal(want) {
		t.Errorf("FindByID(1) = %v, want %v", got, want)
	}

	if err := repo.DeleteByID(ctx, 1); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	got, found, err = repo.FindByID(ctx, 1)
	if err != nil {
		t.Fatalf("FindByID after delete: %v", err)
	}
	if found || got != nil {
		t.Errorf("FindByID after delete = %v, %v, want empty", got, found)
	}
}

func TestAppleRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns unused identifiers", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		seen := map[int64]bool{}
		for i := 0; i < 5; i++ {
			apple, err := repo.Save(ctx, model.NewApple("Fuji", "sweet", 1))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if apple.ID == 0 || seen[apple.ID] {
				t.Fatalf("Save assigned id %d, seen %v", apple.ID, seen)
			}
			seen[apple.ID] = true
			if _, found, _ := repo.FindByID(ctx, apple.ID); !found {
				t.Errorf("apple %d not retrievable", apple.ID)
			}
		}
	})

	t.Run("existing identifier overwrites only that row", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		apples := seedApples(t, repo)

		update := &model.Apple{ID: apples[1].ID, AppleName: "Gala", Taste: "crisp", Price: 3}
		if _, err := repo.Save(ctx, update); err != nil {
			t.Fatalf("Save: %v", err)
		}

		count, err := repo.Count(ctx)
		if err != nil || count != len(apples) {
			t.Fatalf("Count = %d, %v, want %d", count, err, len(apples))
		}
		for _, before := range apples {
			got, _, err := repo.FindByID(ctx, before.ID)
			if err != nil {
				t.Fatalf("FindByID(%d): %v", before.ID, err)
			}
			want := before
			if before.ID == update.ID {
				want = update
			}
			if !got.Equal(want) {
				t.Errorf("row %d = %v, want %v", before.ID, got, want)
			}
		}
	})

	t.Run("unknown identifier inserts with a fresh identifier", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		apples := seedApples(t, repo)

		apple := &model.Apple{ID: 999, AppleName: "Jazz", Taste: "tangy", Price: 2}
		if _, err := repo.Save(ctx, apple); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if apple.ID == 999 || apple.ID == 0 {
			t.Errorf("Save kept caller id %d", apple.ID)
		}
		if _, found, _ := repo.FindByID(ctx, 999); found {
			t.Error("row 999 should not exist")
		}
		count, _ := repo.Count(ctx)
		if count != len(apples)+1 {
			t.Errorf("Count = %d, want %d", count, len(apples)+1)
		}
	})

	t.Run("nil entity", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		if _, err := repo.Save(ctx, nil); !errors.Is(err, ErrNilEntity) {
			t.Errorf("Save(nil) error = %v, want ErrNilEntity", err)
		}
	})
}

func TestAppleRepository_Find(t *testing.T) {
	ctx := context.Background()
	repo := NewAppleRepository(setupTestDB(t))
	apples := seedApples(t, repo)

	t.Run("missing id is empty, not an error", func(t *testing.T) {
		got, found, err := repo.FindByID(ctx, 12345)
		if err != nil || found || got != nil {
			t.Errorf("FindByID(12345) = %v, %v, %v", got, found, err)
		}
		exists, err := repo.ExistsByID(ctx, 12345)
		if err != nil || exists {
			t.Errorf("ExistsByID(12345) = %v, %v", exists, err)
		}
	})

	t.Run("FindAll returns every saved row", func(t *testing.T) {
		all, err := repo.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll: %v", err)
		}
		if len(all) != len(apples) {
			t.Fatalf("FindAll returned %d rows, want %d", len(all), len(apples))
		}
		byID := map[int64]*model.Apple{}
		for _, a := range all {
			byID[a.ID] = a
		}
		for _, want := range apples {
			if !byID[want.ID].Equal(want) {
				t.Errorf("row %d = %v, want %v", want.ID, byID[want.ID], want)
			}
		}
	})

	t.Run("FindAllSorted", func(t *testing.T) {
		sorted, err := repo.FindAllSorted(ctx, types.By(types.Desc("price")))
		if err != nil {
			t.Fatalf("FindAllSorted: %v", err)
		}
		want := []string{"Honeycrisp", "Fuji", "Braeburn", "Gala", "Granny Smith"}
		if got := names(sorted); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("FindAllSorted = %v, want %v", got, want)
		}

		sorted, err = repo.FindAllSorted(ctx, types.ParseSort("taste, appleName desc"))
		if err != nil {
			t.Fatalf("FindAllSorted: %v", err)
		}
		want = []string{"Gala", "Granny Smith", "Honeycrisp", "Fuji", "Braeburn"}
		if got := names(sorted); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("FindAllSorted = %v, want %v", got, want)
		}
	})

	t.Run("FindAllSorted unknown field", func(t *testing.T) {
		_, err := repo.FindAllSorted(ctx, types.By(types.Asc("colour")))
		if !errors.Is(err, specification.ErrUnknownField) {
			t.Errorf("error = %v, want ErrUnknownField", err)
		}
	})

	t.Run("FindAllByID skips missing ids", func(t *testing.T) {
		got, err := repo.FindAllByID(ctx, apples[0].ID, 4242, apples[2].ID)
		if err != nil {
			t.Fatalf("FindAllByID: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("FindAllByID returned %v", got)
		}
		got, err = repo.FindAllByID(ctx)
		if err != nil || len(got) != 0 {
			t.Errorf("FindAllByID() = %v, %v", got, err)
		}
	})

	t.Run("Query with raw clause", func(t *testing.T) {
		got, err := repo.Query(ctx, "price < ?", 1.0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(got) != 1 || got[0].AppleName != "Granny Smith" {
			t.Errorf("Query = %v", got)
		}
	})
}

func TestAppleRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Delete entity", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		apples := seedApples(t, repo)
		if err := repo.Delete(ctx, apples[0]); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, found, _ := repo.FindByID(ctx, apples[0].ID); found {
			t.Error("deleted apple still found")
		}
		all, _ := repo.FindAll(ctx)
		if len(all) != len(apples)-1 {
			t.Errorf("FindAll returned %d rows, want %d", len(all), len(apples)-1)
		}
	})

	t.Run("missing rows are a no-op", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		apples := seedApples(t, repo)
		if err := repo.DeleteByID(ctx, 777); err != nil {
			t.Errorf("DeleteByID(777) = %v", err)
		}
		if err := repo.Delete(ctx, model.NewApple("ghost", "", 0)); err != nil {
			t.Errorf("Delete(transient) = %v", err)
		}
		count, _ := repo.Count(ctx)
		if count != len(apples) {
			t.Errorf("Count = %d, want %d", count, len(apples))
		}
	})

	t.Run("DeleteAllByID and DeleteAll", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		apples := seedApples(t, repo)
		if err := repo.DeleteAllByID(ctx, apples[0].ID, apples[1].ID); err != nil {
			t.Fatalf("DeleteAllByID: %v", err)
		}
		if count, _ := repo.Count(ctx); count != len(apples)-2 {
			t.Errorf("Count = %d, want %d", count, len(apples)-2)
		}
		if err := repo.DeleteAll(ctx); err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		all, err := repo.FindAll(ctx)
		if err != nil || len(all) != 0 {
			t.Errorf("FindAll after DeleteAll = %v, %v", all, err)
		}
	})

	t.Run("Delete nil entity", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		if err := repo.Delete(ctx, nil); !errors.Is(err, ErrNilEntity) {
			t.Errorf("Delete(nil) = %v", err)
		}
	})
}

func TestAppleRepository_Specification(t *testing.T) {
	ctx := context.Background()
	repo := NewAppleRepository(setupTestDB(t))
	seedApples(t, repo)

	tests := []struct {
		name string
		spec specification.Specification
		want []string
	}{
		{"eq", specification.Eq("taste", "sweet"), []string{"Fuji", "Honeycrisp"}},
		{"ne", specification.Ne("taste", "sweet"), []string{"Braeburn", "Gala", "Granny Smith"}},
		{"lt by go field name", specification.Lt("Price", 1.5), []string{"Gala", "Granny Smith"}},
		{"gte by column name", specification.Gte("price", 1.99), []string{"Fuji", "Honeycrisp"}},
		{"between", specification.Between("price", 1.25, 1.99), []string{"Braeburn", "Fuji", "Gala"}},
		{"like", specification.Like("appleName", "G%"), []string{"Gala", "Granny Smith"}},
		{"contains fold", specification.ContainsFold("apple_name", "SMITH"), []string{"Granny Smith"}},
		{"in", specification.In("taste", "sour", "tart"), []string{"Braeburn", "Granny Smith"}},
		{"empty in", specification.In("taste"), nil},
		{"not in", specification.NotIn("taste", "sweet", "mild"), []string{"Braeburn", "Granny Smith"}},
		{"and", specification.And(specification.Eq("taste", "sweet"), specification.Gt("price", 2)), []string{"Honeycrisp"}},
		{"or", specification.Or(specification.Eq("taste", "sour"), specification.Eq("taste", "tart")), []string{"Braeburn", "Granny Smith"}},
		{"not", specification.Not(specification.Lt("price", 2)), []string{"Honeycrisp"}},
		{"empty and", specification.And(), []string{"Braeburn", "Fuji", "Gala", "Granny Smith", "Honeycrisp"}},
		{"empty or", specification.Or(), nil},
		{"nil spec", nil, []string{"Braeburn", "Fuji", "Gala", "Granny Smith", "Honeycrisp"}},
		{"is null", specification.IsNull("taste"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindAllBySorted(ctx, tt.spec, types.By(types.Asc("appleName")))
			if err != nil {
				t.Fatalf("FindAllBySorted: %v", err)
			}
			if strings.Join(names(got), ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", names(got), tt.want)
			}
			count, err := repo.CountBy(ctx, tt.spec)
			if err != nil || count != len(tt.want) {
				t.Errorf("CountBy = %d, %v, want %d", count, err, len(tt.want))
			}
			exists, err := repo.ExistsBy(ctx, tt.spec)
			if err != nil || exists != (len(tt.want) > 0) {
				t.Errorf("ExistsBy = %v, %v", exists, err)
			}
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		_, err := repo.FindAllBy(ctx, specification.Eq("colour", "red"))
		if !errors.Is(err, specification.ErrUnknownField) {
			t.Errorf("error = %v, want ErrUnknownField", err)
		}
	})

	t.Run("FindOne", func(t *testing.T) {
		apple, found, err := repo.FindOne(ctx, specification.Eq("appleName", "Gala"))
		if err != nil || !found || apple.AppleName != "Gala" {
			t.Errorf("FindOne(Gala) = %v, %v, %v", apple, found, err)
		}
		apple, found, err = repo.FindOne(ctx, specification.Eq("appleName", "Jazz"))
		if err != nil || found || apple != nil {
			t.Errorf("FindOne(Jazz) = %v, %v, %v", apple, found, err)
		}
		_, _, err = repo.FindOne(ctx, specification.Eq("taste", "sweet"))
		if !errors.Is(err, ErrNonUniqueResult) {
			t.Errorf("FindOne(sweet) error = %v, want ErrNonUniqueResult", err)
		}
	})

	t.Run("parsed filter", func(t *testing.T) {
		spec, err := specification.ParseAll([]string{"taste = 'sweet'", "price<2"}, false)
		if err != nil {
			t.Fatalf("ParseAll: %v", err)
		}
		got, err := repo.FindAllBy(ctx, spec)
		if err != nil || len(got) != 1 || got[0].AppleName != "Fuji" {
			t.Errorf("FindAllBy = %v, %v", got, err)
		}
	})
}

func TestAppleRepository_DeleteBy(t *testing.T) {
	ctx := context.Background()
	repo := NewAppleRepository(setupTestDB(t))
	apples := seedApples(t, repo)

	n, err := repo.DeleteBy(ctx, specification.Eq("taste", "sweet"))
	if err != nil {
		t.Fatalf("DeleteBy: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteBy removed %d rows, want 2", n)
	}
	n, err = repo.DeleteBy(ctx, specification.Eq("taste", "sweet"))
	if err != nil || n != 0 {
		t.Errorf("second DeleteBy = %d, %v", n, err)
	}
	if count, _ := repo.Count(ctx); count != len(apples)-2 {
		t.Errorf("Count = %d, want %d", count, len(apples)-2)
	}
}

func TestAppleRepository_Page(t *testing.T) {
	ctx := context.Background()
	repo := NewAppleRepository(setupTestDB(t))
	seedApples(t, repo)

	req := types.NewPageRequest(1, 2, types.By(types.Asc("price")))
	var got []string
	for {
		page, err := repo.Page(ctx, req)
		if err != nil {
			t.Fatalf("Page: %v", err)
		}
		if page.Total != 5 || page.TotalPages() != 3 {
			t.Fatalf("page %d: total %d pages %d", req.GetPage(), page.Total, page.TotalPages())
		}
		for _, a := range page.Items {
			got = append(got, a.AppleName)
		}
		if !page.HasNext() {
			break
		}
		req = req.Next()
	}
	want := []string{"Granny Smith", "Gala", "Braeburn", "Fuji", "Honeycrisp"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("pages = %v, want %v", got, want)
	}

	page, err := repo.PageBy(ctx, specification.Eq("taste", "bitter"), types.NewDefaultPageRequest(1, 10))
	if err != nil {
		t.Fatalf("PageBy: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Errorf("PageBy(bitter) = %+v", page)
	}

	page, err = repo.Page(ctx, types.NewDefaultPageRequest(9, 2))
	if err != nil {
		t.Fatalf("Page beyond end: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 0 {
		t.Errorf("Page beyond end = %+v", page)
	}
}

func TestAppleRepository_Transactions(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback discards writes", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		boom := errors.New("boom")
		err := repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			if _, err := repo.SaveWithTx(ctx, tx, model.NewApple("Fuji", "sweet", 1)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("RunInTx = %v, want boom", err)
		}
		if count, _ := repo.Count(ctx); count != 0 {
			t.Errorf("Count after rollback = %d", count)
		}
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		repo := NewAppleRepository(setupTestDB(t))
		apples := seedApples(t, repo)
		err := repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			if err := repo.DeleteByIDWithTx(ctx, tx, apples[0].ID); err != nil {
				return err
			}
			_, err := repo.SaveWithTx(ctx, tx, model.NewApple("Jazz", "tangy", 2))
			return err
		})
		if err != nil {
			t.Fatalf("RunInTx: %v", err)
		}
		if count, _ := repo.Count(ctx); count != len(apples) {
			t.Errorf("Count = %d, want %d", count, len(apples))
		}
		if _, found, _ := repo.FindByID(ctx, apples[0].ID); found {
			t.Error("deleted apple still found")
		}
	})
}

func TestAppleRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewAppleRepository(setupTestDB(t))
	apples := seedApples(t, repo)

	changed := &model.Apple{ID: apples[0].ID, AppleName: "Fuji", Taste: "very sweet", Price: 4}
	fresh := &model.Apple{ID: 100, AppleName: "Jazz", Taste: "tangy", Price: 2}
	if err := repo.Upsert(ctx, []string{"taste", "Price"}, nil, changed, fresh); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, _, err := repo.FindByID(ctx, apples[0].ID)
	if err != nil || got.Taste != "very sweet" || got.Price != 4 {
		t.Errorf("upserted row = %v, %v", got, err)
	}
	if _, found, _ := repo.FindByID(ctx, 100); !found {
		t.Error("inserted row 100 missing")
	}

	if err := repo.Upsert(ctx, nil, nil, changed); !errors.Is(err, ErrEmptyFields) {
		t.Errorf("Upsert without fields = %v", err)
	}
	if err := repo.Upsert(ctx, []string{"colour"}, nil, changed); !errors.Is(err, specification.ErrUnknownField) {
		t.Errorf("Upsert unknown field = %v", err)
	}
}

func TestRepository_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no database", func(t *testing.T) {
		repo := NewAppleRepository(nil)
		if _, _, err := repo.FindByID(ctx, 1); !errors.Is(err, ErrNoDatabase) {
			t.Errorf("FindByID = %v, want ErrNoDatabase", err)
		}
	})

	t.Run("composite key", func(t *testing.T) {
		type pair struct {
			bun.BaseModel `bun:"table:pairs"`
			A             int64 `bun:"a,pk"`
			B             int64 `bun:"b,pk"`
		}
		repo := NewRepository[pair, int64](setupTestDB(t))
		if _, err := repo.Count(ctx); !errors.Is(err, ErrCompositeKey) {
			t.Errorf("Count = %v, want ErrCompositeKey", err)
		}
	})

	t.Run("missing table", func(t *testing.T) {
		type orphan struct {
			bun.BaseModel `bun:"table:orphans"`
			ID            int64 `bun:"id,pk,autoincrement"`
		}
		repo := NewRepository[orphan, int64](setupTestDB(t))
		_, err := repo.FindAll(ctx)
		if !errors.Is(err, database.ErrNoTable) {
			t.Errorf("FindAll = %v, want ErrNoTable", err)
		}
	})
}
