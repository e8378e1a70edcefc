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

package database

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// MigrationOptions controls which migrations run and where seed files live.
type MigrationOptions struct {
	SeedOnMigrate  bool
	SQLRootPath    string
	Environment    string
	RenderTemplate bool
	// Models overrides the default model registry when non-nil.
	Models []SQLModel
}

// MigrationManager coordinates schema migrations and data initialization.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	opts   MigrationOptions
}

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:hicode_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// NewMigrationManager constructs a MigrationManager; a nil logger falls back
// to the global database logger.
func NewMigrationManager(db *bun.DB, logger Logger, opts MigrationOptions) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	return &MigrationManager{db: db, logger: logger, opts: opts}
}

func (mm *MigrationManager) models() []SQLModel {
	if mm.opts.Models != nil {
		models := make([]SQLModel, len(mm.opts.Models))
		copy(models, mm.opts.Models)
		sort.SliceStable(models, func(i, j int) bool { return models[i].Priority() < models[j].Priority() })
		return models
	}
	return GetRegisteredModels()
}

// RunMigrations creates the migration tracking table if needed and executes
// every pending migration in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotConnected
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", TranslateError(err))
	}

	migrations := mm.getAllMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, TranslateError(err))
		}
	}

	mm.logger.Info("Database migrations completed!")
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     "001",
			Name:        "create_base_tables",
			Description: "Create tables for registered models",
			Up:          mm.createBaseTables,
		},
	}
	if mm.opts.SeedOnMigrate {
		migrations = append(migrations, MigrationItem{
			Version:     "002",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up:          mm.seedInitialData,
		})
	}
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		mm.logger.Debug("Migration already applied", "version", migration.Version)
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}

	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

// CreateTables creates the tables of every model that does not have one yet.
func (mm *MigrationManager) CreateTables(ctx context.Context) error {
	return mm.createBaseTables(ctx, mm.db)
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	for _, model := range mm.models() {
		_, err := db.NewCreateTable().
			Model(model.Instance()).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table %T: %w", model.Instance(), err)
		}
	}
	return nil
}

// DropTables drops every model table in reverse priority order together with
// the migration records, so the next RunMigrations starts from scratch.
func (mm *MigrationManager) DropTables(ctx context.Context) error {
	models := mm.models()
	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := len(models) - 1; i >= 0; i-- {
			if _, err := tx.NewDropTable().Model(models[i].Instance()).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table %T: %w", models[i].Instance(), TranslateError(err))
			}
		}
		_, err := tx.NewDropTable().Model((*Migration)(nil)).IfExists().Exec(ctx)
		return err
	})
}

// InitData runs the SQL seed files regardless of migration state.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotConnected
	}
	return mm.seedInitialData(ctx, mm.db)
}

func (mm *MigrationManager) seedInitialData(ctx context.Context, db bun.IDB) error {
	sqlManager := NewSQLInitManager(mm.opts.Environment)
	sqlManager.SetLogger(mm.logger)
	sqlManager.SetRenderTemplate(mm.opts.RenderTemplate)
	if mm.opts.SQLRootPath != "" {
		sqlManager.SetSQLRootPath(mm.opts.SQLRootPath)
	}

	mm.logger.Info("Starting data initialization using SQL files", "environment", mm.opts.Environment)
	if _, err := sqlManager.ExecuteInitialization(ctx, db); err != nil {
		return fmt.Errorf("SQL file initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, TranslateError(err)
}
