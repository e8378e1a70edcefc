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
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalManager AbstractDatabaseManager
	globalConfig  *Config
)

// GetDB returns the global Bun database instance, or nil before InitDB.
func GetDB() *bun.DB {
	if manager := GetDatabaseManager(); manager != nil {
		return manager.GetDB()
	}
	return nil
}

// GetDatabaseManager returns the global database manager.
func GetDatabaseManager() AbstractDatabaseManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// InitDB connects the global database described by cfg, after applying DB_*
// environment overrides, and runs migrations and seeding as cfg asks. A
// previously initialized database is closed once the new one is installed.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	OverrideFromEnv(&cfg.ConnectionConfig)
	if err := cfg.ConnectionConfig.Validate(); err != nil {
		return nil, err
	}

	logger := GetLogger()
	manager := NewDatabaseManager(&cfg.ConnectionConfig)
	manager.SetLogger(logger)
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	opts := cfg.MigrationOptions()
	if cfg.DataMigrateConfig.EnableMigrateOnStartup {
		if err := manager.RunMigrations(ctx, opts); err != nil {
			_ = manager.Disconnect()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	db := manager.GetDB()
	db.RegisterModel(RegisteredModelInstances()...)

	globalMu.Lock()
	previous := globalManager
	globalManager, globalConfig = manager, cfg
	globalMu.Unlock()
	if previous != nil {
		_ = previous.Disconnect()
	}
	logger.Info("Database initialization completed", "type", cfg.ConnectionConfig.Type)

	if cfg.DataInitConfig.AutoInitOnStartup && !cfg.DataInitConfig.AutoInitOnMigration {
		if err := manager.InitData(ctx, opts); err != nil {
			return nil, fmt.Errorf("failed to initialize data: %w", err)
		}
	}
	return db, nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	globalMu.Lock()
	manager := globalManager
	globalManager, globalConfig = nil, nil
	globalMu.Unlock()
	if manager != nil {
		return manager.Disconnect()
	}
	return nil
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if manager := GetDatabaseManager(); manager != nil {
		return manager.HealthCheck(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized"}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if manager := GetDatabaseManager(); manager != nil {
		return manager.GetStats()
	}
	return &DBStats{}
}

// RunMigrations executes database migrations against the global database.
func RunMigrations(ctx context.Context) error {
	manager, cfg, err := initialized()
	if err != nil {
		return err
	}
	return manager.RunMigrations(ctx, cfg.MigrationOptions())
}

// InitData seeds the global database from the configured SQL directory.
func InitData(ctx context.Context) error {
	manager, cfg, err := initialized()
	if err != nil {
		return err
	}
	return manager.InitData(ctx, cfg.MigrationOptions())
}

func initialized() (AbstractDatabaseManager, *Config, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalManager == nil {
		return nil, nil, ErrNotConnected
	}
	return globalManager, globalConfig, nil
}
