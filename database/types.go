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
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection, running migrations, initializing data, and reporting health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context, opts MigrationOptions) error
	InitData(ctx context.Context, opts MigrationOptions) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Type                string        `json:"type" yaml:"type" toml:"type"` // postgres, mysql, sqlite
	Host                string        `json:"host" yaml:"host" toml:"host"`
	Port                int           `json:"port" yaml:"port" toml:"port"`
	Username            string        `json:"username" yaml:"username" toml:"username"`
	Password            string        `json:"password" yaml:"password" toml:"password"`
	DBName              string        `json:"dbname" yaml:"dbname" toml:"dbname"` // sqlite: file path or ":memory:"
	SSLMode             string        `json:"sslmode" yaml:"sslmode" toml:"sslmode"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns" toml:"max_idle_conns"`
	MaxOpenConns        int           `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" toml:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	EnableReconnect     bool          `json:"enable_reconnect" yaml:"enable_reconnect" toml:"enable_reconnect"`
	ReconnectInterval   time.Duration `json:"reconnect_interval" yaml:"reconnect_interval" toml:"reconnect_interval"`
	MaxReconnectTries   int           `json:"max_reconnect_tries" yaml:"max_reconnect_tries" toml:"max_reconnect_tries"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval" toml:"health_check_interval"`
	EnableQueryLog      bool          `json:"enable_query_log" yaml:"enable_query_log" toml:"enable_query_log"`
	QueryLogStyle       string        `json:"query_log_style" yaml:"query_log_style" toml:"query_log_style"` // bundebug, color
	SlowQueryTime       time.Duration `json:"slow_query_time" yaml:"slow_query_time" toml:"slow_query_time"`
}

// DataMigrateConfig controls schema migration behavior on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool `json:"enable_migrate_on_startup" yaml:"enable_migrate_on_startup" toml:"enable_migrate_on_startup"`
}

// DataInitConfig controls data seeding behavior and environment selection.
type DataInitConfig struct {
	AutoInitOnStartup   bool   `json:"auto_init_on_startup" yaml:"auto_init_on_startup" toml:"auto_init_on_startup"`
	AutoInitOnMigration bool   `json:"auto_init_on_migration" yaml:"auto_init_on_migration" toml:"auto_init_on_migration"`
	Filepath            string `json:"filepath" yaml:"filepath" toml:"filepath"`
	Environment         string `json:"environment" yaml:"environment" toml:"environment"`
	RenderTemplate      bool   `json:"render_template" yaml:"render_template" toml:"render_template"`
}

// LoggingConfig sets the log level and the optional daily rolling file logs.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" toml:"level"`
	Dir        string `json:"dir" yaml:"dir" toml:"dir"` // empty keeps logs on the console only
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	FileFormat string `json:"file_format" yaml:"file_format" toml:"file_format"` // text, json
}

// Config aggregates connection, migration, data initialization and logging settings.
type Config struct {
	ConnectionConfig  ConnectionConfig  `json:"connection_config" yaml:"connection" toml:"connection"`
	DataMigrateConfig DataMigrateConfig `json:"data_migrate_config" yaml:"migrate" toml:"migrate"`
	DataInitConfig    DataInitConfig    `json:"data_init_config" yaml:"data_init" toml:"data_init"`
	LoggingConfig     LoggingConfig     `json:"logging_config" yaml:"logging" toml:"logging"`
}

// MigrationOptions returns the options the migration manager runs with.
func (c *Config) MigrationOptions() MigrationOptions {
	return MigrationOptions{
		SeedOnMigrate:  c.DataInitConfig.AutoInitOnMigration,
		SQLRootPath:    c.DataInitConfig.Filepath,
		Environment:    c.DataInitConfig.Environment,
		RenderTemplate: c.DataInitConfig.RenderTemplate,
	}
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		QueryLogStyle:       "bundebug",
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultConfig returns a Config pointing at a local SQLite file.
func DefaultConfig() *Config {
	conn := DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = "hicode.db"
	return &Config{
		ConnectionConfig: *conn,
		DataInitConfig: DataInitConfig{
			Filepath:    "configs/sql",
			Environment: "prod",
		},
		LoggingConfig: LoggingConfig{
			MaxAgeDays: 7,
			FileFormat: "text",
		},
	}
}
