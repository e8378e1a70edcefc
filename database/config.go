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
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-sql-driver/mysql"
	"github.com/tomoncle/hicode/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedDatabase = errors.New("unsupported database type")
	ErrNotConnected        = errors.New("database not connected")
)

// driverBinding ties a configured database type to its database/sql driver,
// its bun dialect and the DSN built from a ConnectionConfig.
type driverBinding struct {
	driver  string
	dialect func() schema.Dialect
	dsn     func(c *ConnectionConfig) string
}

var (
	mysqlBinding = driverBinding{
		driver:  "mysql",
		dialect: func() schema.Dialect { return mysqldialect.New() },
		dsn:     (*ConnectionConfig).mysqlDSN,
	}
	postgresBinding = driverBinding{
		driver:  "postgres",
		dialect: func() schema.Dialect { return pgdialect.New() },
		dsn:     (*ConnectionConfig).postgresDSN,
	}
	sqliteBinding = driverBinding{
		driver:  sqliteshim.ShimName,
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		dsn:     func(c *ConnectionConfig) string { return SQLiteDSN(c.DBName) },
	}
	drivers = map[string]driverBinding{
		"mysql":      mysqlBinding,
		"postgres":   postgresBinding,
		"postgresql": postgresBinding,
		"sqlite":     sqliteBinding,
		"sqlite3":    sqliteBinding,
	}
)

// SupportedTypes lists the accepted values of ConnectionConfig.Type.
func SupportedTypes() []string {
	types := make([]string, 0, len(drivers))
	for t := range drivers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate reports an ErrUnsupportedDatabase for unknown database types.
func (c *ConnectionConfig) Validate() error {
	if _, ok := drivers[strings.ToLower(c.Type)]; !ok {
		return fmt.Errorf("%w: %q, supported types: %v", ErrUnsupportedDatabase, c.Type, SupportedTypes())
	}
	return nil
}

// openDB opens a pool for the configured type without connecting to it.
func (c *ConnectionConfig) openDB() (*bun.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	binding := drivers[strings.ToLower(c.Type)]
	sqlDB, err := sql.Open(binding.driver, binding.dsn(c))
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqlDB, binding.dialect()), nil
}

func (c *ConnectionConfig) mysqlDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = c.ConnectTimeout
	mc.ReadTimeout = c.ReadTimeout
	mc.WriteTimeout = c.WriteTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func (c *ConnectionConfig) postgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	if c.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// SQLiteDSN turns a configured database name into a SQLite DSN: ":memory:"
// becomes a shared in-memory database, "file:" URIs pass through and bare
// names without an extension get ".db" appended.
func SQLiteDSN(name string) string {
	switch {
	case name == "" || name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"):
		return name
	case filepath.Ext(name) == "":
		return name + ".db"
	default:
		return name
	}
}

// OverrideFromEnv applies DB_* environment variables on top of cfg. Values
// that fail to parse leave the configured value in place.
func OverrideFromEnv(cfg *ConnectionConfig) {
	cfg.Type = utils.EnvDefaultString("DB_TYPE", cfg.Type)
	cfg.Host = utils.EnvDefaultString("DB_HOST", cfg.Host)
	cfg.Port = utils.EnvDefaultInt("DB_PORT", cfg.Port)
	cfg.Username = utils.EnvDefaultString("DB_USERNAME", cfg.Username)
	cfg.Password = utils.EnvDefaultString("DB_PASSWORD", cfg.Password)
	cfg.DBName = utils.EnvDefaultString("DB_NAME", cfg.DBName)
	cfg.SSLMode = utils.EnvDefaultString("DB_SSLMODE", cfg.SSLMode)

	cfg.MaxIdleConns = utils.EnvDefaultInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.MaxOpenConns = utils.EnvDefaultInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.ConnMaxLifetime = utils.EnvDefaultDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)

	cfg.EnableReconnect = utils.EnvDefaultBool("DB_ENABLE_RECONNECT", cfg.EnableReconnect)
	cfg.ReconnectInterval = utils.EnvDefaultDuration("DB_RECONNECT_INTERVAL", cfg.ReconnectInterval)
	cfg.HealthCheckInterval = utils.EnvDefaultDuration("DB_HEALTH_CHECK_INTERVAL", cfg.HealthCheckInterval)

	cfg.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", cfg.EnableQueryLog)
	cfg.QueryLogStyle = utils.EnvDefaultString("DB_QUERY_LOG_STYLE", cfg.QueryLogStyle)
	cfg.SlowQueryTime = utils.EnvDefaultDuration("DB_SLOW_QUERY_TIME", cfg.SlowQueryTime)
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) configuration file.
// Values absent from the file keep the defaults of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q, expected .yaml, .yml or .toml", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// WriteConfig stores cfg as YAML or TOML depending on the extension of path,
// creating parent directories as needed.
func WriteConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(cfg)
		data = []byte(b.String())
	default:
		return fmt.Errorf("unsupported config file extension %q, expected .yaml, .yml or .toml", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
