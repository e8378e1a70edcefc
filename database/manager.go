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
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	defaultConnectTimeout = 30 * time.Second
	healthPingTimeout     = 5 * time.Second
)

// bunManager owns one bun.DB at a time. While connected with a positive
// HealthCheckInterval a monitor goroutine pings the database and, when
// EnableReconnect is set, reopens it after failures. Disconnect stops the
// monitor before it returns, so a closed manager is never reopened behind
// the caller's back.
type bunManager struct {
	config *ConnectionConfig

	mu             sync.RWMutex
	logger         Logger
	db             *bun.DB
	sqlDB          *sql.DB
	lastError      error
	healthStatus   *HealthStatus
	reconnectTries int

	// monitor lifetime, one per successful Connect
	stopMonitor context.CancelFunc
	monitorDone chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by bun.
// A nil config falls back to DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &bunManager{
		config:       config,
		healthStatus: &HealthStatus{},
	}
}

func (m *bunManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.db != nil {
		m.mu.Unlock()
		return nil
	}
	if err := m.openLocked(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.reconnectTries = 0
	// a monitor left running after a failed reopen keeps watching the new pool
	if m.config.HealthCheckInterval > 0 && m.stopMonitor == nil {
		monitorCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		m.stopMonitor, m.monitorDone = cancel, done
		go m.monitor(monitorCtx, done)
	}
	m.mu.Unlock()

	m.log(LogLevelInfo, "Database connected successfully", "type", m.config.Type, "host", m.config.Host, "dbname", m.config.DBName)
	return nil
}

// openLocked opens and pings a new pool. The caller holds m.mu.
func (m *bunManager) openLocked(ctx context.Context) error {
	db, err := m.config.openDB()
	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	m.addQueryHooks(db)

	sqlDB := db.DB
	sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)

	timeout := m.config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		m.lastError = err
		return fmt.Errorf("database connection test failed: %w", TranslateError(err))
	}

	m.db, m.sqlDB, m.lastError = db, sqlDB, nil
	return nil
}

func (m *bunManager) addQueryHooks(db *bun.DB) {
	if m.config.EnableQueryLog {
		if strings.EqualFold(m.config.QueryLogStyle, "color") {
			db.AddQueryHook(NewQueryHook(os.Stdout, "BUNDEBUG"))
		} else {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		}
	}
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(m.config.SlowQueryTime, m.logger))
	}
}

// closeLocked closes the current pool. The caller holds m.mu.
func (m *bunManager) closeLocked() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	return err
}

func (m *bunManager) Disconnect() error {
	m.mu.Lock()
	stop, done := m.stopMonitor, m.monitorDone
	m.stopMonitor, m.monitorDone = nil, nil
	if stop != nil {
		stop()
	}
	wasOpen := m.db != nil
	err := m.closeLocked()
	m.mu.Unlock()

	if done != nil {
		<-done
	}
	if wasOpen {
		if err != nil {
			m.log(LogLevelError, "Failed to close database connection", "error", err)
		} else {
			m.log(LogLevelInfo, "Database connection closed")
		}
	}
	return err
}

func (m *bunManager) Reconnect(ctx context.Context) error {
	m.log(LogLevelInfo, "Attempting to reconnect to the database")
	if err := m.Disconnect(); err != nil {
		m.log(LogLevelWarn, "Error disconnecting existing connection", "error", err)
	}
	return m.Connect(ctx)
}

func (m *bunManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return TranslateError(db.PingContext(ctx))
}

func (m *bunManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *bunManager) GetSQLDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// HealthCheck pings the database without holding the manager lock, so a
// slow ping never blocks Disconnect.
func (m *bunManager) HealthCheck(ctx context.Context) *HealthStatus {
	m.mu.RLock()
	db, sqlDB := m.db, m.sqlDB
	m.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if db == nil {
		status.LastError = "Database not initialized"
		m.setHealth(status, nil)
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = TranslateError(err).Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	m.setHealth(status, err)
	return status
}

func (m *bunManager) setHealth(status *HealthStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
	if err != nil {
		m.lastError = err
	}
}

// monitor runs until ctx is cancelled by Disconnect.
func (m *bunManager) monitor(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if status := m.HealthCheck(ctx); status.Healthy || !m.config.EnableReconnect {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		m.reopen(ctx)
	}
}

// reopen reopens the pool after a failed health check. It gives up once
// MaxReconnectTries consecutive attempts have failed.
func (m *bunManager) reopen(ctx context.Context) {
	m.mu.Lock()
	if m.reconnectTries >= m.config.MaxReconnectTries {
		tries := m.reconnectTries
		m.mu.Unlock()
		m.log(LogLevelError, "Max reconnect attempts reached, stopping", "tries", tries)
		return
	}
	m.reconnectTries++
	try := m.reconnectTries
	m.mu.Unlock()

	m.log(LogLevelInfo, "Starting database reconnect", "try", try)
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.config.ReconnectInterval):
	}

	m.mu.Lock()
	// Disconnect cancels ctx while holding m.mu, so this check cannot race it.
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	_ = m.closeLocked()
	err := m.openLocked(ctx)
	if err == nil {
		m.reconnectTries = 0
	}
	m.mu.Unlock()

	if err != nil {
		m.log(LogLevelError, "Reconnect failed", "error", err, "try", try)
		return
	}
	m.log(LogLevelInfo, "Reconnect succeeded", "try", try)
}

func (m *bunManager) GetStats() *DBStats {
	sqlDB := m.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (m *bunManager) RunMigrations(ctx context.Context, opts MigrationOptions) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return NewMigrationManager(db, m.currentLogger(), opts).RunMigrations(ctx)
}

func (m *bunManager) InitData(ctx context.Context, opts MigrationOptions) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return NewMigrationManager(db, m.currentLogger(), opts).InitData(ctx)
}

func (m *bunManager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

func (m *bunManager) currentLogger() Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

func (m *bunManager) log(level LogLevel, msg string, fields ...interface{}) {
	logger := m.currentLogger()
	if logger == nil {
		return
	}
	switch level {
	case LogLevelError:
		logger.Error(msg, fields...)
	case LogLevelWarn:
		logger.Warn(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}
}
