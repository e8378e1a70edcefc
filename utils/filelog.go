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

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const logDateLayout = "2006-01-02"

var (
	fileLogMu         sync.Mutex
	fileLogEnabled    = EnvDefaultBool("FILE_LOG_ENABLED", false)
	fileLogDir        = EnvDefaultString("FILE_LOG_DIR", "logs")
	fileLogMaxAgeDays = EnvDefaultInt("FILE_LOG_MAX_AGE_DAYS", 7)
	fileLogFormat     = EnvDefaultString("FILE_LOG_FORMAT", "text")

	// clock is replaced in tests to roll files over day boundaries.
	clock = time.Now
)

// ConfigureFileLog turns on daily rolling file logs under dir for every
// registered logger and for loggers created later. Each level writes to
// <dir>/<yyyy-mm-dd>/<level>.log; day directories older than maxAgeDays
// are removed when the day rolls over, and a negative maxAgeDays keeps
// them forever.
func ConfigureFileLog(dir string, maxAgeDays int) error {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileLogMu.Lock()
	fileLogEnabled = true
	fileLogDir = dir
	fileLogMaxAgeDays = maxAgeDays
	fileLogMu.Unlock()

	loggerRegistryMu.RLock()
	defer loggerRegistryMu.RUnlock()
	for name, lg := range loggerRegistry {
		removeFileHooks(lg)
		if err := AddDailyRollingFileHook(lg, name, dir, maxAgeDays); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureFileLogFormat selects "json" or "text" for file logs set up
// afterwards.
func ConfigureFileLogFormat(format string) {
	fileLogMu.Lock()
	defer fileLogMu.Unlock()
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		fileLogFormat = "json"
	} else {
		fileLogFormat = "text"
	}
}

// DisableFileLog detaches the file hooks from every registered logger and
// closes their files.
func DisableFileLog() {
	fileLogMu.Lock()
	fileLogEnabled = false
	fileLogMu.Unlock()

	loggerRegistryMu.RLock()
	defer loggerRegistryMu.RUnlock()
	for _, lg := range loggerRegistry {
		removeFileHooks(lg)
	}
}

// AddDailyRollingFileHook attaches a file hook for the logger registered
// as name.
func AddDailyRollingFileHook(l *logrus.Logger, name, dir string, maxAgeDays int) error {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fileLogMu.Lock()
	format := fileLogFormat
	fileLogMu.Unlock()

	var formatter logrus.Formatter = &Log4jColorFormatter{LoggerName: name, NameWidth: 10}
	if format == "json" {
		formatter = &JSONLogFormatter{LoggerName: name}
	}

	errorW := &dailyLevelWriter{baseDir: dir, level: "error", maxAgeDays: maxAgeDays}
	l.AddHook(&levelWriterHook{
		writers: map[logrus.Level]*dailyLevelWriter{
			logrus.TraceLevel: {baseDir: dir, level: "trace", maxAgeDays: maxAgeDays},
			logrus.DebugLevel: {baseDir: dir, level: "debug", maxAgeDays: maxAgeDays},
			logrus.InfoLevel:  {baseDir: dir, level: "info", maxAgeDays: maxAgeDays},
			logrus.WarnLevel:  {baseDir: dir, level: "warn", maxAgeDays: maxAgeDays},
			logrus.ErrorLevel: errorW,
			logrus.FatalLevel: errorW,
			logrus.PanicLevel: errorW,
		},
		formatter: formatter,
	})
	return nil
}

// addFileHookIfEnabled is called by NewLogger for freshly created loggers.
func addFileHookIfEnabled(l *logrus.Logger, name string) {
	fileLogMu.Lock()
	enabled, dir, maxAge := fileLogEnabled, fileLogDir, fileLogMaxAgeDays
	fileLogMu.Unlock()
	if enabled {
		if err := AddDailyRollingFileHook(l, name, dir, maxAge); err != nil {
			fmt.Fprintf(os.Stderr, "file logging disabled for %s: %v\n", name, err)
		}
	}
}

func removeFileHooks(l *logrus.Logger) {
	kept := make(logrus.LevelHooks)
	closed := map[*levelWriterHook]bool{}
	for level, hooks := range l.Hooks {
		for _, h := range hooks {
			if fh, ok := h.(*levelWriterHook); ok {
				if !closed[fh] {
					fh.Close()
					closed[fh] = true
				}
				continue
			}
			kept[level] = append(kept[level], h)
		}
	}
	l.ReplaceHooks(kept)
}

// levelWriterHook routes each entry to the writer of its level.
type levelWriterHook struct {
	writers   map[logrus.Level]*dailyLevelWriter
	formatter logrus.Formatter
}

func (h *levelWriterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelWriterHook) Fire(e *logrus.Entry) error {
	w, ok := h.writers[e.Level]
	if !ok {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func (h *levelWriterHook) Close() {
	seen := map[*dailyLevelWriter]bool{}
	for _, w := range h.writers {
		if !seen[w] {
			_ = w.Close()
			seen[w] = true
		}
	}
}

// dailyLevelWriter appends to <baseDir>/<date>/<level>.log and reopens
// the file when the date changes.
type dailyLevelWriter struct {
	baseDir    string
	level      string
	maxAgeDays int

	mu      sync.Mutex
	curDate string
	file    *os.File
}

var _ io.WriteCloser = (*dailyLevelWriter)(nil)

func (w *dailyLevelWriter) Write(p []byte) (int, error) {
	now := clock()
	date := now.Format(logDateLayout)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil || w.curDate != date {
		rolled := w.curDate != "" && w.curDate != date
		if err := w.open(date); err != nil {
			return 0, err
		}
		if rolled {
			w.cleanup(now)
		}
	}
	return w.file.Write(p)
}

func (w *dailyLevelWriter) open(date string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, w.level+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file, w.curDate = f, date
	return nil
}

// cleanup removes day directories older than maxAgeDays before now.
func (w *dailyLevelWriter) cleanup(now time.Time) {
	if w.maxAgeDays < 0 {
		return
	}
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, -w.maxAgeDays)
	entries, err := os.ReadDir(w.baseDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.ParseInLocation(logDateLayout, e.Name(), time.Local)
		if err != nil {
			continue
		}
		if d.Before(cutoff) {
			_ = os.RemoveAll(filepath.Join(w.baseDir, e.Name()))
		}
	}
}

func (w *dailyLevelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file, w.curDate = nil, ""
	return err
}
