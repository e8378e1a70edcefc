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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/hicode"
	"github.com/tomoncle/hicode/database"
	"github.com/tomoncle/hicode/model"
	"github.com/tomoncle/hicode/utils"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "hicode.yaml"

// Runner holds the dependencies of the CLI commands.
type Runner struct {
	logger *logrus.Logger
	output io.Writer
	apples hicode.Service[model.Apple, int64]
	users  hicode.Service[model.User, int64]
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *logrus.Logger
	Output io.Writer
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger("HICODE")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		logger: opts.Logger,
		output: opts.Output,
		apples: hicode.NewAppleService(),
		users:  hicode.NewUserService(),
	}
}

// App returns the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:    "hicode",
		Usage:   "Manage the apple and user tables",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML configuration file",
				Value:   defaultConfigPath,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "Also write daily rolling log files under this directory",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: text, json or yaml",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "auto-migrate",
				Usage: "Create missing tables before running entity commands",
				Value: true,
			},
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		configCommand, migrateCommand, seedCommand, healthCommand, appleCommand, userCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// loadConfig reads the configured file and applies its logging section. A
// missing file is only an error when the path was given explicitly.
func (r *Runner) loadConfig(cmd *cli.Command) (*database.Config, error) {
	path := cmd.String("config")
	cfg, err := database.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) && !cmd.IsSet("config") {
		r.logger.Debugf("config file %s not found, using defaults", path)
		cfg, err = database.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := configureLogging(cmd, &cfg.LoggingConfig); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configureLogging applies lc with --log-level and --log-dir taking
// precedence over the file.
func configureLogging(cmd *cli.Command, lc *database.LoggingConfig) error {
	if level := cmd.String("log-level"); level != "" {
		lc.Level = level
	}
	if dir := cmd.String("log-dir"); dir != "" {
		lc.Dir = dir
	}
	if lc.Level != "" {
		utils.ConfigureLogLevel(lc.Level)
	}
	if lc.Dir == "" {
		return nil
	}
	utils.ConfigureFileLogFormat(lc.FileFormat)
	return utils.ConfigureFileLog(lc.Dir, lc.MaxAgeDays)
}

// connect initializes the global database after letting configure adjust
// the loaded configuration. The returned func closes it.
func (r *Runner) connect(ctx context.Context, cmd *cli.Command, configure func(cfg *database.Config)) (func(), error) {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if configure != nil {
		configure(cfg)
	}
	if _, err := database.InitDB(ctx, cfg); err != nil {
		return nil, err
	}
	return func() {
		if err := database.CloseDB(); err != nil {
			r.logger.Warnf("failed to close database: %v", err)
		}
	}, nil
}

func (r *Runner) connectForEntities(ctx context.Context, cmd *cli.Command) (func(), error) {
	return r.connect(ctx, cmd, func(cfg *database.Config) {
		if cmd.Bool("auto-migrate") {
			cfg.DataMigrateConfig.EnableMigrateOnStartup = true
		}
	})
}

// render writes v in the format selected by --output; text falls back to
// fmt's default formatting, which uses String methods.
func (r *Runner) render(cmd *cli.Command, v any) error {
	switch format := strings.ToLower(cmd.String("output")); format {
	case "json":
		enc := json.NewEncoder(r.output)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(r.output)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		_, err := fmt.Fprintln(r.output, v)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func (r *Runner) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(r.output, format, args...)
	return err
}
