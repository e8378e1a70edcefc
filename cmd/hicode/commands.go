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
	"fmt"

	"github.com/tomoncle/hicode/database"
	"github.com/urfave/cli/v3"
)

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or create configuration files",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the default configuration to a .yaml or .toml file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Destination file",
						Value: defaultConfigPath,
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: r.ConfigShow,
			},
		},
	}
}

func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := database.WriteConfig(database.DefaultConfig(), path); err != nil {
		return err
	}
	return r.printf("configuration written to %s\n", path)
}

// ConfigShow prints the configuration after DB_* environment overrides.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	database.OverrideFromEnv(&cfg.ConnectionConfig)
	cfg.ConnectionConfig.Password = mask(cfg.ConnectionConfig.Password)
	return r.render(cmd, cfg)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create tables and apply pending migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Drop all tables and migration records first",
			},
			&cli.BoolFlag{
				Name:  "seed",
				Usage: "Run the SQL seed files as part of the migration",
			},
		},
		Action: r.Migrate,
	}
}

func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	var opts database.MigrationOptions
	closeDB, err := r.connect(ctx, cmd, func(cfg *database.Config) {
		cfg.DataMigrateConfig.EnableMigrateOnStartup = false
		cfg.DataInitConfig.AutoInitOnStartup = false
		if cmd.Bool("seed") {
			cfg.DataInitConfig.AutoInitOnMigration = true
		}
		opts = cfg.MigrationOptions()
	})
	if err != nil {
		return err
	}
	defer closeDB()

	manager := database.NewMigrationManager(database.GetDB(), nil, opts)
	if cmd.Bool("reset") {
		r.logger.Warn("dropping all tables")
		if err := manager.DropTables(ctx); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}
	if err := manager.RunMigrations(ctx); err != nil {
		return err
	}
	applied, err := manager.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if cmd.String("output") != "text" {
		return r.render(cmd, applied)
	}
	for _, m := range applied {
		if err := r.printf("%s  %-22s %s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
	}
	return nil
}

func seedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Execute the SQL seed files of the configured environment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "Seed environment, overrides data_init.environment",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Seed root directory, overrides data_init.filepath",
			},
		},
		Action: r.Seed,
	}
}

func (r *Runner) Seed(ctx context.Context, cmd *cli.Command) error {
	closeDB, err := r.connect(ctx, cmd, func(cfg *database.Config) {
		cfg.DataMigrateConfig.EnableMigrateOnStartup = cmd.Bool("auto-migrate")
		cfg.DataInitConfig.AutoInitOnStartup = false
		cfg.DataInitConfig.AutoInitOnMigration = false
		if env := cmd.String("env"); env != "" {
			cfg.DataInitConfig.Environment = env
		}
		if path := cmd.String("path"); path != "" {
			cfg.DataInitConfig.Filepath = path
		}
	})
	if err != nil {
		return err
	}
	defer closeDB()

	if err := database.InitData(ctx); err != nil {
		return err
	}
	return r.printf("seed completed\n")
}

func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Ping the database and print pool statistics",
		Action: r.Health,
	}
}

type healthReport struct {
	Status *database.HealthStatus `json:"status" yaml:"status"`
	Stats  *database.DBStats      `json:"stats" yaml:"stats"`
}

func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	closeDB, err := r.connect(ctx, cmd, func(cfg *database.Config) {
		cfg.DataMigrateConfig.EnableMigrateOnStartup = false
		cfg.DataInitConfig.AutoInitOnStartup = false
	})
	if err != nil {
		return err
	}
	defer closeDB()

	report := healthReport{
		Status: database.GetHealthStatus(ctx),
		Stats:  database.GetDatabaseStats(),
	}
	if cmd.String("output") != "text" {
		return r.render(cmd, report)
	}
	state := "UP"
	if !report.Status.Healthy {
		state = "DOWN"
	}
	return r.printf("%s response=%s open=%d in_use=%d idle=%d %s\n",
		state,
		report.Status.ResponseTime,
		report.Stats.OpenConns,
		report.Stats.InUse,
		report.Stats.Idle,
		report.Status.LastError,
	)
}
