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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomoncle/hicode/database"
	"github.com/tomoncle/hicode/model"
	"github.com/tomoncle/hicode/types"
	"github.com/tomoncle/hicode/utils"
)

// writeTestConfig stores a configuration pointing at a fresh SQLite file.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.DBName = filepath.Join(dir, "hicode.db")
	cfg.ConnectionConfig.Password = "secret"
	cfg.ConnectionConfig.HealthCheckInterval = 0
	cfg.DataInitConfig.Filepath = filepath.Join(dir, "sql")
	path := filepath.Join(dir, "hicode.yaml")
	if err := database.WriteConfig(cfg, path); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// run executes the CLI with args after the program name and returns its output.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: utils.NewLogger("HICODE-TEST"), Output: output})
	argv := append([]string{"hicode", "-c", configPath}, args...)
	err := runner.App().Run(context.Background(), argv)
	return output.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := run(t, configPath, args...)
	if err != nil {
		t.Fatalf("hicode %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.apples == nil || runner.users == nil {
				t.Error("expected services to be set")
			}
		})

		t.Run("registers every command", func(t *testing.T) {
			app := NewRunner(RunnerOpts{Output: &bytes.Buffer{}}).App()
			for _, name := range []string{"config", "migrate", "seed", "health", "apple", "user"} {
				if app.Command(name) == nil {
					t.Errorf("expected command %s", name)
				}
			}
		})
	})

	t.Run("render", func(t *testing.T) {
		configPath := writeTestConfig(t)
		mustRun(t, configPath, "apple", "save", "--name", "Fuji", "--taste", "sweet", "--price", "1.99")

		out := mustRun(t, configPath, "-o", "yaml", "apple", "get", "1")
		if !strings.Contains(out, "appleName: Fuji") || strings.Contains(out, "basemodel") {
			t.Errorf("unexpected yaml output %q", out)
		}
		if _, err := run(t, configPath, "-o", "xml", "apple", "get", "1"); err == nil {
			t.Error("expected error for unsupported output format")
		}
	})
}

func TestAppleCommands(t *testing.T) {
	configPath := writeTestConfig(t)

	out := mustRun(t, configPath, "apple", "save", "--name", "Fuji", "--taste", "sweet", "--price", "1.99")
	if want := `Apple{id=1, appleName="Fuji", taste="sweet", price=1.99}` + "\n"; out != want {
		t.Errorf("save output = %q, want %q", out, want)
	}
	mustRun(t, configPath, "apple", "save", "--name", "Gala", "--taste", "mild", "--price", "1.25")
	mustRun(t, configPath, "apple", "save", "--name", "Granny Smith", "--taste", "sour", "--price", "0.75")

	t.Run("get", func(t *testing.T) {
		out := mustRun(t, configPath, "-o", "json", "apple", "get", "1")
		var apple model.Apple
		if err := json.Unmarshal([]byte(out), &apple); err != nil {
			t.Fatalf("invalid json %q: %v", out, err)
		}
		want := model.Apple{ID: 1, AppleName: "Fuji", Taste: "sweet", Price: 1.99}
		if !apple.Equal(&want) {
			t.Errorf("get = %v, want %v", &apple, &want)
		}

		if _, err := run(t, configPath, "apple", "get", "42"); !errors.Is(err, errNotFound) {
			t.Errorf("get 42 error = %v, want errNotFound", err)
		}
		if _, err := run(t, configPath, "apple", "get", "x"); err == nil {
			t.Error("expected error for non-numeric id")
		}
		if _, err := run(t, configPath, "apple", "get"); err == nil {
			t.Error("expected error without id")
		}
	})

	t.Run("overwrite by id", func(t *testing.T) {
		mustRun(t, configPath, "apple", "save", "--id", "2", "--name", "Gala", "--taste", "crisp", "--price", "1.5")
		out := mustRun(t, configPath, "apple", "get", "2")
		if !strings.Contains(out, `taste="crisp"`) {
			t.Errorf("get 2 = %q", out)
		}
		if out := mustRun(t, configPath, "apple", "count"); out != "3\n" {
			t.Errorf("count = %q, want 3", out)
		}
	})

	t.Run("find", func(t *testing.T) {
		out := mustRun(t, configPath, "apple", "find", "-f", "price<1.6", "--sort", "price desc")
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 2 || !strings.Contains(lines[0], "Gala") || !strings.Contains(lines[1], "Granny Smith") {
			t.Errorf("find output = %q", out)
		}

		out = mustRun(t, configPath, "-o", "json", "apple", "find", "-f", "taste=sweet", "-f", "taste=sour", "--any")
		var apples []model.Apple
		if err := json.Unmarshal([]byte(out), &apples); err != nil || len(apples) != 2 {
			t.Errorf("find --any = %q, %v", out, err)
		}

		if _, err := run(t, configPath, "apple", "find", "-f", "colour=red"); err == nil {
			t.Error("expected error for unknown field")
		}
		if _, err := run(t, configPath, "apple", "find", "-f", "price"); err == nil {
			t.Error("expected error for malformed filter")
		}
	})

	t.Run("list pages", func(t *testing.T) {
		out := mustRun(t, configPath, "apple", "list", "--page", "2", "--size", "2", "--sort", "id")
		if !strings.HasPrefix(out, "page 2/2, 3 total\n") || !strings.Contains(out, "Granny Smith") {
			t.Errorf("list page output = %q", out)
		}

		out = mustRun(t, configPath, "-o", "json", "apple", "list", "--page", "1", "--size", "2")
		var page types.Pagination[model.Apple]
		if err := json.Unmarshal([]byte(out), &page); err != nil || page.Total != 3 || len(page.Items) != 2 {
			t.Errorf("json page = %q, %v", out, err)
		}

		out = mustRun(t, configPath, "apple", "list")
		if n := strings.Count(out, "Apple{"); n != 3 {
			t.Errorf("list printed %d apples", n)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := run(t, configPath, "apple", "delete"); err == nil {
			t.Error("expected error without ids or filters")
		}
		if out := mustRun(t, configPath, "apple", "delete", "1"); out != "deleted apple [1]\n" {
			t.Errorf("delete output = %q", out)
		}
		if _, err := run(t, configPath, "apple", "get", "1"); !errors.Is(err, errNotFound) {
			t.Errorf("get after delete = %v", err)
		}
		if out := mustRun(t, configPath, "apple", "delete", "-f", "price<1"); out != "deleted 1 apple rows\n" {
			t.Errorf("delete by filter output = %q", out)
		}
		if out := mustRun(t, configPath, "apple", "count"); out != "1\n" {
			t.Errorf("count = %q, want 1", out)
		}
	})
}

func TestUserCommands(t *testing.T) {
	configPath := writeTestConfig(t)

	out := mustRun(t, configPath, "-o", "yaml", "user", "save",
		"--username", "alice", "--email", "alice@example.com",
		"-a", "age=42", "-a", "admin=true", "-a", "team=ops")
	for _, want := range []string{"username: alice", "age: 42", "admin: true", "team: ops"} {
		if !strings.Contains(out, want) {
			t.Errorf("save output %q does not contain %q", out, want)
		}
	}

	out = mustRun(t, configPath, "-o", "json", "user", "get", "1")
	var user model.User
	if err := json.Unmarshal([]byte(out), &user); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if user.Attributes["age"] != float64(42) || user.Attributes["admin"] != true {
		t.Errorf("attributes = %v", user.Attributes)
	}

	if _, err := run(t, configPath, "user", "save", "--username", "bob", "-a", "novalue"); err == nil {
		t.Error("expected error for malformed attribute")
	}
}

func TestParseAttributes(t *testing.T) {
	attrs, err := parseAttributes([]string{"age=42", "ratio=0.5", "name=x=y", "empty=", " admin =false"})
	if err != nil {
		t.Fatalf("parseAttributes: %v", err)
	}
	want := types.JsonObject{"age": 42, "ratio": 0.5, "name": "x=y", "empty": "", "admin": false}
	if !attrs.Equal(want) {
		t.Errorf("parseAttributes = %v, want %v", attrs, want)
	}
	if attrs, err := parseAttributes(nil); err != nil || attrs != nil {
		t.Errorf("parseAttributes(nil) = %v, %v", attrs, err)
	}
	if _, err := parseAttributes([]string{"=1"}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestAdminCommands(t *testing.T) {
	configPath := writeTestConfig(t)

	t.Run("migrate", func(t *testing.T) {
		out := mustRun(t, configPath, "migrate")
		if !strings.HasPrefix(out, "001  create_base_tables") {
			t.Errorf("migrate output = %q", out)
		}
	})

	t.Run("seed", func(t *testing.T) {
		root := filepath.Join(filepath.Dir(configPath), "sql")
		file := filepath.Join(root, "environments", "demo", "001_apples.sql")
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			t.Fatal(err)
		}
		seed := "INSERT INTO apple (apple_name, taste, price) VALUES ('Seeded', 'sweet', 1);\n"
		if err := os.WriteFile(file, []byte(seed), 0644); err != nil {
			t.Fatal(err)
		}
		if out := mustRun(t, configPath, "seed", "--env", "demo"); out != "seed completed\n" {
			t.Errorf("seed output = %q", out)
		}
		if out := mustRun(t, configPath, "apple", "count", "-f", "appleName='Seeded'"); out != "1\n" {
			t.Errorf("count seeded = %q", out)
		}
	})

	t.Run("migrate reset", func(t *testing.T) {
		mustRun(t, configPath, "migrate", "--reset")
		if out := mustRun(t, configPath, "apple", "count"); out != "0\n" {
			t.Errorf("count after reset = %q", out)
		}
	})

	t.Run("health", func(t *testing.T) {
		out := mustRun(t, configPath, "health")
		if !strings.HasPrefix(out, "UP response=") {
			t.Errorf("health output = %q", out)
		}
	})

	t.Run("config show masks password", func(t *testing.T) {
		out := mustRun(t, configPath, "-o", "json", "config", "show")
		if strings.Contains(out, "secret") || !strings.Contains(out, `"password": "******"`) {
			t.Errorf("config show output = %q", out)
		}
	})

	t.Run("config init", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "hicode.toml")
		mustRun(t, configPath, "config", "init", "--path", path)
		cfg, err := database.LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.ConnectionConfig.Type != "sqlite" {
			t.Errorf("written config type = %s", cfg.ConnectionConfig.Type)
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		if _, err := run(t, filepath.Join(t.TempDir(), "none.yaml"), "health"); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestLogDir(t *testing.T) {
	t.Cleanup(utils.DisableFileLog)
	configPath := writeTestConfig(t)
	logDir := filepath.Join(t.TempDir(), "logs")

	mustRun(t, configPath, "--log-level", "info", "--log-dir", logDir, "migrate")

	path := filepath.Join(logDir, time.Now().Format("2006-01-02"), "info.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if !strings.Contains(string(data), "Database initialization completed") {
		t.Errorf("info.log = %q", data)
	}
}
