package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torvik/statusbridge/internal/shared"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: output})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config")
			}
			if runner.logger == nil {
				t.Error("expected default logger")
			}
			if runner.output != os.Stdout {
				t.Error("expected stdout output")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for _, c := range commands {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "calendar", "playback"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		resolve := func(t *testing.T, runner *Runner, configPath string) *shared.Config {
			t.Helper()
			var got *shared.Config
			cmd := &cli.Command{
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Value: configPath},
					&cli.BoolFlag{Name: "verbose"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					got = runner.loadConfig(c)
					return nil
				},
			}
			if err := cmd.Run(context.Background(), []string{"x"}); err != nil {
				t.Fatalf("command failed: %v", err)
			}
			return got
		}

		t.Run("missing file falls back to defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})

			config := resolve(t, runner, filepath.Join(t.TempDir(), "nope.toml"))
			if config != runner.config {
				t.Error("expected fallback to the runner's default config")
			}
		})

		t.Run("reads file when present", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			contents := "[server]\nhost = \"example.test\"\ncalendar_port = 7001\nplayback_port = 7002\n"
			if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})

			config := resolve(t, runner, path)
			if config.Server.Host != "example.test" {
				t.Errorf("expected host from file, got %q", config.Server.Host)
			}
		})
	})

	t.Run("Setup", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: output})

		cmd := setupCommand(runner)
		// Run from the temp dir so the relative database path stays contained.
		wd, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("failed to chdir: %v", err)
		}
		defer os.Chdir(wd)

		if err := cmd.Run(context.Background(), []string{"setup", "--config", configPath}); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Errorf("expected config file to be created: %v", err)
		}
		if !strings.Contains(output.String(), "Setup complete") {
			t.Errorf("expected completion message, got %q", output.String())
		}
	})
}
