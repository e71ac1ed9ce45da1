package main

import (
	"context"
	"fmt"
	"os"

	"github.com/torvik/statusbridge/internal/shared"
	"github.com/torvik/statusbridge/internal/store"
	"github.com/urfave/cli/v3"
)

// Setup creates a config file from the embedded template when one does not
// exist and initializes the token database it points at.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
	}

	r.logger.Info("initializing token database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if _, err := store.NewTokenStore(db); err != nil {
		return err
	}

	r.writePlainln("Setup complete. Edit %s with your provider credentials, then run:", configPath)
	r.writePlain("  statusbridge calendar\n  statusbridge playback\n")
	return nil
}
