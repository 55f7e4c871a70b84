package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/chartx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the embedded example config to --config.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	r.logger.Info("creating config file from template", "file", path)
	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	r.logger.Info("config file created", "file", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify client_id/client_secret, or %s and %s in .env\n", shared.EnvClientID, shared.EnvClientSecret)
	r.writePlain("2. Run 'chartx verify' to check them\n")
	r.writePlain("3. Run 'chartx collect --start 2024-01-01T00 --end 2024-01-01T23' to poll the chart\n")

	return nil
}
