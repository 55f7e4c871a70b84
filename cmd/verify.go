package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Verify fetches the playlist with the configured credentials and reports whether it worked.
func (r *Runner) Verify(ctx context.Context, cmd *cli.Command) error {
	playlistID, err := r.playlistID(cmd)
	if err != nil {
		return err
	}

	svc, err := r.service(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("verifying credentials", "playlist", playlistID)
	name, err := svc.Verify(ctx, playlistID)
	if err != nil {
		r.writePlain("✗ Verification failed: %v\n", err)
		return fmt.Errorf("credential check failed: %w", err)
	}

	r.writePlain("✓ Credentials OK: %s (%s)\n", name, playlistID)
	return nil
}
