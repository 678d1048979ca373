package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Trash moves tracks to the trash.
func (r *Runner) Trash(ctx context.Context, cmd *cli.Command) error {
	tracks, err := parseTrackIDs(cmd.StringSlice("track"))
	if err != nil {
		return err
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Trash(ctx, tracks); err != nil {
		return fmt.Errorf("failed to trash tracks: %w", err)
	}

	return r.writePlain("✓ Moved %d tracks to the trash\n", len(tracks))
}
