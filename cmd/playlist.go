package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ibx/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistCreate creates a playlist, optionally seeded by mood.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := client.CreatePlaylist(ctx, name, cmd.String("description"), cmd.Bool("sharable"), cmd.String("mood"))
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}

	return r.writePlain("✓ Created playlist %q (id %s)\n", name, id)
}

// PlaylistDelete deletes a playlist.
func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.DeletePlaylist(ctx, id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// PlaylistAdd appends tracks to a playlist.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	tracks, err := parseTrackIDs(cmd.StringSlice("track"))
	if err != nil {
		return err
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.AddTracks(ctx, id, tracks); err != nil {
		return fmt.Errorf("failed to add tracks: %w", err)
	}

	return r.writePlain("✓ Added %d tracks to playlist %s\n", len(tracks), id)
}

// PlaylistSet replaces a playlist's tracks with the given list.
func (r *Runner) PlaylistSet(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	tracks, err := parseTrackIDs(cmd.StringSlice("track"))
	if err != nil {
		return err
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.SetTracks(ctx, id, tracks); err != nil {
		return fmt.Errorf("failed to set tracks: %w", err)
	}

	return r.writePlain("✓ Playlist %s now has %d tracks\n", id, len(tracks))
}
