package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ibx/internal/formatter"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/urfave/cli/v3"
)

// TagCreate creates a tag.
func (r *Runner) TagCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: tag name is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := client.CreateTag(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}

	return r.writePlain("✓ Created tag %q (id %s)\n", name, id)
}

// TagApply applies a tag to tracks.
func (r *Runner) TagApply(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: tag ID is required", shared.ErrMissingArgument)
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

	if err := client.TagTracks(ctx, id, tracks); err != nil {
		return fmt.Errorf("failed to tag tracks: %w", err)
	}

	return r.writePlain("✓ Tagged %d tracks with %s\n", len(tracks), id)
}

// TagRemove removes a tag from tracks.
func (r *Runner) TagRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: tag ID is required", shared.ErrMissingArgument)
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

	if err := client.UntagTracks(ctx, id, tracks); err != nil {
		return fmt.Errorf("failed to untag tracks: %w", err)
	}

	return r.writePlain("✓ Removed tag %s from %d tracks\n", id, len(tracks))
}

// TagList lists the tags in the current snapshot.
func (r *Runner) TagList(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", formatter.RenderTags(lib))
}
