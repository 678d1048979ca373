package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/ibx/internal/formatter"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibraryRefresh downloads a fresh library snapshot.
func (r *Runner) LibraryRefresh(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r.logger.Info("refreshing library")
	if err := client.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	lib := client.Library()
	r.writePlain("✓ Library refreshed\n")
	r.writePlain("%s\n", formatter.RenderSummary(lib))
	return nil
}

// LibrarySummary shows collection counts for the current snapshot.
func (r *Runner) LibrarySummary(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", formatter.RenderSummary(lib))
}

// LibraryAlbums lists albums in the current snapshot.
func (r *Runner) LibraryAlbums(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", formatter.RenderAlbums(lib))
}

// LibraryArtists lists artists in the current snapshot.
func (r *Runner) LibraryArtists(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", formatter.RenderArtists(lib))
}

// LibraryPlaylists lists playlists in the current snapshot.
func (r *Runner) LibraryPlaylists(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", formatter.RenderPlaylists(lib))
}

// LibraryTracks lists the resolved tracks of one playlist.
func (r *Runner) LibraryTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	export, err := formatter.BuildPlaylistExport(lib, playlistID)
	if err != nil {
		return err
	}

	r.writePlainHeader(export.Name)
	return r.writePlain("%s\n", formatter.RenderTracks(export.Tracks))
}

// LibraryExport writes a playlist in the requested format. Without
// --output the rendered export is printed to stdout.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lib, err := r.snapshot(ctx, client)
	if err != nil {
		return err
	}

	export, err := formatter.BuildPlaylistExport(lib, playlistID)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	output := cmd.String("output")

	switch format {
	case "csv":
		if output == "" {
			data, err := formatter.ExportToCSV(export)
			if err != nil {
				return err
			}
			return r.writePlain("%s", data)
		}
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n", result.TracksFile)
		return r.writePlain("✓ Exported %s\n", result.MetadataFile)

	case "markdown", "md":
		if output == "" {
			data, err := formatter.ExportToMarkdown(export, "")
			if err != nil {
				return err
			}
			return r.writePlain("%s", data)
		}
		result, err := formatter.WriteMarkdownExport(export, output, cmd.String("image"))
		if err != nil {
			return err
		}
		for _, f := range result.Files {
			r.writePlain("✓ Exported %s\n", f)
		}
		return nil

	case "text", "txt":
		if output == "" {
			data, err := formatter.ExportToText(export)
			if err != nil {
				return err
			}
			return r.writePlain("%s", data)
		}
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported %s\n", path)

	case "json":
		data, err := formatter.ToMetadataJSON(export)
		if err != nil {
			return err
		}
		if output == "" {
			return r.writePlain("%s\n", data)
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		return r.writePlain("✓ Exported %s\n", output)

	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}
