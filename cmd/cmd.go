// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func profileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "Named token profile to use",
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in and save tokens (device code by default)",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.BoolFlag{
						Name:  "browser",
						Usage: "Use the authorization-code flow with a local callback server",
					},
					&cli.BoolFlag{
						Name:  "password",
						Usage: "Use the legacy username/password login",
					},
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Account email address (password login only)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Check the saved session against the account status endpoint",
				Flags: []cli.Flag{
					profileFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Force a token refresh and save the new tokens",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Revoke the refresh token and delete saved tokens",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.AuthLogout,
			},
			{
				Name:   "profiles",
				Usage:  "List saved token profiles",
				Action: r.AuthProfiles,
			},
		},
	}
}

// libraryCommand reads the library snapshot.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse and export the music library",
		Commands: []*cli.Command{
			{
				Name:   "refresh",
				Usage:  "Download a fresh library snapshot",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.LibraryRefresh,
			},
			{
				Name:   "summary",
				Usage:  "Show collection counts",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.LibrarySummary,
			},
			{
				Name:   "albums",
				Usage:  "List albums",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.LibraryAlbums,
			},
			{
				Name:   "artists",
				Usage:  "List artists",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.LibraryArtists,
			},
			{
				Name:   "playlists",
				Usage:  "List playlists",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.LibraryPlaylists,
			},
			{
				Name:   "tags",
				Usage:  "List tags",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.TagList,
			},
			{
				Name:  "tracks",
				Usage: "List a playlist's tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag()},
				Action: r.LibraryTracks,
			},
			{
				Name:  "export",
				Usage: "Export a playlist to csv, markdown, text or json",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text, json)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file or directory (prints to stdout when empty)",
					},
					&cli.StringFlag{
						Name:  "image",
						Usage: "Artwork URL to embed in markdown exports",
					},
				},
				Action: r.LibraryExport,
			},
		},
	}
}

// uploadCommand handles single and bulk track uploads.
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "upload",
		Aliases: []string{"up"},
		Usage:   "Upload audio files",
		Commands: []*cli.Command{
			{
				Name:  "file",
				Usage: "Upload a single audio file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.BoolFlag{Name: "force", Usage: "Upload even when the checksum is already known"},
				},
				Action: r.UploadFile,
			},
			{
				Name:  "dir",
				Usage: "Scan a directory and upload every audio file in it",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.IntFlag{Name: "workers", Usage: "Number of concurrent uploads"},
					&cli.FloatFlag{Name: "rate", Usage: "Maximum uploads per second"},
					&cli.BoolFlag{Name: "force", Usage: "Upload even when the checksum is already known"},
					&cli.StringSliceFlag{Name: "ext", Usage: "File extensions to include (defaults to common audio types)"},
				},
				Action: r.UploadDir,
			},
			{
				Name:   "history",
				Usage:  "Show locally recorded uploads",
				Action: r.UploadHistory,
			},
		},
	}
}

// playlistCommand mutates playlists.
func playlistCommand(r *Runner) *cli.Command {
	trackFlag := &cli.StringSliceFlag{
		Name:    "track",
		Aliases: []string{"t"},
		Usage:   "Track ID (repeatable, comma-separated lists accepted)",
	}

	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Create and edit playlists",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
					&cli.BoolFlag{Name: "sharable", Usage: "Make the playlist sharable"},
					&cli.StringFlag{Name: "mood", Usage: "Seed mood (Party, Dance, Workout, Relaxed, Chill)"},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:  "delete",
				Usage: "Delete a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag()},
				Action: r.PlaylistDelete,
			},
			{
				Name:  "add",
				Usage: "Append tracks to a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag(), trackFlag},
				Action: r.PlaylistAdd,
			},
			{
				Name:  "set",
				Usage: "Replace a playlist's tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag(), trackFlag},
				Action: r.PlaylistSet,
			},
		},
	}
}

// tagCommand manages tags and tag membership.
func tagCommand(r *Runner) *cli.Command {
	trackFlag := &cli.StringSliceFlag{
		Name:    "track",
		Aliases: []string{"t"},
		Usage:   "Track ID (repeatable, comma-separated lists accepted)",
	}

	return &cli.Command{
		Name:  "tag",
		Usage: "Create tags and tag tracks",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a tag",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  []cli.Flag{profileFlag()},
				Action: r.TagCreate,
			},
			{
				Name:  "apply",
				Usage: "Apply a tag to tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag(), trackFlag},
				Action: r.TagApply,
			},
			{
				Name:  "remove",
				Usage: "Remove a tag from tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{profileFlag(), trackFlag},
				Action: r.TagRemove,
			},
			{
				Name:   "list",
				Usage:  "List tags",
				Flags:  []cli.Flag{profileFlag()},
				Action: r.TagList,
			},
		},
	}
}

// trashCommand moves tracks to the trash.
func trashCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "trash",
		Usage: "Move tracks to the trash",
		Flags: []cli.Flag{
			profileFlag(),
			&cli.StringSliceFlag{
				Name:    "track",
				Aliases: []string{"t"},
				Usage:   "Track ID (repeatable, comma-separated lists accepted)",
			},
		},
		Action: r.Trash,
	}
}

// tuiCommand returns the top-level TUI command for interactive library browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "browse"},
		Usage:   "Launch interactive library browser",
		Flags:   []cli.Flag{profileFlag()},
		Action:  r.TUI,
	}
}
