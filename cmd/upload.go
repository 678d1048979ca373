package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/desertthunder/ibx/internal/ibroadcast"
	"github.com/desertthunder/ibx/internal/repositories"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/desertthunder/ibx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// UploadFile uploads a single audio file, skipping it when the server
// already knows its checksum.
func (r *Runner) UploadFile(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: file path is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := client.Upload(ctx, path, ibroadcast.UploadOptions{
		Label: filepath.Base(path),
		Force: cmd.Bool("force"),
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if !result.Uploaded {
		return r.writePlain("- %s already uploaded\n", path)
	}

	r.recordUpload(path, result.TrackID)

	if result.TrackID != "" {
		return r.writePlain("✓ %s uploaded (track %s)\n", path, result.TrackID)
	}
	return r.writePlain("✓ %s uploaded\n", path)
}

// UploadDir scans a directory and uploads every audio file in it through
// the worker pool.
func (r *Runner) UploadDir(ctx context.Context, cmd *cli.Command) error {
	root := cmd.StringArg("path")
	if root == "" {
		return fmt.Errorf("%w: directory path is required", shared.ErrMissingArgument)
	}

	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := tasks.ScanDirectory(root, cmd.StringSlice("ext"))
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(files) == 0 {
		return r.writePlain("No audio files found under %s\n", root)
	}

	db, dbCleanup, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer dbCleanup()

	opts := tasks.BulkUploadOpts{
		NumWorkers: r.config.Upload.Workers,
		RateLimit:  float64(r.config.Upload.RatePerSec),
		Force:      cmd.Bool("force"),
	}
	if cmd.Int("workers") > 0 {
		opts.NumWorkers = int(cmd.Int("workers"))
	}
	if cmd.Float("rate") > 0 {
		opts.RateLimit = cmd.Float("rate")
	}

	engine := tasks.NewUploadEngine(client, repositories.NewUploadRepository(db), r.logger)

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.BulkUpload(ctx, progress, files, opts)
	close(progress)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("bulk upload failed: %w", err)
	}

	r.writePlainHeader("Upload complete")
	r.writePlain("Total:    %d\n", result.TotalFiles)
	r.writePlain("Uploaded: %d\n", result.Uploaded)
	r.writePlain("Skipped:  %d\n", result.Skipped)
	r.writePlain("Failed:   %d\n", result.Failed)

	if result.Failed > 0 {
		r.writePlainln("Failures:")
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("✗ %s: %v\n", res.Path, res.Error)
			}
		}
	}
	return nil
}

// UploadHistory shows locally recorded uploads, newest first.
func (r *Runner) UploadHistory(ctx context.Context, cmd *cli.Command) error {
	db, cleanup, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := repositories.NewUploadRepository(db).List()
	if err != nil {
		return fmt.Errorf("failed to list uploads: %w", err)
	}

	if len(records) == 0 {
		return r.writePlain("No uploads recorded yet.\n")
	}

	r.writePlainHeader("Upload history")
	for _, rec := range records {
		line := fmt.Sprintf("%s  %s", rec.UploadedAt.Format("2006-01-02 15:04"), rec.Path)
		if rec.TrackID != "" {
			line = fmt.Sprintf("%s (track %s)", line, rec.TrackID)
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// recordUpload stores an upload in local history. Failures are logged,
// not returned; history is best effort.
func (r *Runner) recordUpload(path, trackID string) {
	db, cleanup, err := r.openDatabase()
	if err != nil {
		r.logger.Debug("skipping upload history", "error", err)
		return
	}
	defer cleanup()

	md5, err := ibroadcast.CalcMD5(path)
	if err != nil {
		r.logger.Debug("failed to hash upload for history", "error", err)
		return
	}
	if err := repositories.NewUploadRepository(db).Record(path, md5, trackID); err != nil {
		r.logger.Debug("failed to record upload", "error", err)
	}
}
