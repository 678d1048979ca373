package tasks

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/ibx/internal/ibroadcast"
	"golang.org/x/time/rate"
)

// defaultExtensions is the fallback filter when the server's supported
// types are unavailable.
var defaultExtensions = []string{".mp3", ".m4a", ".flac", ".ogg", ".opus", ".wav", ".aiff", ".aac"}

// BulkUploadOpts contains configuration for bulk uploads.
type BulkUploadOpts struct {
	NumWorkers int      // Concurrent workers (default: 4)
	RateLimit  float64  // Uploads started per second (default: 2)
	Force      bool     // Upload even when the checksum is already known
	Extensions []string // Accepted file extensions (default: common audio types)
}

// FileUploadResult reports the outcome for one file.
type FileUploadResult struct {
	Path     string
	TrackID  string
	Uploaded bool // file was sent to the server
	Skipped  bool // checksum already known
	Error    error
}

// BulkUploadResult aggregates a full bulk upload run.
type BulkUploadResult struct {
	TotalFiles int
	Uploaded   int
	Skipped    int
	Failed     int
	Results    []FileUploadResult
}

// ScanDirectory walks root and returns audio files matching the extension
// filter, sorted for deterministic upload order. Hidden directories are
// skipped.
func ScanDirectory(root string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	accepted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		accepted[strings.ToLower(ext)] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := accepted[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// BulkUpload uploads the given files concurrently with rate limiting and
// progress tracking.
//
// This method implements a worker pool pattern. It respects the rate limit
// across all workers, handles partial failures gracefully, and records
// completed uploads in history when one is configured.
func (e *UploadEngine) BulkUpload(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	paths []string,
	opts BulkUploadOpts,
) (*BulkUploadResult, error) {
	if e.client == nil {
		return nil, fmt.Errorf("upload client not initialized")
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	result := &BulkUploadResult{
		TotalFiles: len(paths),
		Results:    make([]FileUploadResult, 0, len(paths)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string, len(paths))
	results := make(chan FileUploadResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.uploadWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	go func() {
		e.sendProgress(prog, scanCompletedUpdate(len(paths)))
		for _, path := range paths {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			case jobs <- path:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Error != nil:
			result.Failed++
			e.sendProgress(prog, uploadFailedUpdate(completed, len(paths), res.Path, res.Error))
		case res.Skipped:
			result.Skipped++
			e.sendProgress(prog, uploadSkippedUpdate(completed, len(paths), res.Path))
		default:
			result.Uploaded++
			e.sendProgress(prog, uploadCompletedUpdate(completed, len(paths), res.Path, res.TrackID))
		}
	}

	return result, nil
}

// uploadWorker is a worker goroutine that uploads files from the jobs channel.
func (e *UploadEngine) uploadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan string,
	results chan<- FileUploadResult,
	opts BulkUploadOpts,
) {
	defer wg.Done()

	for path := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- FileUploadResult{Path: path, Error: err}
			continue
		}

		results <- e.uploadSingleFile(ctx, path, opts)
	}
}

// uploadSingleFile uploads one file and records it in history.
func (e *UploadEngine) uploadSingleFile(ctx context.Context, path string, opts BulkUploadOpts) FileUploadResult {
	result := FileUploadResult{Path: path}

	res, err := e.client.Upload(ctx, path, ibroadcast.UploadOptions{
		Label: filepath.Base(path),
		Force: opts.Force,
	})
	if err != nil {
		result.Error = err
		return result
	}

	result.Uploaded = res.Uploaded
	result.Skipped = !res.Uploaded
	result.TrackID = res.TrackID

	if result.Uploaded && e.history != nil {
		sum, err := ibroadcast.CalcMD5(path)
		if err == nil {
			// History is best effort.
			if err := e.history.Record(path, sum, res.TrackID); err != nil && e.logger != nil {
				e.logger.Debug("failed to record upload", "file", path, "error", err)
			}
		}
	}

	return result
}
