package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ibx/internal/ibroadcast"
)

// fakeUploader records calls and scripts per-path outcomes.
type fakeUploader struct {
	mu      sync.Mutex
	calls   []string
	skip    map[string]bool
	fail    map[string]error
	force   bool
	results map[string]string
}

func (f *fakeUploader) Upload(ctx context.Context, path string, opts ibroadcast.UploadOptions) (ibroadcast.UploadResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.force = opts.Force
	f.mu.Unlock()

	if err, ok := f.fail[path]; ok {
		return ibroadcast.UploadResult{}, err
	}
	if f.skip[path] && !opts.Force {
		return ibroadcast.UploadResult{}, nil
	}
	return ibroadcast.UploadResult{Uploaded: true, TrackID: f.results[path]}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records [][3]string
}

func (f *fakeHistory) Record(path, md5, trackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, [3]string{path, md5, trackID})
	return nil
}

func writeAudioFiles(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("audio: "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return dir, paths
}

func TestScanDirectory(t *testing.T) {
	t.Run("filters by extension and sorts", func(t *testing.T) {
		dir, _ := writeAudioFiles(t, "b.mp3", "a.flac", "notes.txt", "sub/c.M4A")

		files, err := ScanDirectory(dir, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(files) != 3 {
			t.Fatalf("expected 3 audio files, got %v", files)
		}
		if filepath.Base(files[0]) != "a.flac" || filepath.Base(files[1]) != "b.mp3" {
			t.Errorf("expected sorted output, got %v", files)
		}
	})

	t.Run("custom extensions with or without dots", func(t *testing.T) {
		dir, _ := writeAudioFiles(t, "a.mp3", "b.flac")

		files, err := ScanDirectory(dir, []string{"flac"})
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 || filepath.Ext(files[0]) != ".flac" {
			t.Errorf("expected only flac files, got %v", files)
		}
	})

	t.Run("skips hidden directories", func(t *testing.T) {
		dir, _ := writeAudioFiles(t, "a.mp3", ".git/blob.mp3")

		files, err := ScanDirectory(dir, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 {
			t.Errorf("expected hidden dir to be skipped, got %v", files)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		if _, err := ScanDirectory(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestBulkUpload(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("uploads all files and records history", func(t *testing.T) {
		_, paths := writeAudioFiles(t, "a.mp3", "b.mp3", "c.mp3")

		uploader := &fakeUploader{results: map[string]string{paths[0]: "1", paths[1]: "2", paths[2]: "3"}}
		history := &fakeHistory{}
		engine := NewUploadEngine(uploader, history, logger)

		result, err := engine.BulkUpload(context.Background(), nil, paths, BulkUploadOpts{NumWorkers: 2, RateLimit: 1000})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Uploaded != 3 || result.Failed != 0 || result.Skipped != 0 {
			t.Errorf("unexpected totals: %+v", result)
		}
		if len(uploader.calls) != 3 {
			t.Errorf("expected 3 upload calls, got %d", len(uploader.calls))
		}
		if len(history.records) != 3 {
			t.Errorf("expected 3 history records, got %d", len(history.records))
		}
	})

	t.Run("separates skips and failures", func(t *testing.T) {
		_, paths := writeAudioFiles(t, "a.mp3", "b.mp3", "c.mp3")

		uploader := &fakeUploader{
			skip: map[string]bool{paths[0]: true},
			fail: map[string]error{paths[1]: fmt.Errorf("boom")},
		}
		engine := NewUploadEngine(uploader, nil, logger)

		result, err := engine.BulkUpload(context.Background(), nil, paths, BulkUploadOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Uploaded != 1 || result.Skipped != 1 || result.Failed != 1 {
			t.Errorf("unexpected totals: %+v", result)
		}
		for _, res := range result.Results {
			if res.Path == paths[1] && res.Error == nil {
				t.Error("expected failure to carry its error")
			}
		}
	})

	t.Run("force bypasses dedup", func(t *testing.T) {
		_, paths := writeAudioFiles(t, "a.mp3")

		uploader := &fakeUploader{skip: map[string]bool{paths[0]: true}}
		engine := NewUploadEngine(uploader, nil, logger)

		result, err := engine.BulkUpload(context.Background(), nil, paths, BulkUploadOpts{Force: true, RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if result.Uploaded != 1 || !uploader.force {
			t.Errorf("expected forced upload, got %+v force=%v", result, uploader.force)
		}
	})

	t.Run("emits progress updates", func(t *testing.T) {
		_, paths := writeAudioFiles(t, "a.mp3", "b.mp3")

		uploader := &fakeUploader{}
		engine := NewUploadEngine(uploader, nil, logger)

		prog := make(chan ProgressUpdate, 16)
		result, err := engine.BulkUpload(context.Background(), prog, paths, BulkUploadOpts{RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		close(prog)

		var scans, uploads int
		for update := range prog {
			switch update.Phase {
			case ScanFiles:
				scans++
			case UploadFile:
				uploads++
			}
		}
		if scans == 0 {
			t.Error("expected a scan update")
		}
		if uploads != result.TotalFiles {
			t.Errorf("expected %d upload updates, got %d", result.TotalFiles, uploads)
		}
	})

	t.Run("cancellation stops the run", func(t *testing.T) {
		_, paths := writeAudioFiles(t, "a.mp3", "b.mp3", "c.mp3")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		uploader := &fakeUploader{}
		engine := NewUploadEngine(uploader, nil, logger)

		// limiter.Wait fails fast on a cancelled context, so nothing
		// reaches the client.
		result, err := engine.BulkUpload(ctx, nil, paths, BulkUploadOpts{RateLimit: 0.001})
		if err != nil {
			t.Fatalf("expected collected errors, got %v", err)
		}
		if result.Uploaded != 0 {
			t.Errorf("expected no uploads after cancellation, got %d", result.Uploaded)
		}
		if len(uploader.calls) != 0 {
			t.Errorf("expected client to be untouched, got %d calls", len(uploader.calls))
		}
	})

	t.Run("nil client", func(t *testing.T) {
		engine := NewUploadEngine(nil, nil, logger)
		if _, err := engine.BulkUpload(context.Background(), nil, []string{"a.mp3"}, BulkUploadOpts{}); err == nil {
			t.Error("expected error for missing client")
		}
	})
}
