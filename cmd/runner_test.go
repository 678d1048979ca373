package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ibx/internal/ibroadcast"
	"github.com/desertthunder/ibx/internal/repositories"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/urfave/cli/v3"
)

// failingWriter always fails, for exercising write error paths.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write failed")
}

const librarySummaryBody = `{
	"result": true,
	"authenticated": true,
	"message": "ok",
	"library": {
		"albums": {"501": {"name": "Abbey Lane", "tracks": [10], "artist_id": 7}},
		"artists": {"7": {"name": "The Quarrymen", "tracks": [10]}},
		"playlists": {"244": {"name": "Morning Mix", "tracks": [10], "uid": "uid-244"}},
		"tags": {"90": {"name": "favorites", "tracks": [10]}},
		"tracks": {"10": {"title": "Come Together", "length": 259, "album_id": 501, "artist_id": 7}}
	}
}`

// newTestRunner wires a runner against a stub API server, an in-memory
// database and a buffer for output.
func newTestRunner(t *testing.T, handler http.HandlerFunc) (*Runner, *bytes.Buffer) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	logger := log.New(io.Discard)
	flow := ibroadcast.NewOAuthFlow("test-client", nil, ibroadcast.WithOAuthBaseURL(srv.URL))
	client := ibroadcast.NewClient(flow, ibroadcast.TokenSet{AccessToken: "at", RefreshToken: "rt"}, ibroadcast.Options{
		HTTPClient: srv.Client(),
		Logger:     logger,
		Output:     io.Discard,
		APIBaseURL: srv.URL,
		LibraryURL: srv.URL + "/library",
		SyncURL:    srv.URL + "/sync",
		UploadURL:  srv.URL + "/upload",
	})

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: shared.DefaultConfig(),
		Logger: logger,
		Output: output,
		Client: client,
		DB:     db,
	})
	return runner, output
}

func runCommand(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "ibx", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"ibx"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.config.Endpoints.API == "" {
				t.Error("expected default endpoints to be populated")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: failingWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: failingWriter{}})

			if err := runner.writePlain("test"); err == nil {
				t.Fatal("expected error from failing writer")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) != 8 {
			t.Errorf("expected 8 top-level commands, got %d", len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("parseTrackIDs", func(t *testing.T) {
		t.Run("accepts repeated and comma-separated values", func(t *testing.T) {
			ids, err := parseTrackIDs([]string{"1", "2,3", " 4 "})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(ids) != 4 || ids[0] != 1 || ids[3] != 4 {
				t.Errorf("unexpected ids: %v", ids)
			}
		})

		t.Run("rejects non-numeric values", func(t *testing.T) {
			if _, err := parseTrackIDs([]string{"abc"}); err == nil {
				t.Error("expected error for non-numeric ID")
			}
		})

		t.Run("rejects empty input", func(t *testing.T) {
			if _, err := parseTrackIDs(nil); err == nil {
				t.Error("expected error for empty input")
			}
			if _, err := parseTrackIDs([]string{" , "}); err == nil {
				t.Error("expected error for blank input")
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("library summary prints collection counts", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, librarySummaryBody)
		})

		if err := runCommand(t, runner, "library", "summary"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Tracks") || !strings.Contains(result, "Playlists") {
			t.Errorf("expected summary table, got %s", result)
		}
	})

	t.Run("library tracks resolves a playlist", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, librarySummaryBody)
		})

		if err := runCommand(t, runner, "library", "tracks", "244"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Morning Mix") {
			t.Errorf("expected playlist header, got %s", result)
		}
		if !strings.Contains(result, "Come Together") {
			t.Errorf("expected resolved track, got %s", result)
		}
	})

	t.Run("tag create reports the new ID", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["mode"] != "createtag" {
				t.Errorf("expected createtag mode, got %v", body["mode"])
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result": true, "authenticated": true, "id": 555}`)
		})

		if err := runCommand(t, runner, "tag", "create", "favorites"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "555") {
			t.Errorf("expected tag ID in output, got %s", output.String())
		}
	})

	t.Run("trash rejects malformed track IDs", func(t *testing.T) {
		runner, _ := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		err := runCommand(t, runner, "trash", "--track", "not-a-number")
		if err == nil {
			t.Fatal("expected error for malformed ID")
		}
	})

	t.Run("auth profiles on an empty database", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {})

		if err := runCommand(t, runner, "auth", "profiles"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No saved profiles") {
			t.Errorf("expected empty-state message, got %s", output.String())
		}
	})

	t.Run("auth profiles lists saved profiles", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {})

		db, _, err := runner.openDatabase()
		if err != nil {
			t.Fatal(err)
		}
		repo := repositories.NewTokenRepository(db)
		if err := repo.Save("work", ibroadcast.TokenSet{AccessToken: "at", RefreshToken: "rt"}); err != nil {
			t.Fatal(err)
		}

		if err := runCommand(t, runner, "auth", "profiles"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "work") {
			t.Errorf("expected profile name, got %s", output.String())
		}
	})

	t.Run("upload history empty state", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {})

		if err := runCommand(t, runner, "upload", "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No uploads recorded") {
			t.Errorf("expected empty-state message, got %s", output.String())
		}
	})

	t.Run("upload history lists recorded uploads", func(t *testing.T) {
		runner, output := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {})

		db, _, err := runner.openDatabase()
		if err != nil {
			t.Fatal(err)
		}
		repo := repositories.NewUploadRepository(db)
		if err := repo.Record("/music/song.mp3", "abc123", "42"); err != nil {
			t.Fatal(err)
		}

		if err := runCommand(t, runner, "upload", "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "/music/song.mp3") || !strings.Contains(result, "track 42") {
			t.Errorf("expected recorded upload, got %s", result)
		}
	})
}
