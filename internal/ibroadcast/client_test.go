package ibroadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
)

const libraryFixture = `{
	"result": true,
	"authenticated": true,
	"library": {
		"albums": {
			"101": ["Abbey Lane", [501, 502], 201, 1, 1969, 5, false],
			"map": {"name": 0, "tracks": 1, "artist_id": 2, "disc": 3, "year": 4, "rating": 5, "trashed": 6}
		},
		"artists": {
			"201": ["The Quarrymen", [501, 502], 4, false],
			"map": {"name": 0, "tracks": 1, "rating": 2, "trashed": 3}
		},
		"playlists": {
			"301": ["Morning Mix", [501], "uid-301", false, null, null, null, null, 1],
			"map": {"name": 0, "tracks": 1, "uid": 2, "system_created": 3, "public_id": 4, "type": 5, "description": 6, "artwork_id": 7, "sort": 8}
		},
		"tags": {
			"401": ["favorites", false, [501]],
			"402": ["old mixes", true, []],
			"map": {"name": 0, "archived": 1, "tracks": 2}
		},
		"tracks": {
			"501": ["Come Together", 101, 201, 259, false],
			"502": ["Something", 101, 201, 182, false],
			"map": {"title": 0, "album_id": 1, "artist_id": 2, "length": 3, "trashed": 4}
		}
	}
}`

// newTestClient wires a client and its OAuth flow against a test server.
func newTestClient(srv *httptest.Server, ts TokenSet, hooks Options) (*Client, *OAuthFlow) {
	flow := NewOAuthFlow("test_client", []string{"library"}, WithOAuthBaseURL(srv.URL))

	hooks.APIBaseURL = srv.URL
	hooks.LibraryURL = srv.URL + "/library"
	hooks.SyncURL = srv.URL + "/sync"
	hooks.UploadURL = srv.URL + "/upload"
	if hooks.Logger == nil {
		hooks.Logger = log.New(io.Discard)
	}
	if hooks.Output == nil {
		hooks.Output = io.Discard
	}

	return NewClient(flow, ts, hooks), flow
}

func TestRefresh(t *testing.T) {
	t.Run("decodes all five collections", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, libraryFixture)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		if err := c.Refresh(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		album, ok := c.Album("101")
		if !ok || album.Name != "Abbey Lane" || album.Year != 1969 {
			t.Errorf("unexpected album: %+v", album)
		}
		artist, ok := c.Artist("201")
		if !ok || artist.Name != "The Quarrymen" {
			t.Errorf("unexpected artist: %+v", artist)
		}
		playlist, ok := c.Playlist("301")
		if !ok || playlist.UID != "uid-301" || playlist.Sort == nil || *playlist.Sort != 1 {
			t.Errorf("unexpected playlist: %+v", playlist)
		}
		tag, ok := c.Tag("401")
		if !ok || tag.Name != "favorites" || tag.Archived {
			t.Errorf("unexpected tag: %+v", tag)
		}
		track, ok := c.Track("501")
		if !ok || track.Title != "Come Together" || track.AlbumID != 101 {
			t.Errorf("unexpected track: %+v", track)
		}
	})

	t.Run("invalidates the checksum set", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, libraryFixture)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		c.md5 = map[string]struct{}{"deadbeef": {}}

		if err := c.Refresh(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.md5 != nil {
			t.Error("expected checksum set to be invalidated")
		}
	})

	t.Run("keeps the previous snapshot on failure", func(t *testing.T) {
		var calls int
		mux := http.NewServeMux()
		mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				fmt.Fprint(w, libraryFixture)
				return
			}
			fmt.Fprint(w, `{"result": false, "message": "library unavailable"}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		if err := c.Refresh(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		before := c.Library()

		err := c.Refresh(context.Background())
		var oe *OperationError
		if !errors.As(err, &oe) {
			t.Fatalf("expected OperationError, got %v", err)
		}
		if c.Library() != before {
			t.Error("expected previous snapshot to survive a failed refresh")
		}
	})

	t.Run("rejects malformed field maps without partial state", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"result": true,
				"library": {
					"albums": {"1": ["A"], "map": {"name": 0, "year": 0}},
					"artists": {},
					"playlists": {},
					"tags": {},
					"tracks": {}
				}
			}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		if err := c.Refresh(context.Background()); err == nil {
			t.Fatal("expected error for duplicate field map index")
		}
		if c.Library() != nil {
			t.Error("expected no snapshot after failed decode")
		}
	})
}

func TestAuthenticatedRequest(t *testing.T) {
	t.Run("refreshes once and retries on authenticated false", func(t *testing.T) {
		var statusCalls, tokenCalls int
		mux := http.NewServeMux()
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			statusCalls++
			if r.Header.Get("Authorization") == "Bearer at-new" {
				fmt.Fprint(w, `{"result": true, "authenticated": true, "user": {"id": 42, "token": "t"}}`)
				return
			}
			fmt.Fprint(w, `{"result": true, "authenticated": false}`)
		})
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token": "at-new", "refresh_token": "rt-new", "expires_in": 3600, "token_type": "bearer"}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		var persisted []TokenSet
		c, _ := newTestClient(srv, TokenSet{AccessToken: "at-old", RefreshToken: "rt-old"}, Options{
			OnTokenRefreshed: func(ts TokenSet) { persisted = append(persisted, ts) },
		})

		status, err := c.GetStatus(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if statusCalls != 2 {
			t.Errorf("expected 2 status requests, got %d", statusCalls)
		}
		if tokenCalls != 1 {
			t.Errorf("expected 1 token refresh, got %d", tokenCalls)
		}
		if status.User == nil || status.User.ID.String() != "42" {
			t.Errorf("unexpected status: %+v", status)
		}
		if len(persisted) != 1 || persisted[0].AccessToken != "at-new" {
			t.Errorf("expected refreshed tokens handed to callback, got %+v", persisted)
		}
		if c.AccessToken() != "at-new" {
			t.Errorf("expected client to carry new token, got %s", c.AccessToken())
		}
	})

	t.Run("bounded retry surfaces ReauthExhausted", func(t *testing.T) {
		var statusCalls, tokenCalls int
		mux := http.NewServeMux()
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			statusCalls++
			fmt.Fprint(w, `{"result": true, "authenticated": false}`)
		})
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token": "at-new", "expires_in": 3600, "token_type": "bearer"}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at-old", RefreshToken: "rt-old"}, Options{})

		_, err := c.GetStatus(context.Background())
		if !errors.Is(err, ErrReauthExhausted) {
			t.Fatalf("expected ErrReauthExhausted, got %v", err)
		}
		if statusCalls != 2 {
			t.Errorf("expected exactly 2 status requests, got %d", statusCalls)
		}
		if tokenCalls != 1 {
			t.Errorf("expected exactly 1 refresh attempt, got %d", tokenCalls)
		}
	})

	t.Run("no refresh token means no retry", func(t *testing.T) {
		var statusCalls int
		mux := http.NewServeMux()
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			statusCalls++
			fmt.Fprint(w, `{"result": true, "authenticated": false}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at-old"}, Options{})

		_, err := c.GetStatus(context.Background())
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if statusCalls != 1 {
			t.Errorf("expected a single request, got %d", statusCalls)
		}
	})

	t.Run("non-2xx is a server error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})

		_, err := c.GetStatus(context.Background())
		var se *ServerError
		if !errors.As(err, &se) {
			t.Fatalf("expected ServerError, got %v", err)
		}
		if se.Status != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", se.Status)
		}
	})

	t.Run("malformed envelope is a server error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})

		_, err := c.GetStatus(context.Background())
		var se *ServerError
		if !errors.As(err, &se) {
			t.Fatalf("expected ServerError, got %v", err)
		}
	})
}

func TestMutations(t *testing.T) {
	t.Run("createtag returns the new ID", func(t *testing.T) {
		var body map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("/createtag", func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&body)
			fmt.Fprint(w, `{"result": true, "id": 555}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		id, err := c.CreateTag(context.Background(), "roadtrip")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "555" {
			t.Errorf("expected id 555, got %s", id)
		}
		if body["mode"] != "createtag" || body["tagname"] != "roadtrip" {
			t.Errorf("unexpected request body: %v", body)
		}
	})

	t.Run("tagtracks carries the untag flag", func(t *testing.T) {
		var bodies []map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("/tagtracks", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			bodies = append(bodies, body)
			fmt.Fprint(w, `{"result": true}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		if err := c.TagTracks(context.Background(), "401", []int64{501}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.UntagTracks(context.Background(), "401", []int64{501}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(bodies) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(bodies))
		}
		if bodies[0]["untag"] != false || bodies[1]["untag"] != true {
			t.Errorf("unexpected untag flags: %v, %v", bodies[0]["untag"], bodies[1]["untag"])
		}
	})

	t.Run("createplaylist drops unknown moods", func(t *testing.T) {
		var body map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("/createplaylist", func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&body)
			fmt.Fprint(w, `{"result": true, "playlist_id": 777}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		id, err := c.CreatePlaylist(context.Background(), "Focus", "deep work", false, "Zen")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "777" {
			t.Errorf("expected id 777, got %s", id)
		}
		if body["mood"] != "" {
			t.Errorf("expected unknown mood to be dropped, got %v", body["mood"])
		}

		if _, err := c.CreatePlaylist(context.Background(), "Party Mix", "", true, "Party"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if body["mood"] != "Party" {
			t.Errorf("expected whitelisted mood to pass through, got %v", body["mood"])
		}
	})

	t.Run("server-reported failure is an operation error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/trash", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result": false, "message": "track not found"}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
		err := c.Trash(context.Background(), []int64{999})

		var oe *OperationError
		if !errors.As(err, &oe) {
			t.Fatalf("expected OperationError, got %v", err)
		}
		if oe.Mode != "trash" || oe.Message != "track not found" {
			t.Errorf("unexpected error detail: %+v", oe)
		}
	})
}

func TestTagMembership(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, libraryFixture)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(srv, TokenSet{AccessToken: "at0"}, Options{})
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("istagged matches tag track lists", func(t *testing.T) {
		if !c.IsTagged("401", 501) {
			t.Error("expected track 501 to carry tag 401")
		}
		if c.IsTagged("401", 502) {
			t.Error("expected track 502 to be untagged")
		}
		if c.IsTagged("999", 501) {
			t.Error("expected unknown tag to report false")
		}
	})

	t.Run("gettags returns exactly the matching tag IDs", func(t *testing.T) {
		tags := c.GetTags(501)
		if len(tags) != 1 || tags[0] != "401" {
			t.Errorf("expected [401], got %v", tags)
		}
		if tags := c.GetTags(502); len(tags) != 0 {
			t.Errorf("expected no tags, got %v", tags)
		}
	})
}

func TestPasswordLogin(t *testing.T) {
	t.Run("logs in and refreshes the library", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/s/JSON/status", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["email_address"] != "user@example.com" || body["password"] != "hunter2" {
				t.Errorf("unexpected login body: %v", body)
			}
			fmt.Fprint(w, `{"result": true, "user": {"id": 42, "token": "11111111-2222-3333-4444-555555555555"}}`)
		})
		mux.HandleFunc("/library", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, libraryFixture)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, err := NewPasswordClient(context.Background(), "user@example.com", "hunter2", Options{
			APIBaseURL: srv.URL,
			LibraryURL: srv.URL + "/library",
			Logger:     log.New(io.Discard),
			Output:     io.Discard,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if c.userID != "42" {
			t.Errorf("expected user id 42, got %s", c.userID)
		}
		if c.Library() == nil {
			t.Error("expected implicit snapshot refresh after login")
		}
	})

	t.Run("missing user record means invalid credentials", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/s/JSON/status", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result": true}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		_, err := NewPasswordClient(context.Background(), "user@example.com", "wrong", Options{
			APIBaseURL: srv.URL,
			Logger:     log.New(io.Discard),
			Output:     io.Discard,
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}
