package ibroadcast

import (
	"context"
	"encoding/json"
	"fmt"
)

// Mutations build a mode-tagged request body and surface server-reported
// failure as an [OperationError]. They never touch the in-memory snapshot;
// call [Client.Refresh] to see their effects.

// playlistMoods is the server's whitelist for autopopulated playlists.
// Anything else is sent as no mood.
var playlistMoods = map[string]struct{}{
	"Party":   {},
	"Dance":   {},
	"Workout": {},
	"Relaxed": {},
	"Chill":   {},
}

// CreateTag creates a tag and returns its ID.
func (c *Client) CreateTag(ctx context.Context, name string) (string, error) {
	raw, err := c.request(ctx, "createtag", "", map[string]any{"tagname": name})
	if err != nil {
		return "", err
	}

	var resp struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to parse createtag response: %w", err)
	}
	return resp.ID.String(), nil
}

// TagTracks applies the given tag to the specified tracks.
func (c *Client) TagTracks(ctx context.Context, tagID string, trackIDs []int64) error {
	return c.tagTracks(ctx, tagID, trackIDs, false)
}

// UntagTracks removes the given tag from the specified tracks.
func (c *Client) UntagTracks(ctx context.Context, tagID string, trackIDs []int64) error {
	return c.tagTracks(ctx, tagID, trackIDs, true)
}

func (c *Client) tagTracks(ctx context.Context, tagID string, trackIDs []int64, untag bool) error {
	_, err := c.request(ctx, "tagtracks", "", map[string]any{
		"tagid":  tagID,
		"tracks": trackIDs,
		"untag":  untag,
	})
	return err
}

// CreatePlaylist creates a playlist and returns its ID. A mood outside the
// server's whitelist is dropped.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, sharable bool, mood string) (string, error) {
	if _, ok := playlistMoods[mood]; !ok {
		mood = ""
	}

	raw, err := c.request(ctx, "createplaylist", "", map[string]any{
		"name":        name,
		"description": description,
		"make_public": sharable,
		"mood":        mood,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		PlaylistID json.Number `json:"playlist_id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to parse createplaylist response: %w", err)
	}
	return resp.PlaylistID.String(), nil
}

// DeletePlaylist deletes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	_, err := c.request(ctx, "deleteplaylist", "", map[string]any{"playlist": playlistID})
	return err
}

// AddTracks appends tracks to a playlist, keeping its existing contents.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []int64) error {
	_, err := c.request(ctx, "appendplaylist", "", map[string]any{
		"playlist": playlistID,
		"tracks":   trackIDs,
	})
	return err
}

// SetTracks replaces a playlist's contents with the specified tracks.
func (c *Client) SetTracks(ctx context.Context, playlistID string, trackIDs []int64) error {
	_, err := c.request(ctx, "updateplaylist", "", map[string]any{
		"playlist": playlistID,
		"tracks":   trackIDs,
	})
	return err
}

// Trash moves the given tracks to the trash.
func (c *Client) Trash(ctx context.Context, trackIDs []int64) error {
	_, err := c.request(ctx, "trash", "", map[string]any{"tracks": trackIDs})
	return err
}
