package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ibx/internal/formatter"
	"github.com/desertthunder/ibx/internal/ibroadcast"
	"github.com/desertthunder/ibx/internal/shared"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [ibroadcast.Playlist] to implement [list.Item].
type playlistItem struct {
	id       string
	playlist ibroadcast.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", len(i.playlist.Tracks))
	if i.playlist.SystemCreated {
		desc = fmt.Sprintf("%s • system", desc)
	}
	if i.playlist.Description != nil && *i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, *i.playlist.Description)
	}
	return desc
}

// trackItem wraps [formatter.TrackRow] to implement [list.Item].
type trackItem struct {
	track formatter.TrackRow
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return fmt.Sprintf("%s • %s", desc, shared.FormatDuration(i.track.Length))
}
