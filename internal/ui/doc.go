// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// Two models are provided:
//
// [DeviceLoginModel] renders the device authorization screen: the
// verification URL and user code, with a spinner while the background
// poller waits for approval.
//
// [Model] is a library browser with a multi-view workflow:
//  1. [PlaylistListView] : Browse and select playlists from the snapshot
//  2. [TrackListView] : View a playlist's resolved tracks
//
// Both implement bubbletea/Elm's standard Init/Update/View pattern.
// Long-running work stays outside the UI; models receive completion and
// progress through channels owned by the command layer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
