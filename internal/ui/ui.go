package ui

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ibx/internal/formatter"
	"github.com/desertthunder/ibx/internal/ibroadcast"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
)

// LibraryService is the slice of the streaming client the browser needs.
// Satisfied by [ibroadcast.Client].
type LibraryService interface {
	Refresh(ctx context.Context) error
	Library() *ibroadcast.Library
}

// Model represents the library browser state.
type Model struct {
	ctx          context.Context
	view         ViewState
	service      LibraryService
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	selected     *formatter.PlaylistExport
	refreshing   bool
	err          error
	help         help.Model
	keys         keyMap
}

type libraryRefreshedMsg struct {
	err error
}

// NewModel creates a new browser model with the provided dependencies.
func NewModel(ctx context.Context, service LibraryService) *Model {
	return &Model{
		ctx:     ctx,
		view:    PlaylistListView,
		service: service,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init fetches a snapshot when none is loaded yet.
func (m *Model) Init() tea.Cmd {
	if m.service.Library() == nil {
		return m.refresh()
	}
	m.rebuildPlaylistList()
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		}

	case libraryRefreshedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.rebuildPlaylistList()
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if m.refreshing {
		return styles.help.Render("Refreshing library...")
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	default:
		return ""
	}
}

// Err returns the fatal error after the model has quit.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.refresh()
	case "enter":
		selected := m.playlistList.SelectedItem()
		if selected != nil {
			if pl, ok := selected.(playlistItem); ok {
				return m, m.openPlaylist(pl.id)
			}
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = PlaylistListView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) refresh() tea.Cmd {
	m.refreshing = true
	return func() tea.Msg {
		return libraryRefreshedMsg{err: m.service.Refresh(m.ctx)}
	}
}

// openPlaylist resolves the playlist against the snapshot and switches views.
func (m *Model) openPlaylist(id string) tea.Cmd {
	export, err := formatter.BuildPlaylistExport(m.service.Library(), id)
	if err != nil {
		m.err = err
		return tea.Quit
	}

	m.selected = export
	items := make([]list.Item, len(export.Tracks))
	for i, track := range export.Tracks {
		items[i] = trackItem{track: track}
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", export.Name)
	m.view = TrackListView
	return nil
}

// rebuildPlaylistList rebuilds the playlist list from the current snapshot,
// sorted by name.
func (m *Model) rebuildPlaylistList() {
	lib := m.service.Library()
	if lib == nil {
		return
	}

	ids := make([]string, 0, len(lib.Playlists))
	for id := range lib.Playlists {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return lib.Playlists[ids[i]].Name < lib.Playlists[ids[j]].Name
	})

	items := make([]list.Item, len(ids))
	for i, id := range ids {
		items[i] = playlistItem{id: id, playlist: lib.Playlists[id]}
	}
	m.playlistList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
	m.playlistList.Title = "Playlists"
}

func (m *Model) renderPlaylistList() string {
	refreshKey := key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
	helpKeys := []key.Binding{m.keys.enter, refreshKey, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}
