// package formatter provides functions to export library data to various formats (CSV, Markdown, plain text) and terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/desertthunder/ibx/internal/ibroadcast"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TrackRow is a denormalized track view with album and artist names resolved
// from the library snapshot.
type TrackRow struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Length int    `json:"length"`
	Year   int    `json:"year"`
}

// PlaylistExport bundles a playlist with its resolved tracks in play order.
type PlaylistExport struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Public      bool       `json:"public"`
	Tracks      []TrackRow `json:"tracks"`
}

// resolveTrack builds a TrackRow from the snapshot, leaving names empty when
// the cross-referenced records are missing.
func resolveTrack(lib *ibroadcast.Library, id int64) (TrackRow, bool) {
	track, ok := lib.Tracks[strconv.FormatInt(id, 10)]
	if !ok {
		return TrackRow{}, false
	}

	row := TrackRow{
		ID:     id,
		Title:  track.Title,
		Length: track.Length,
		Year:   track.Year,
	}
	if artist, ok := lib.Artists[strconv.FormatInt(track.ArtistID, 10)]; ok {
		row.Artist = artist.Name
	}
	if album, ok := lib.Albums[strconv.FormatInt(track.AlbumID, 10)]; ok {
		row.Album = album.Name
	}
	return row, true
}

// BuildPlaylistExport resolves a playlist's track IDs against the snapshot.
// Tracks missing from the snapshot are dropped.
func BuildPlaylistExport(lib *ibroadcast.Library, playlistID string) (*PlaylistExport, error) {
	if lib == nil {
		return nil, fmt.Errorf("no library snapshot")
	}

	playlist, ok := lib.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	export := &PlaylistExport{
		ID:     playlistID,
		Name:   playlist.Name,
		Public: playlist.PublicID != nil,
	}
	if playlist.Description != nil {
		export.Description = *playlist.Description
	}

	for _, trackID := range playlist.Tracks {
		if row, ok := resolveTrack(lib, trackID); ok {
			export.Tracks = append(export.Tracks, row)
		}
	}

	return export, nil
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: ID, Title, Artist, Album, Length, Year
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Length", "Year"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			strconv.FormatInt(track.ID, 10),
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Length),
			strconv.Itoa(track.Year),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown format with optional cover image
func ExportToMarkdown(export *PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Name))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	if export.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", export.Description))
	}

	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(export.Tracks)))
	visibility := "private"
	if export.Public {
		visibility = "public"
	}
	buf.WriteString(fmt.Sprintf("**Visibility**: %s\n\n", visibility))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		duration := shared.FormatDuration(track.Length)
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, track.Artist, track.Title, albumPart, duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", export.Name))
	if export.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", export.Description))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(export.Tracks)))

	for i, track := range export.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.Artist, track.Title))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(export *PlaylistExport) ([]byte, error) {
	meta := struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
		TrackCount  int    `json:"track_count"`
	}{export.ID, export.Name, export.Description, export.Public, len(export.Tracks)}

	return json.MarshalIndent(meta, "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *PlaylistExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a playlist to Markdown format in a dedicated directory.
//
// Directory name defaults to the playlist ID.
// The imageURL parameter is optional - if provided, attempts to download the cover image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(export *PlaylistExport, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := fmt.Sprintf("%s/%s", outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {playlist.ID}_tracks.txt as the filename.
func WriteTextExport(export *PlaylistExport, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_tracks.txt", export.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

// renderTable renders headers and rows as a rounded terminal table.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	right := make(map[int]bool, len(rightAligned))
	for _, col := range rightAligned {
		right[col] = true
	}
	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if right[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// RenderTracks renders resolved tracks as a terminal table.
func RenderTracks(tracks []TrackRow) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.Artist,
			t.Album,
			shared.FormatDuration(t.Length),
		})
	}
	return renderTable([]string{"ID", "Title", "Artist", "Album", "Length"}, rows, 0, 4)
}

// RenderPlaylists renders the snapshot's playlists sorted by name.
func RenderPlaylists(lib *ibroadcast.Library) string {
	ids := make([]string, 0, len(lib.Playlists))
	for id := range lib.Playlists {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return lib.Playlists[ids[i]].Name < lib.Playlists[ids[j]].Name
	})

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		pl := lib.Playlists[id]
		kind := "user"
		if pl.SystemCreated {
			kind = "system"
		}
		rows = append(rows, []string{id, pl.Name, kind, strconv.Itoa(len(pl.Tracks))})
	}
	return renderTable([]string{"ID", "Name", "Type", "Tracks"}, rows, 3)
}

// RenderAlbums renders the snapshot's albums sorted by name, with artist
// names resolved.
func RenderAlbums(lib *ibroadcast.Library) string {
	ids := make([]string, 0, len(lib.Albums))
	for id := range lib.Albums {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return lib.Albums[ids[i]].Name < lib.Albums[ids[j]].Name
	})

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		album := lib.Albums[id]
		artist := ""
		if a, ok := lib.Artists[strconv.FormatInt(album.ArtistID, 10)]; ok {
			artist = a.Name
		}
		year := ""
		if album.Year > 0 {
			year = strconv.Itoa(album.Year)
		}
		rows = append(rows, []string{id, album.Name, artist, year, strconv.Itoa(len(album.Tracks))})
	}
	return renderTable([]string{"ID", "Name", "Artist", "Year", "Tracks"}, rows, 3, 4)
}

// RenderArtists renders the snapshot's artists sorted by name.
func RenderArtists(lib *ibroadcast.Library) string {
	ids := make([]string, 0, len(lib.Artists))
	for id := range lib.Artists {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return lib.Artists[ids[i]].Name < lib.Artists[ids[j]].Name
	})

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		artist := lib.Artists[id]
		rows = append(rows, []string{id, artist.Name, strconv.Itoa(len(artist.Tracks))})
	}
	return renderTable([]string{"ID", "Name", "Tracks"}, rows, 2)
}

// RenderTags renders the snapshot's tags sorted by name.
func RenderTags(lib *ibroadcast.Library) string {
	ids := make([]string, 0, len(lib.Tags))
	for id := range lib.Tags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return lib.Tags[ids[i]].Name < lib.Tags[ids[j]].Name
	})

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		tag := lib.Tags[id]
		archived := ""
		if tag.Archived {
			archived = "yes"
		}
		rows = append(rows, []string{id, tag.Name, archived, strconv.Itoa(len(tag.Tracks))})
	}
	return renderTable([]string{"ID", "Name", "Archived", "Tracks"}, rows, 3)
}

// RenderSummary renders collection counts for the snapshot.
func RenderSummary(lib *ibroadcast.Library) string {
	rows := [][]string{
		{"Albums", strconv.Itoa(len(lib.Albums))},
		{"Artists", strconv.Itoa(len(lib.Artists))},
		{"Playlists", strconv.Itoa(len(lib.Playlists))},
		{"Tags", strconv.Itoa(len(lib.Tags))},
		{"Tracks", strconv.Itoa(len(lib.Tracks))},
	}
	return renderTable([]string{"Collection", "Count"}, rows, 1)
}
