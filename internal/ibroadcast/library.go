package ibroadcast

// Typed records for the five library collections. Field sets follow the
// library payload; values the server may omit or send as null are pointers.

// Album represents an album in the library.
type Album struct {
	Name     string  `json:"name"`
	Tracks   []int64 `json:"tracks"`
	ArtistID int64   `json:"artist_id"`
	Disc     int     `json:"disc"`
	Year     int     `json:"year"`
	Rating   int     `json:"rating"`
	Trashed  bool    `json:"trashed"`
}

// Artist represents an artist in the library.
type Artist struct {
	Name    string  `json:"name"`
	Tracks  []int64 `json:"tracks"`
	Rating  int     `json:"rating"`
	Trashed bool    `json:"trashed"`
}

// Playlist represents a playlist in the library.
type Playlist struct {
	Name          string  `json:"name"`
	Tracks        []int64 `json:"tracks"`
	UID           string  `json:"uid"`
	SystemCreated bool    `json:"system_created"`
	PublicID      *string `json:"public_id"`
	Type          *string `json:"type"`
	Description   *string `json:"description"`
	ArtworkID     *int64  `json:"artwork_id"`
	Sort          *int    `json:"sort"`
}

// Tag represents a track tag. Tracks of archived tags are not populated by
// the library endpoint.
type Tag struct {
	Name     string  `json:"name"`
	Archived bool    `json:"archived"`
	Tracks   []int64 `json:"tracks"`
}

// Track represents a single track in the library.
type Track struct {
	Title        string  `json:"title"`
	Track        int     `json:"track"`
	Year         int     `json:"year"`
	Genre        string  `json:"genre"`
	Length       int     `json:"length"`
	AlbumID      int64   `json:"album_id"`
	ArtistID     int64   `json:"artist_id"`
	ArtworkID    *int64  `json:"artwork_id"`
	ENID         *string `json:"enid"`
	UploadedOn   string  `json:"uploaded_on"`
	UploadedTime string  `json:"uploaded_time"`
	Trashed      bool    `json:"trashed"`
	Size         int64   `json:"size"`
	Path         string  `json:"path"`
	File         string  `json:"file"`
	Type         string  `json:"type"`
	UID          string  `json:"uid"`
	Rating       int     `json:"rating"`
	Plays        int     `json:"plays"`
	ReplayGain   string  `json:"replay_gain"`
}

// Library is a decoded snapshot of the five collections as of the last
// refresh. Cross-references between collections are plain IDs; resolution
// happens through the [Client] lookup accessors.
//
// A Library is never mutated after construction. Refreshing builds a new
// snapshot and swaps it in whole, so readers see either the fully-old or
// the fully-new data.
type Library struct {
	Albums    map[string]Album
	Artists   map[string]Artist
	Playlists map[string]Playlist
	Tags      map[string]Tag
	Tracks    map[string]Track
}
