package core

import "time"

// Track represents a playable audio track.
type Track struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Artist     string        `json:"artist,omitempty"`
	Album      string        `json:"album,omitempty"`
	ArtworkURL string        `json:"artwork_url,omitempty"`
	Source     string        `json:"source"`
	Duration   time.Duration `json:"duration"`
}

// DisplayName returns "Artist - Name", or just the name when the artist is unknown.
func (t *Track) DisplayName() string {
	if t == nil {
		return ""
	}
	if t.Artist == "" {
		return t.Name
	}
	return t.Artist + " - " + t.Name
}
