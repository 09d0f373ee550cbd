// Package model defines data structures for the dialogue simulator.
package model

import (
	"path/filepath"
	"strings"
)

// Track is a recommendable music item. Tracks are immutable once loaded.
type Track struct {
	TrackID   string   `json:"track_id"`
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	Album     string   `json:"album"`
	Lyrics    string   `json:"lyrics,omitempty"`
	Tags      []string `json:"tags"`
	AudioPath string   `json:"audio_path,omitempty"`
	ImagePath string   `json:"image_path,omitempty"`
}

// ArtifactPath resolves the artifact path for a modality ("audio" or "image").
// Relative paths are joined onto basePath. Empty means the track has no artifact.
func (t Track) ArtifactPath(modality, basePath string) string {
	var p string
	switch strings.ToLower(modality) {
	case "audio":
		p = t.AudioPath
	case "image":
		p = t.ImagePath
	}
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) || basePath == "" {
		return p
	}
	return filepath.Join(basePath, p)
}

// Tracks is an ordered collection of tracks, unique by TrackID.
type Tracks []Track

// NewTracks builds a Tracks value, keeping the first occurrence of each id.
func NewTracks(tracks ...Track) Tracks {
	seen := make(map[string]struct{}, len(tracks))
	out := make(Tracks, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.TrackID]; ok {
			continue
		}
		seen[t.TrackID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// IDs returns the track ids in order.
func (ts Tracks) IDs() []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.TrackID
	}
	return ids
}

// Find returns the track with the given id.
func (ts Tracks) Find(id string) (Track, bool) {
	for _, t := range ts {
		if t.TrackID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Contains reports whether a track with the given id is present.
func (ts Tracks) Contains(id string) bool {
	_, ok := ts.Find(id)
	return ok
}

// Without returns a copy of ts with the given id removed.
func (ts Tracks) Without(id string) Tracks {
	out := make(Tracks, 0, len(ts))
	for _, t := range ts {
		if t.TrackID != id {
			out = append(out, t)
		}
	}
	return out
}

// Concat returns a new collection of ts followed by other, deduplicated.
func (ts Tracks) Concat(other Tracks) Tracks {
	all := make([]Track, 0, len(ts)+len(other))
	all = append(all, ts...)
	all = append(all, other...)
	return NewTracks(all...)
}
