// Package dataset loads listening sessions from a directory of JSON files.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// ErrNoSessions is returned when the playlists file holds no session.
var ErrNoSessions = errors.New("dataset has no sessions")

type usersFile struct {
	Users []model.User `json:"users"`
}

type tracksFile struct {
	Tracks []model.Track `json:"tracks"`
}

// Session is one listening session: a user and the tracks they played.
type Session struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	TrackIDs  []string `json:"track_ids"`
}

type playlistsFile struct {
	Sessions []Session `json:"sessions"`
}

// Dataset is the parsed content of a data directory.
type Dataset struct {
	Users    map[string]model.User
	Tracks   map[string]model.Track
	Sessions []Session
}

// Loader reads users.json, tracks.json and playlists.json from a directory.
type Loader struct {
	dir         string
	source      string
	profileSize int
	poolSize    int
}

// NewLoader creates a loader. The first profileSize known tracks of a session
// become the liked tracks, the next poolSize the recommendation pool.
func NewLoader(dir, source string, profileSize, poolSize int) *Loader {
	if source == "" {
		source = filepath.Base(dir)
	}
	return &Loader{dir: dir, source: source, profileSize: profileSize, poolSize: poolSize}
}

// Load parses the three dataset files.
func (l *Loader) Load() (*Dataset, error) {
	var users usersFile
	if err := readJSON(filepath.Join(l.dir, "users.json"), &users); err != nil {
		return nil, err
	}
	var tracks tracksFile
	if err := readJSON(filepath.Join(l.dir, "tracks.json"), &tracks); err != nil {
		return nil, err
	}
	var playlists playlistsFile
	if err := readJSON(filepath.Join(l.dir, "playlists.json"), &playlists); err != nil {
		return nil, err
	}

	ds := &Dataset{
		Users:    make(map[string]model.User, len(users.Users)),
		Tracks:   make(map[string]model.Track, len(tracks.Tracks)),
		Sessions: playlists.Sessions,
	}
	for _, u := range users.Users {
		ds.Users[u.UserID] = u
	}
	for _, t := range tracks.Tracks {
		if t.Album == "" {
			t.Album = "Unknown"
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		ds.Tracks[t.TrackID] = t
	}
	return ds, nil
}

// FirstSession returns the first session of the dataset, split into liked
// tracks and pool. Track ids missing from tracks.json are skipped.
func (l *Loader) FirstSession(ctx context.Context) (*model.SessionData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := l.Load()
	if err != nil {
		return nil, err
	}
	if len(ds.Sessions) == 0 {
		return nil, ErrNoSessions
	}
	return l.split(ds, ds.Sessions[0])
}

func (l *Loader) split(ds *Dataset, s Session) (*model.SessionData, error) {
	user, ok := ds.Users[s.UserID]
	if !ok {
		return nil, fmt.Errorf("session %s: unknown user %q", s.SessionID, s.UserID)
	}

	var known []model.Track
	for _, id := range s.TrackIDs {
		if t, ok := ds.Tracks[id]; ok {
			known = append(known, t)
		}
	}
	tracks := model.NewTracks(known...)

	likedEnd := min(max(l.profileSize, 0), len(tracks))
	poolEnd := min(likedEnd+max(l.poolSize, 0), len(tracks))

	return &model.SessionData{
		SessionID: s.SessionID,
		User:      user,
		Liked:     append(model.Tracks{}, tracks[:likedEnd]...),
		Pool:      append(model.Tracks{}, tracks[likedEnd:poolEnd]...),
		Source:    l.source,
	}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
