// Package state persists the player's small client-side state: recently
// watched channels and the last selected playlist.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/models"
)

const (
	// MaxRecentChannels caps the recently watched list
	MaxRecentChannels = 10

	recentFile    = "recent_channels.json"
	selectionFile = "selection.json"
)

// RecentChannel is a recently watched channel entry
type RecentChannel struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	LogoURL     string    `json:"logo_url,omitempty"`
	LastWatched time.Time `json:"last_watched"`
}

type selection struct {
	Playlist string `json:"playlist"`
}

// Store keeps state as JSON files in a directory of an afero filesystem
type Store struct {
	fs    afero.Fs
	dir   string
	clock clockwork.Clock
	mu    sync.Mutex
}

// NewStore creates the state directory if needed. A nil clock uses the real clock.
func NewStore(fs afero.Fs, dir string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{fs: fs, dir: dir, clock: clock}, nil
}

// AddRecent puts the channel at the front of the recently watched list,
// dropping any older entry for it and capping the list at MaxRecentChannels
func (s *Store) AddRecent(ch *models.Channel) error {
	if ch == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var recent []RecentChannel
	if err := readState(s, recentFile, &recent); err != nil {
		return err
	}

	entry := RecentChannel{
		ID:          ch.ID,
		Name:        ch.Name,
		LogoURL:     ch.LogoURL,
		LastWatched: s.clock.Now().UTC(),
	}
	next := make([]RecentChannel, 0, MaxRecentChannels)
	next = append(next, entry)
	for _, r := range recent {
		if r.ID == ch.ID {
			continue
		}
		if len(next) == MaxRecentChannels {
			break
		}
		next = append(next, r)
	}

	return s.write(recentFile, next)
}

// Recent returns the recently watched channels, newest first
func (s *Store) Recent() ([]RecentChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recent []RecentChannel
	if err := readState(s, recentFile, &recent); err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []RecentChannel{}
	}
	return recent, nil
}

// SelectedPlaylist returns the remembered playlist name, or "" if none
func (s *Store) SelectedPlaylist() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sel selection
	if err := readState(s, selectionFile, &sel); err != nil {
		return "", err
	}
	return sel.Playlist, nil
}

// SetSelectedPlaylist remembers the selected playlist name
func (s *Store) SetSelectedPlaylist(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(selectionFile, selection{Playlist: name})
}

// readState decodes a state file into v. v is only assigned when the whole
// file decodes; a missing or corrupt file leaves it untouched.
func readState[T any](s *Store, name string, v *T) error {
	path := filepath.Join(s.dir, name)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("file", path).
			Msg("Ignoring corrupt state file")
		return nil
	}
	*v = decoded
	return nil
}

// write replaces a state file through a temp file and rename
func (s *Store) write(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
