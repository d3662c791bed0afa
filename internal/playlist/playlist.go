// Package playlist builds and navigates the ordered set of media entries a
// casting session plays through.
package playlist

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dlnacast.app/dlnacast/internal/domain"
	"dlnacast.app/dlnacast/internal/subtitles"
)

// supportedExtensions lists the container formats renderers commonly accept.
// Directory scans skip everything else.
var supportedExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mkv": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".3gp": true, ".ogv": true,
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".ogg": true,
	".wma": true, ".m4a": true, ".opus": true,
}

// SupportedMedia reports whether path has a recognized media extension.
func SupportedMedia(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Entry is one playable item: a video and its optional subtitle sidecar.
type Entry struct {
	Video    string
	Subtitle string
}

// Name is the entry's display label.
func (e Entry) Name() string {
	return filepath.Base(e.Video)
}

// Playlist is an ordered list of entries with a cursor. The cursor always
// points at a valid entry; navigation past either end either wraps (loop
// mode) or leaves the cursor unchanged. Not safe for concurrent use; the
// session controller owns it.
type Playlist struct {
	entries []Entry
	index   int
	loop    bool
}

// New builds a playlist from explicit entries.
func New(entries []Entry) (*Playlist, error) {
	if len(entries) == 0 {
		return nil, &domain.PlaylistError{
			Code:    domain.CodeEmpty,
			Message: "no playable entries",
		}
	}
	return &Playlist{entries: entries}, nil
}

// FromPath builds a playlist from a single media file or from a directory
// scanned recursively for supported media, sorted by path for a stable
// order. Sidecar subtitles are attached per entry.
func FromPath(path string) (*Playlist, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, &domain.PlaylistError{
			Code:    domain.CodeEmpty,
			Message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	var videos []string
	if stat.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && SupportedMedia(p) {
				videos = append(videos, p)
			}
			return nil
		})
		if err != nil {
			return nil, &domain.PlaylistError{
				Code:    domain.CodeEmpty,
				Message: fmt.Sprintf("cannot scan %s: %v", path, err),
			}
		}
		sort.Strings(videos)
	} else {
		videos = []string{path}
	}

	if len(videos) == 0 {
		return nil, &domain.PlaylistError{
			Code:    domain.CodeEmpty,
			Message: fmt.Sprintf("no supported media under %s", path),
		}
	}

	entries := make([]Entry, 0, len(videos))
	for _, video := range videos {
		entries = append(entries, Entry{
			Video:    video,
			Subtitle: subtitles.FindSidecar(video),
		})
	}
	return &Playlist{entries: entries}, nil
}

// Entries returns the entries in order. The slice is shared; callers must
// not mutate it.
func (p *Playlist) Entries() []Entry { return p.entries }

func (p *Playlist) Len() int { return len(p.entries) }

// Index is the current cursor position.
func (p *Playlist) Index() int { return p.index }

// Current returns the entry under the cursor.
func (p *Playlist) Current() Entry { return p.entries[p.index] }

// Next advances the cursor. At the last entry it wraps to the first in loop
// mode and reports false without moving otherwise.
func (p *Playlist) Next() bool {
	if p.index+1 < len(p.entries) {
		p.index++
		return true
	}
	if p.loop {
		p.index = 0
		return true
	}
	return false
}

// Previous moves the cursor back, wrapping to the last entry in loop mode.
func (p *Playlist) Previous() bool {
	if p.index > 0 {
		p.index--
		return true
	}
	if p.loop {
		p.index = len(p.entries) - 1
		return true
	}
	return false
}

// Select moves the cursor to index i.
func (p *Playlist) Select(i int) error {
	if i < 0 || i >= len(p.entries) {
		return &domain.PlaylistError{
			Code:    domain.CodeIndexOutOfBound,
			Message: fmt.Sprintf("index %d outside [0,%d)", i, len(p.entries)),
		}
	}
	p.index = i
	return nil
}

func (p *Playlist) Loop() bool        { return p.loop }
func (p *Playlist) SetLoop(loop bool) { p.loop = loop }
func (p *Playlist) ToggleLoop()       { p.loop = !p.loop }
