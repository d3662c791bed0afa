package playlist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dlnacast.app/dlnacast/internal/domain"
)

func mustPlaylist(t *testing.T, n int) *Playlist {
	t.Helper()
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{Video: filepath.Join("videos", string(rune('a'+i))+".mp4")}
	}
	p, err := New(entries)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil)
	var plErr *domain.PlaylistError
	if !errors.As(err, &plErr) || plErr.Code != domain.CodeEmpty {
		t.Fatalf("expected EMPTY playlist error, got %v", err)
	}
}

func TestNavigationWithoutLoop(t *testing.T) {
	p := mustPlaylist(t, 3)

	if !p.Next() || p.Index() != 1 {
		t.Fatalf("first Next: index = %d", p.Index())
	}
	if !p.Next() || p.Index() != 2 {
		t.Fatalf("second Next: index = %d", p.Index())
	}
	// At the last entry Next must refuse and hold position.
	if p.Next() {
		t.Error("Next at end without loop should report false")
	}
	if p.Index() != 2 {
		t.Errorf("index moved to %d on refused Next", p.Index())
	}

	p2 := mustPlaylist(t, 3)
	if p2.Previous() {
		t.Error("Previous at start without loop should report false")
	}
	if p2.Index() != 0 {
		t.Errorf("index moved to %d on refused Previous", p2.Index())
	}
}

func TestNavigationWithLoop(t *testing.T) {
	p := mustPlaylist(t, 2)
	p.SetLoop(true)

	p.Next()
	if !p.Next() || p.Index() != 0 {
		t.Errorf("Next at end with loop: index = %d, want 0", p.Index())
	}
	if !p.Previous() || p.Index() != 1 {
		t.Errorf("Previous at start with loop: index = %d, want 1", p.Index())
	}
}

func TestIndexAlwaysValid(t *testing.T) {
	p := mustPlaylist(t, 3)
	ops := []func() bool{p.Next, p.Next, p.Next, p.Previous, p.Previous, p.Previous, p.Previous}
	for i, op := range ops {
		op()
		if p.Index() < 0 || p.Index() >= p.Len() {
			t.Fatalf("after op %d: index %d outside [0,%d)", i, p.Index(), p.Len())
		}
	}
}

func TestSelect(t *testing.T) {
	p := mustPlaylist(t, 3)

	if err := p.Select(2); err != nil || p.Index() != 2 {
		t.Fatalf("Select(2): err=%v index=%d", err, p.Index())
	}

	for _, i := range []int{-1, 3} {
		err := p.Select(i)
		var plErr *domain.PlaylistError
		if !errors.As(err, &plErr) || plErr.Code != domain.CodeIndexOutOfBound {
			t.Errorf("Select(%d): expected out-of-bounds error, got %v", i, err)
		}
		if p.Index() != 2 {
			t.Errorf("Select(%d) moved index to %d", i, p.Index())
		}
	}
}

func TestFromPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	sub := filepath.Join(dir, "clip.srt")
	for _, path := range []string{video, sub} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p, err := FromPath(video)
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d", p.Len())
	}
	if got := p.Current(); got.Video != video || got.Subtitle != sub {
		t.Errorf("Current = %+v", got)
	}
}

func TestFromPathDirectoryScan(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "season")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	files := []string{
		filepath.Join(dir, "b.mkv"),
		filepath.Join(dir, "a.mp4"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(sub, "c.avi"),
	}
	for _, path := range files {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p, err := FromPath(dir)
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if p.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (txt excluded)", p.Len())
	}

	// Sorted by path: a.mp4, b.mkv, season/c.avi.
	want := []string{"a.mp4", "b.mkv", "c.avi"}
	for i, name := range want {
		if got := p.Entries()[i].Name(); got != name {
			t.Errorf("entry %d = %q, want %q", i, got, name)
		}
	}
}

func TestFromPathNoMedia(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := FromPath(dir)
	var plErr *domain.PlaylistError
	if !errors.As(err, &plErr) || plErr.Code != domain.CodeEmpty {
		t.Fatalf("expected EMPTY error, got %v", err)
	}
}
