// Package subtitles parses and shifts SubRip subtitle files for the
// offset-corrected subtitle resource of the streaming server.
package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Cue is one timed subtitle event.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// ParseSRT reads SubRip cues from r. Cue numbering in the file is ignored
// and regenerated sequentially; malformed blocks fail the whole parse since
// a silently truncated subtitle track is worse than an error.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []Cue
	var lines []string
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		cue, err := parseBlock(lines)
		if err != nil {
			return err
		}
		cue.Index = len(cues) + 1
		cues = append(cues, cue)
		lines = lines[:0]
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subtitle: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cues, nil
}

// ParseSRTFile parses the SubRip file at path.
func ParseSRTFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSRT(f)
}

func parseBlock(lines []string) (Cue, error) {
	// Leading counter line is optional in the wild.
	if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return Cue{}, fmt.Errorf("subtitle block without timing line")
	}

	start, end, err := parseTimingLine(lines[0])
	if err != nil {
		return Cue{}, err
	}

	return Cue{
		Start: start,
		End:   end,
		Text:  strings.Join(lines[1:], "\n"),
	}, nil
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp parses HH:MM:SS,mmm. A dot separator is accepted since
// some tools emit it.
func parseTimestamp(raw string) (time.Duration, error) {
	normalized := strings.Replace(raw, ".", ",", 1)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ':' || r == ','
	})
	if len(fields) != 4 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}

	nums := make([]int, 4)
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", raw)
		}
		nums[i] = n
	}

	return time.Duration(nums[0])*time.Hour +
		time.Duration(nums[1])*time.Minute +
		time.Duration(nums[2])*time.Second +
		time.Duration(nums[3])*time.Millisecond, nil
}

// Shift returns a copy of cues with every timestamp moved by offset. The
// shift is exactly linear: negative intermediate times are kept so that
// shifting by an offset and then its negation reproduces the input.
func Shift(cues []Cue, offset time.Duration) []Cue {
	shifted := make([]Cue, len(cues))
	for i, cue := range cues {
		cue.Start += offset
		cue.End += offset
		shifted[i] = cue
	}
	return shifted
}

// RenderSRT writes cues back out as SubRip text. Timestamps that went
// negative through shifting are clamped to zero at render time only.
func RenderSRT(cues []Cue) []byte {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			i+1, formatTimestamp(cue.Start), formatTimestamp(cue.End), cue.Text)
	}
	return []byte(b.String())
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, ms%1000)
}

// FindSidecar locates the same-named .srt file next to a video, returning
// the empty string when none exists.
func FindSidecar(videoPath string) string {
	ext := filepath.Ext(videoPath)
	candidate := strings.TrimSuffix(videoPath, ext) + ".srt"
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return ""
	}
	return candidate
}
