// Package streamserver serves one playlist entry (a video file and an
// optional subtitle) over HTTP so a render on the LAN can pull it.
package streamserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	"dlnacast.app/dlnacast/internal/domain"
	"dlnacast.app/dlnacast/internal/subtitles"
)

const (
	videoRoute    = "/video"
	subtitleRoute = "/subtitle"

	// Renderers keep range connections open; give them a moment to drain
	// before forcing the listener closed.
	shutdownGrace = 3 * time.Second

	sniffBytes = 512
)

// Config describes what one server instance serves and where it binds.
type Config struct {
	VideoPath    string
	SubtitlePath string // empty means no subtitle resource

	// Host is the LAN-reachable address advertised in the URLs handed to
	// the render. Port 0 binds an ephemeral port.
	Host string
	Port int

	// SubtitleOffset shifts every subtitle timestamp before serving.
	SubtitleOffset time.Duration
}

// Server streams a single video (and optionally its subtitle) to the render.
// Start must succeed before the URL accessors return meaningful values.
type Server struct {
	cfg    Config
	logger *slog.Logger

	video        *os.File
	videoSize    int64
	videoModTime time.Time
	videoType    string // bare extension, e.g. "mp4"

	subtitleBody []byte
	subtitleType string

	listener net.Listener
	httpSrv  *http.Server
	done     chan struct{}
}

func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{cfg: cfg, logger: logger}
}

// Start opens the media files, binds the listener and begins serving. Any
// failure here is reported before a single byte reaches the render, so the
// caller can abort without having touched the device.
func (s *Server) Start() error {
	if err := s.openVideo(); err != nil {
		return err
	}
	if err := s.loadSubtitle(); err != nil {
		s.video.Close()
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.video.Close()
		return &domain.StreamingServerError{
			Code:    domain.CodeBindFailed,
			Message: fmt.Sprintf("cannot listen on %s", addr),
			Err:     err,
		}
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(videoRoute, s.handleVideo)
	if s.subtitleBody != nil {
		mux.HandleFunc(subtitleRoute, s.handleSubtitle)
	}

	s.httpSrv = &http.Server{Handler: mux}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("media server stopped", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("media server listening",
		slog.String("addr", listener.Addr().String()),
		slog.String("video", s.cfg.VideoPath),
		slog.Bool("subtitle", s.subtitleBody != nil))
	return nil
}

// Stop shuts the server down, draining in-flight transfers up to a short
// grace period before closing connections outright. Safe to call only after
// a successful Start.
func (s *Server) Stop(ctx context.Context) error {
	graceCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	err := s.httpSrv.Shutdown(graceCtx)
	if err != nil {
		s.httpSrv.Close()
	}
	<-s.done
	s.video.Close()
	return err
}

// VideoURL is the URL the render should fetch the video from.
func (s *Server) VideoURL() string {
	return s.baseURL() + videoRoute
}

// SubtitleURL is the subtitle resource URL, empty when no subtitle is served.
func (s *Server) SubtitleURL() string {
	if s.subtitleBody == nil {
		return ""
	}
	return s.baseURL() + subtitleRoute
}

// VideoType is the bare media extension ("mp4", "mkv") used in DIDL metadata.
func (s *Server) VideoType() string { return s.videoType }

func (s *Server) SubtitleType() string { return s.subtitleType }

// Addr is the bound listener address, useful when Port 0 was requested.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

func (s *Server) baseURL() string {
	host := s.cfg.Host
	port := s.cfg.Port
	if s.listener != nil {
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
}

func (s *Server) openVideo() error {
	f, err := os.Open(s.cfg.VideoPath)
	if err != nil {
		return &domain.StreamingServerError{
			Code:    domain.CodeFileUnreadable,
			Message: fmt.Sprintf("cannot open video %s", s.cfg.VideoPath),
			Err:     err,
		}
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return &domain.StreamingServerError{
			Code:    domain.CodeFileUnreadable,
			Message: fmt.Sprintf("%s is not a readable file", s.cfg.VideoPath),
			Err:     err,
		}
	}

	s.video = f
	s.videoSize = info.Size()
	s.videoModTime = info.ModTime()
	s.videoType = detectVideoType(f, s.cfg.VideoPath)
	return nil
}

func (s *Server) loadSubtitle() error {
	if s.cfg.SubtitlePath == "" {
		return nil
	}

	cues, err := subtitles.ParseSRTFile(s.cfg.SubtitlePath)
	if err != nil {
		return &domain.StreamingServerError{
			Code:    domain.CodeFileUnreadable,
			Message: fmt.Sprintf("cannot load subtitle %s", s.cfg.SubtitlePath),
			Err:     err,
		}
	}
	if s.cfg.SubtitleOffset != 0 {
		cues = subtitles.Shift(cues, s.cfg.SubtitleOffset)
	}
	s.subtitleBody = subtitles.RenderSRT(cues)
	s.subtitleType = "srt"
	return nil
}

// handleVideo serves the video file with full range-request support so the
// render can seek. ServeContent handles If-Range and multi-range for us.
// Each request gets its own reader over the shared descriptor: renderers
// open a second range request mid-stream, and concurrent handlers seeking
// one *os.File would corrupt each other's reads.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("video request",
		slog.String("remote", r.RemoteAddr),
		slog.String("range", r.Header.Get("Range")))

	w.Header().Set("Content-Type", contentTypeFor(s.videoType))
	w.Header().Set("TransferMode.DLNA.ORG", "Streaming")
	reader := io.NewSectionReader(s.video, 0, s.videoSize)
	http.ServeContent(w, r, filepath.Base(s.cfg.VideoPath), s.videoModTime, reader)
}

func (s *Server) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("subtitle request", slog.String("remote", r.RemoteAddr))
	w.Header().Set("Content-Type", "text/srt")
	http.ServeContent(w, r, "subtitle.srt", s.videoModTime, bytes.NewReader(s.subtitleBody))
}

// detectVideoType sniffs the container format from the file's leading bytes,
// falling back to the filename extension for formats the sniffer misses.
func detectVideoType(f *os.File, path string) string {
	head := make([]byte, sniffBytes)
	n, _ := f.ReadAt(head, 0)
	if kind, err := filetype.Match(head[:n]); err == nil && kind != filetype.Unknown {
		if _, isVideo := matchers.Video[kind]; isVideo || kind.MIME.Type == "video" || kind.MIME.Type == "audio" {
			return kind.Extension
		}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "mp4"
	}
	return ext
}

func contentTypeFor(videoType string) string {
	switch videoType {
	case "mp3", "wav", "flac", "aac", "ogg", "wma", "m4a", "opus":
		return "audio/" + videoType
	default:
		return "video/" + videoType
	}
}
