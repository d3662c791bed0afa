package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"dlnacast.app/dlnacast/internal/avtransport"
	"dlnacast.app/dlnacast/internal/buildinfo"
	"dlnacast.app/dlnacast/internal/discovery"
	"dlnacast.app/dlnacast/internal/domain"
	"dlnacast.app/dlnacast/internal/interactive"
	"dlnacast.app/dlnacast/internal/lifecycle"
	"dlnacast.app/dlnacast/internal/playlist"
	"dlnacast.app/dlnacast/internal/session"
	"dlnacast.app/dlnacast/internal/streamserver"
	"dlnacast.app/dlnacast/internal/tui"
)

const defaultPort = 9000

type options struct {
	timeout        time.Duration
	device         string
	query          string
	list           bool
	host           string
	port           int
	subtitle       string
	noSubtitle     bool
	subtitleOffset time.Duration
	loop           bool
	interactive    bool
	tui            bool
}

func main() {
	var opts options
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Second, "device discovery timeout")
	flag.StringVar(&opts.device, "device", "", "descriptor URL of the render to use, skipping discovery")
	flag.StringVar(&opts.query, "query", "", "pick the first render whose name contains this text")
	flag.BoolVar(&opts.list, "list", false, "list discovered renders and exit")
	flag.StringVar(&opts.host, "host", "", "LAN address to serve media from (default: autodetect)")
	flag.IntVar(&opts.port, "port", defaultPort, "port to serve media on")
	flag.StringVar(&opts.subtitle, "subtitle", "", "subtitle file (default: sidecar .srt next to the video)")
	flag.BoolVar(&opts.noSubtitle, "no-subtitle", false, "do not serve a subtitle even when a sidecar exists")
	flag.DurationVar(&opts.subtitleOffset, "subtitle-offset", 0, "shift subtitle timestamps, e.g. 1.5s or -2s")
	flag.BoolVar(&opts.loop, "playlist", false, "loop back to the first entry after the last")
	flag.BoolVar(&opts.interactive, "interactive", false, "inline keyboard controls")
	flag.BoolVar(&opts.tui, "tui", false, "full-screen control interface")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	logLevel := parseLogLevel(os.Getenv("DLNACAST_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	ctx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	if err := run(ctx, opts, flag.Args(), logger); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, args []string, logger *slog.Logger) error {
	finder := discovery.NewService(logger)
	resolver := discovery.NewResolver(finder, logger)

	if opts.list {
		return listRenders(ctx, resolver, opts)
	}

	if len(args) != 1 {
		return errors.New("usage: dlnacast [flags] <video file or directory>")
	}

	list, err := playlist.FromPath(args[0])
	if err != nil {
		return err
	}
	list.SetLoop(opts.loop)
	applySubtitleOverrides(list, opts)

	render, err := resolver.Resolve(ctx, renderSpec(opts))
	if err != nil {
		return err
	}
	logger.Info("render selected",
		slog.String("name", render.Name),
		slog.String("control_url", render.ControlURL))

	host := opts.host
	if host == "" {
		host, err = localIPFor(render.ControlURL)
		if err != nil {
			return fmt.Errorf("cannot determine local address, use -host: %w", err)
		}
	}

	transport := avtransport.NewClient(render, logger)
	factory := func(entry playlist.Entry) session.MediaServer {
		return streamserver.New(streamserver.Config{
			VideoPath:      entry.Video,
			SubtitlePath:   entry.Subtitle,
			Host:           host,
			Port:           opts.port,
			SubtitleOffset: opts.subtitleOffset,
		}, logger)
	}

	controller := session.NewController(render, transport, factory, list, logger)

	switch {
	case opts.tui:
		go func() { _ = controller.Run(ctx) }()
		if err := tui.Run(ctx, controller, render, list.Entries()); err != nil {
			return err
		}
		return controller.Err()
	case opts.interactive:
		go func() { _ = controller.Run(ctx) }()
		if err := interactive.Run(ctx, controller); err != nil {
			return err
		}
		return controller.Err()
	default:
		return controller.Run(ctx)
	}
}

func listRenders(ctx context.Context, resolver *discovery.Resolver, opts options) error {
	renders, err := resolver.ResolveAll(ctx, domain.RenderSpec{
		Kind:           domain.SpecAll,
		TimeoutSeconds: int(opts.timeout / time.Second),
	})
	if err != nil {
		return err
	}
	if len(renders) == 0 {
		fmt.Println("no renders found")
		return nil
	}
	for _, render := range renders {
		fmt.Printf("%s\n  descriptor: %s\n  control:    %s\n", render.Name, render.Location, render.ControlURL)
	}
	return nil
}

func renderSpec(opts options) domain.RenderSpec {
	timeoutSec := int(opts.timeout / time.Second)
	switch {
	case opts.device != "":
		return domain.RenderSpec{Kind: domain.SpecExplicitAddress, Address: opts.device}
	case opts.query != "":
		return domain.RenderSpec{Kind: domain.SpecNameQuery, Query: opts.query, TimeoutSeconds: timeoutSec}
	default:
		return domain.RenderSpec{Kind: domain.SpecFirst, TimeoutSeconds: timeoutSec}
	}
}

// applySubtitleOverrides reconciles the subtitle flags with the sidecar
// inference the playlist already did. An explicit -subtitle applies to a
// single-entry playlist only.
func applySubtitleOverrides(list *playlist.Playlist, opts options) {
	entries := list.Entries()
	if opts.noSubtitle {
		for i := range entries {
			entries[i].Subtitle = ""
		}
		return
	}
	if opts.subtitle != "" && len(entries) == 1 {
		entries[0].Subtitle = opts.subtitle
	}
}

// localIPFor finds the local interface address that routes toward the
// render. No packets are sent; the dial only consults the routing table.
func localIPFor(controlURL string) (string, error) {
	parsed, err := url.Parse(controlURL)
	if err != nil {
		return "", err
	}
	target := parsed.Host
	if parsed.Port() == "" {
		target = net.JoinHostPort(target, "80")
	}

	conn, err := net.Dial("udp", target)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", errors.New("unexpected local address type")
	}
	return addr.IP.String(), nil
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid DLNACAST_LOG_LEVEL=%q; defaulting to info\n", raw)
		return slog.LevelInfo
	}
}
