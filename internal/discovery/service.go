package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexballas/go-ssdp"
	"github.com/hashicorp/go-retryablehttp"

	"dlnacast.app/dlnacast/internal/domain"
)

// AVTransport service URN renderers must expose to be usable.
const avTransportService = "urn:schemas-upnp-org:service:AVTransport:1"

const (
	defaultTimeout        = 5 * time.Second
	maxSearchWaitSeconds  = 10
	descriptorFetchLimit  = 512 * 1024
	descriptorHTTPTimeout = 4 * time.Second
	descriptorRetries     = 2
)

type searchFunc func(searchType string, waitSec int, localAddr string) ([]ssdp.Service, error)

// Service discovers AVTransport-capable renderers on the local network.
type Service struct {
	search     searchFunc
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = descriptorRetries
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = descriptorHTTPTimeout

	return &Service{
		search:     ssdp.Search,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Discover multicasts an SSDP search for AVTransport renderers and collects
// responses until timeout elapses. Responses are deduplicated by device UDN
// and each device's descriptor is fetched to extract the control endpoint;
// devices with unreachable or malformed descriptors are skipped. An empty
// result is not an error.
func (s *Service) Discover(ctx context.Context, timeout time.Duration) ([]domain.Render, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	waitSec := int(math.Ceil(timeout.Seconds()))
	if waitSec > maxSearchWaitSeconds {
		waitSec = maxSearchWaitSeconds
	}

	resultCh := make(chan struct {
		services []ssdp.Service
		err      error
	}, 1)

	go func() {
		services, err := s.search(avTransportService, waitSec, "")
		resultCh <- struct {
			services []ssdp.Service
			err      error
		}{services: services, err: err}
	}()

	// The search blocks for the full response window; the timer is a
	// backstop so a stuck socket cannot hold Discover past its deadline.
	deadline := time.NewTimer(timeout + time.Second)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline.C:
		return []domain.Render{}, nil
	case result := <-resultCh:
		if result.err != nil {
			return nil, &domain.DiscoveryError{Op: "search", Err: result.err}
		}
		return s.collectRenders(ctx, result.services), nil
	}
}

func (s *Service) collectRenders(ctx context.Context, services []ssdp.Service) []domain.Render {
	renders := make([]domain.Render, 0, len(services))
	seen := make(map[string]struct{}, len(services))

	for _, svc := range services {
		if svc.Location == "" {
			continue
		}
		udn := udnFromUSN(svc.USN)
		key := udn
		if key == "" {
			key = svc.Location
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		render, err := s.FetchRender(ctx, svc.Location)
		if err != nil {
			s.logger.Debug("skipping device with bad descriptor",
				slog.String("location", svc.Location),
				slog.String("error", err.Error()))
			continue
		}
		if udn != "" {
			render.UDN = udn
		}
		renders = append(renders, render)
	}

	return renders
}

// FetchRender fetches and parses a single device descriptor. It performs no
// discovery traffic, so it also serves as the explicit-address fast path.
func (s *Service) FetchRender(ctx context.Context, location string) (domain.Render, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return domain.Render{}, fmt.Errorf("descriptor request %q: %w", location, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Render{}, fmt.Errorf("fetch descriptor %q: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Render{}, fmt.Errorf("fetch descriptor %q: unexpected status %d", location, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, descriptorFetchLimit))
	if err != nil {
		return domain.Render{}, fmt.Errorf("read descriptor %q: %w", location, err)
	}

	return parseDescriptor(location, body)
}

type descriptorRoot struct {
	XMLName xml.Name         `xml:"root"`
	Device  descriptorDevice `xml:"device"`
}

type descriptorDevice struct {
	FriendlyName string              `xml:"friendlyName"`
	UDN          string              `xml:"UDN"`
	Services     []descriptorService `xml:"serviceList>service"`
	Embedded     []descriptorDevice  `xml:"deviceList>device"`
}

type descriptorService struct {
	ServiceType string `xml:"serviceType"`
	ControlURL  string `xml:"controlURL"`
}

func parseDescriptor(location string, body []byte) (domain.Render, error) {
	var root descriptorRoot
	if err := xml.Unmarshal(body, &root); err != nil {
		return domain.Render{}, fmt.Errorf("parse descriptor %q: %w", location, err)
	}

	dev, svc := findAVTransport(&root.Device)
	if svc == nil {
		return domain.Render{}, fmt.Errorf("descriptor %q: no AVTransport service", location)
	}

	controlURL, err := resolveControlURL(location, svc.ControlURL)
	if err != nil {
		return domain.Render{}, err
	}

	return domain.Render{
		Name:       strings.TrimSpace(dev.FriendlyName),
		UDN:        strings.TrimSpace(dev.UDN),
		Location:   location,
		ControlURL: controlURL,
	}, nil
}

// findAVTransport walks the device tree, embedded devices included, and
// returns the first device carrying an AVTransport service.
func findAVTransport(dev *descriptorDevice) (*descriptorDevice, *descriptorService) {
	for i := range dev.Services {
		if strings.EqualFold(strings.TrimSpace(dev.Services[i].ServiceType), avTransportService) {
			return dev, &dev.Services[i]
		}
	}
	for i := range dev.Embedded {
		if d, svc := findAVTransport(&dev.Embedded[i]); svc != nil {
			return d, svc
		}
	}
	return nil, nil
}

func resolveControlURL(location, controlURL string) (string, error) {
	base, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse descriptor location %q: %w", location, err)
	}
	ref, err := url.Parse(strings.TrimSpace(controlURL))
	if err != nil {
		return "", fmt.Errorf("parse control URL %q: %w", controlURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func udnFromUSN(usn string) string {
	usn = strings.TrimSpace(usn)
	if usn == "" {
		return ""
	}
	if idx := strings.Index(usn, "::"); idx >= 0 {
		usn = usn[:idx]
	}
	if !strings.HasPrefix(strings.ToLower(usn), "uuid:") {
		return ""
	}
	return usn
}
