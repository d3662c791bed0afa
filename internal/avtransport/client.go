// Package avtransport implements the UPnP AVTransport control protocol
// against a render's control endpoint.
package avtransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"dlnacast.app/dlnacast/internal/domain"
)

const (
	serviceType = "urn:schemas-upnp-org:service:AVTransport:1"

	actionSetURI        = "SetAVTransportURI"
	actionPlay          = "Play"
	actionPause         = "Pause"
	actionStop          = "Stop"
	actionTransportInfo = "GetTransportInfo"
	actionPositionInfo  = "GetPositionInfo"

	// Renderers are slow to answer control calls while buffering.
	defaultCallTimeout = 5 * time.Second
	defaultSpeed       = "1"
	instanceID         = "0"
)

// Client issues AVTransport actions against one render. Calls are plain
// request/response exchanges; the caller is responsible for serializing them
// (renderers commonly mis-handle concurrent control requests).
type Client struct {
	controlURL  string
	httpClient  *http.Client
	callTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Client)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(render domain.Render, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		controlURL:  render.ControlURL,
		httpClient:  &http.Client{},
		callTimeout: defaultCallTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAVTransportURI points the render at mediaURL. It must precede Play for a
// newly loaded item. metadata is the DIDL-Lite description (may be empty).
func (c *Client) SetAVTransportURI(ctx context.Context, mediaURL, metadata string) error {
	args := []soapArg{
		{name: "InstanceID", value: instanceID},
		{name: "CurrentURI", value: mediaURL},
		{name: "CurrentURIMetaData", value: metadata},
	}
	_, err := c.call(ctx, actionSetURI, args, false)
	return err
}

func (c *Client) Play(ctx context.Context) error {
	args := []soapArg{
		{name: "InstanceID", value: instanceID},
		{name: "Speed", value: defaultSpeed},
	}
	_, err := c.call(ctx, actionPlay, args, false)
	return err
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := c.call(ctx, actionPause, []soapArg{{name: "InstanceID", value: instanceID}}, false)
	return err
}

func (c *Client) Stop(ctx context.Context) error {
	_, err := c.call(ctx, actionStop, []soapArg{{name: "InstanceID", value: instanceID}}, false)
	return err
}

// TransportInfo polls the render's current transport state. The raw status
// string (CurrentTransportStatus) is returned alongside for diagnostics.
func (c *Client) TransportInfo(ctx context.Context) (domain.TransportState, string, error) {
	values, err := c.call(ctx, actionTransportInfo, []soapArg{{name: "InstanceID", value: instanceID}}, true)
	if err != nil {
		return domain.TransportUnknown, "", err
	}
	return domain.ParseTransportState(values["CurrentTransportState"]), values["CurrentTransportStatus"], nil
}

// PositionInfo polls elapsed position and total duration of the current item.
// Renderers that do not implement a field report zero.
func (c *Client) PositionInfo(ctx context.Context) (elapsed, duration time.Duration, err error) {
	values, err := c.call(ctx, actionPositionInfo, []soapArg{{name: "InstanceID", value: instanceID}}, true)
	if err != nil {
		return 0, 0, err
	}
	return parseClockValue(values["RelTime"]), parseClockValue(values["TrackDuration"]), nil
}

// call performs one SOAP exchange. Status calls (idempotent=true) are retried
// once on a transient network failure; mutating calls are never retried, and
// a device fault is surfaced as-is regardless of idempotency.
func (c *Client) call(ctx context.Context, action string, args []soapArg, idempotent bool) (map[string]string, error) {
	values, err := c.exchange(ctx, action, args)
	if err == nil {
		return values, nil
	}

	if idempotent && isTransientNetworkError(err) {
		c.logger.Debug("retrying status call after transient failure",
			slog.String("action", action),
			slog.String("error", err.Error()))
		if values, retryErr := c.exchange(ctx, action, args); retryErr == nil {
			return values, nil
		}
	}

	return nil, c.wrapError(action, err)
}

func (c *Client) exchange(ctx context.Context, action string, args []soapArg) (map[string]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	body := buildEnvelope(action, args)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.controlURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"`+serviceType+"#"+action+`"`)
	req.Header.Set("Connection", "close")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	values, fault, err := parseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	if fault != nil {
		return nil, fault
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected control response status " + resp.Status)
	}
	return values, nil
}

func (c *Client) wrapError(action string, err error) error {
	var fault *soapFault
	if errors.As(err, &fault) {
		return &domain.ControlCommandError{
			Action:       action,
			Code:         domain.CodeDeviceFault,
			FaultCode:    fault.Code,
			FaultMessage: fault.Description,
		}
	}

	code := domain.CodeNetwork
	if isTimeoutError(err) {
		code = domain.CodeTimeout
	}
	return &domain.ControlCommandError{Action: action, Code: code, Err: err}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isTransientNetworkError mirrors the transient classification used for
// session retries: timeouts and connection-level failures qualify, context
// cancellation and device faults never do.
func isTransientNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fault *soapFault
	if errors.As(err, &fault) {
		return false
	}
	if isTimeoutError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"no route to host",
		"network is unreachable",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
