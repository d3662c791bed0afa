package avtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dlnacast.app/dlnacast/internal/domain"
)

// soapServer fakes a render control endpoint, recording every action it
// receives and answering from a canned response table.
type soapServer struct {
	t  *testing.T
	mu sync.Mutex

	actions   []string
	responses map[string]string // action -> response body
	faults    map[string]string // action -> fault body
	delays    map[string]time.Duration
	calls     map[string]int
}

func newSOAPServer(t *testing.T) *soapServer {
	return &soapServer{
		t:         t,
		responses: make(map[string]string),
		faults:    make(map[string]string),
		delays:    make(map[string]time.Duration),
		calls:     make(map[string]int),
	}
}

func (s *soapServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		soapAction := r.Header.Get("SOAPAction")
		action := strings.Trim(soapAction, `"`)
		if idx := strings.Index(action, "#"); idx >= 0 {
			action = action[idx+1:]
		}

		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<u:"+action) {
			s.t.Errorf("body does not carry action %q: %s", action, body)
		}

		s.mu.Lock()
		s.actions = append(s.actions, action)
		s.calls[action]++
		call := s.calls[action]
		delay := s.delays[action]
		fault, hasFault := s.faults[action]
		response, hasResponse := s.responses[action]
		s.mu.Unlock()

		// Delay only the first attempt so retry tests can observe recovery.
		if delay > 0 && call == 1 {
			time.Sleep(delay)
		}

		if hasFault {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, fault)
			return
		}
		if !hasResponse {
			response = okResponse(action, nil)
		}
		fmt.Fprint(w, response)
	})
}

func (s *soapServer) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

func okResponse(action string, values map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`)
	fmt.Fprintf(&b, `<u:%sResponse xmlns:u="%s">`, action, serviceType)
	for name, value := range values {
		fmt.Fprintf(&b, "<%s>%s</%s>", name, value, name)
	}
	fmt.Fprintf(&b, `</u:%sResponse></s:Body></s:Envelope>`, action)
	return b.String()
}

func faultResponse(code int, description string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>
<faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>
<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
<errorCode>%d</errorCode><errorDescription>%s</errorDescription>
</UPnPError></detail></s:Fault></s:Body></s:Envelope>`, code, description)
}

func newTestClient(t *testing.T, s *soapServer, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return NewClient(domain.Render{Name: "test", ControlURL: srv.URL + "/control"}, nil, opts...)
}

func TestSetURIThenPlay(t *testing.T) {
	server := newSOAPServer(t)
	client := newTestClient(t, server)
	ctx := context.Background()

	if err := client.SetAVTransportURI(ctx, "http://10.0.0.2:9000/video", ""); err != nil {
		t.Fatalf("SetAVTransportURI: %v", err)
	}
	if err := client.Play(ctx); err != nil {
		t.Fatalf("Play: %v", err)
	}

	want := []string{actionSetURI, actionPlay}
	got := server.recorded()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("actions = %v, want %v", got, want)
	}
}

func TestTransportInfo(t *testing.T) {
	server := newSOAPServer(t)
	server.responses[actionTransportInfo] = okResponse(actionTransportInfo, map[string]string{
		"CurrentTransportState":  "PAUSED_PLAYBACK",
		"CurrentTransportStatus": "OK",
	})
	client := newTestClient(t, server)

	state, status, err := client.TransportInfo(context.Background())
	if err != nil {
		t.Fatalf("TransportInfo: %v", err)
	}
	if state != domain.TransportPaused {
		t.Errorf("state = %v, want paused", state)
	}
	if status != "OK" {
		t.Errorf("status = %q", status)
	}
}

func TestPositionInfo(t *testing.T) {
	server := newSOAPServer(t)
	server.responses[actionPositionInfo] = okResponse(actionPositionInfo, map[string]string{
		"RelTime":       "0:01:30",
		"TrackDuration": "1:30:00",
	})
	client := newTestClient(t, server)

	elapsed, duration, err := client.PositionInfo(context.Background())
	if err != nil {
		t.Fatalf("PositionInfo: %v", err)
	}
	if elapsed != 90*time.Second {
		t.Errorf("elapsed = %v", elapsed)
	}
	if duration != 90*time.Minute {
		t.Errorf("duration = %v", duration)
	}
}

func TestDeviceFaultMapping(t *testing.T) {
	server := newSOAPServer(t)
	server.faults[actionPlay] = faultResponse(718, "Invalid InstanceID")
	client := newTestClient(t, server)

	err := client.Play(context.Background())
	var cmdErr *domain.ControlCommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected ControlCommandError, got %v", err)
	}
	if cmdErr.Code != domain.CodeDeviceFault {
		t.Errorf("code = %q", cmdErr.Code)
	}
	if cmdErr.FaultCode != 718 {
		t.Errorf("fault code = %d, want 718", cmdErr.FaultCode)
	}
	if cmdErr.Action != actionPlay {
		t.Errorf("action = %q", cmdErr.Action)
	}
}

func TestStatusCallRetriesOnceOnTimeout(t *testing.T) {
	server := newSOAPServer(t)
	server.delays[actionTransportInfo] = 300 * time.Millisecond
	server.responses[actionTransportInfo] = okResponse(actionTransportInfo, map[string]string{
		"CurrentTransportState": "PLAYING",
	})
	client := newTestClient(t, server, WithCallTimeout(100*time.Millisecond))

	state, _, err := client.TransportInfo(context.Background())
	if err != nil {
		t.Fatalf("TransportInfo after retry: %v", err)
	}
	if state != domain.TransportPlaying {
		t.Errorf("state = %v", state)
	}
	if got := server.recorded(); len(got) != 2 {
		t.Errorf("exchanges = %d, want 2 (one retry)", len(got))
	}
}

func TestMutatingCallNeverRetries(t *testing.T) {
	server := newSOAPServer(t)
	server.delays[actionPlay] = 300 * time.Millisecond
	client := newTestClient(t, server, WithCallTimeout(100*time.Millisecond))

	err := client.Play(context.Background())
	var cmdErr *domain.ControlCommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != domain.CodeTimeout {
		t.Fatalf("expected TIMEOUT error, got %v", err)
	}
	if got := server.recorded(); len(got) != 1 {
		t.Errorf("exchanges = %d, want exactly 1", len(got))
	}
}

func TestFaultNeverRetried(t *testing.T) {
	server := newSOAPServer(t)
	server.faults[actionTransportInfo] = faultResponse(701, "Transition not available")
	client := newTestClient(t, server)

	_, _, err := client.TransportInfo(context.Background())
	var cmdErr *domain.ControlCommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != domain.CodeDeviceFault {
		t.Fatalf("expected DEVICE_FAULT, got %v", err)
	}
	if got := server.recorded(); len(got) != 1 {
		t.Errorf("exchanges = %d, want 1 (faults are final)", len(got))
	}
}
