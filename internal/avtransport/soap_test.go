package avtransport

import (
	"strings"
	"testing"
	"time"
)

func TestParseClockValue(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"0:00:00", 0},
		{"0:01:30", 90 * time.Second},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{"12:00:00", 12 * time.Hour},
		{"0:00:01.500", 1500 * time.Millisecond},
		{"NOT_IMPLEMENTED", 0},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := parseClockValue(tc.in); got != tc.want {
			t.Errorf("parseClockValue(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{90 * time.Second, "0:01:30"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-time.Second, "0:00:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.in); got != tc.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseEnvelopeValues(t *testing.T) {
	body := `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <u:GetTransportInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">
      <CurrentTransportState>PLAYING</CurrentTransportState>
      <CurrentTransportStatus>OK</CurrentTransportStatus>
    </u:GetTransportInfoResponse>
  </s:Body>
</s:Envelope>`

	values, fault, err := parseEnvelope(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if values["CurrentTransportState"] != "PLAYING" {
		t.Errorf("CurrentTransportState = %q", values["CurrentTransportState"])
	}
	if values["CurrentTransportStatus"] != "OK" {
		t.Errorf("CurrentTransportStatus = %q", values["CurrentTransportStatus"])
	}
}

func TestParseEnvelopeFault(t *testing.T) {
	body := `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <s:Fault>
      <faultcode>s:Client</faultcode>
      <faultstring>UPnPError</faultstring>
      <detail>
        <UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
          <errorCode>718</errorCode>
          <errorDescription>Invalid InstanceID</errorDescription>
        </UPnPError>
      </detail>
    </s:Fault>
  </s:Body>
</s:Envelope>`

	_, fault, err := parseEnvelope(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if fault == nil {
		t.Fatal("expected fault")
	}
	if fault.Code != 718 {
		t.Errorf("fault code = %d, want 718", fault.Code)
	}
	if fault.Description != "UPnPError" && fault.Description != "Invalid InstanceID" {
		t.Errorf("fault description = %q", fault.Description)
	}
}

func TestBuildEnvelopeEscapesArguments(t *testing.T) {
	env := buildEnvelope(actionSetURI, []soapArg{
		{name: "CurrentURI", value: `http://host/video?a=1&b=<2>`},
	})
	if strings.Contains(env, "&b=<2>") {
		t.Error("argument value not escaped")
	}
	if !strings.Contains(env, "&amp;b=&lt;2&gt;") {
		t.Errorf("escaped value missing from envelope:\n%s", env)
	}
	if !strings.Contains(env, `<u:SetAVTransportURI xmlns:u="`+serviceType+`">`) {
		t.Errorf("action element missing:\n%s", env)
	}
}

func TestBuildMetadata(t *testing.T) {
	t.Run("no subtitle means empty metadata", func(t *testing.T) {
		meta := BuildMetadata(MediaItem{VideoURL: "http://h/video", VideoType: "mp4"})
		if meta != "" {
			t.Errorf("metadata = %q, want empty", meta)
		}
	})

	t.Run("subtitle announced through every channel", func(t *testing.T) {
		meta := BuildMetadata(MediaItem{
			VideoURL:     "http://h/video",
			VideoType:    "mkv",
			SubtitleURL:  "http://h/subtitle",
			SubtitleType: "srt",
		})
		for _, want := range []string{
			`pv:subtitleFileUri="http://h/subtitle"`,
			"<sec:CaptionInfoEx",
			"<sec:CaptionInfo",
			"video/mkv",
			"object.item.videoItem.movie",
		} {
			if !strings.Contains(meta, want) {
				t.Errorf("metadata missing %q:\n%s", want, meta)
			}
		}
	})
}
