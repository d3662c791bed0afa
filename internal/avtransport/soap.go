package avtransport

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type soapArg struct {
	name  string
	value string
}

// soapFault is a UPnP error returned inside a SOAP fault detail block.
type soapFault struct {
	Code        int
	Description string
}

func (f *soapFault) Error() string {
	return fmt.Sprintf("UPnP fault %d: %s", f.Code, f.Description)
}

func buildEnvelope(action string, args []soapArg) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	b.WriteString(`<s:Body><u:`)
	b.WriteString(action)
	b.WriteString(` xmlns:u="`)
	b.WriteString(serviceType)
	b.WriteString(`">`)
	for _, arg := range args {
		b.WriteString("<")
		b.WriteString(arg.name)
		b.WriteString(">")
		b.WriteString(escapeXML(arg.value))
		b.WriteString("</")
		b.WriteString(arg.name)
		b.WriteString(">")
	}
	b.WriteString(`</u:`)
	b.WriteString(action)
	b.WriteString(`></s:Body></s:Envelope>`)
	return b.String()
}

// parseEnvelope flattens the response body into leaf-element values keyed by
// local name. Renderers disagree on namespacing, so only local names are
// trusted. A fault block, when present, wins over the value map.
func parseEnvelope(r io.Reader) (map[string]string, *soapFault, error) {
	decoder := xml.NewDecoder(r)
	values := make(map[string]string)

	var (
		current  string
		inFault  bool
		fault    soapFault
		sawFault bool
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse control response: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			current = t.Name.Local
			if current == "Fault" {
				inFault = true
				sawFault = true
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || current == "" {
				continue
			}
			if inFault {
				switch current {
				case "errorCode":
					fault.Code, _ = strconv.Atoi(text)
				case "errorDescription", "faultstring":
					if fault.Description == "" {
						fault.Description = text
					}
				}
				continue
			}
			values[current] = text
		case xml.EndElement:
			current = ""
		}
	}

	if sawFault {
		return nil, &fault, nil
	}
	return values, nil, nil
}

func escapeXML(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

// parseClockValue parses the H+:MM:SS[.fraction] clock format AVTransport
// uses for RelTime and TrackDuration. Unimplemented values such as
// "NOT_IMPLEMENTED" or empty strings parse to zero.
func parseClockValue(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "NOT_IMPLEMENTED") {
		return 0
	}

	var fraction time.Duration
	if dot := strings.IndexByte(raw, '.'); dot >= 0 {
		if f, err := strconv.ParseFloat("0"+raw[dot:], 64); err == nil {
			fraction = time.Duration(f * float64(time.Second))
		}
		raw = raw[:dot]
	}

	parts := strings.Split(raw, ":")
	total := time.Duration(0)
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total + fraction
}

// FormatClock renders a duration in the H:MM:SS form AVTransport uses, for
// log output and UI display.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
