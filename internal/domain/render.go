package domain

import "strings"

// Render is a discovered playback-capable device. Values are immutable after
// creation and safe to share across goroutines.
type Render struct {
	// Name is the device friendly name from its descriptor.
	Name string
	// UDN is the unique device name (uuid:...) used for deduplication.
	UDN string
	// Location is the device-description URL the device answered with.
	Location string
	// ControlURL is the absolute AVTransport control endpoint.
	ControlURL string
}

func (r Render) String() string {
	return "[" + r.UDN + "] " + r.Name + " @ " + r.Location
}

// RenderSpecKind selects the resolution strategy for a RenderSpec.
type RenderSpecKind int

const (
	// SpecExplicitAddress resolves a single descriptor URL directly,
	// without any discovery scan.
	SpecExplicitAddress RenderSpecKind = iota
	// SpecNameQuery discovers and picks the first device whose friendly
	// name contains the query, case-insensitively.
	SpecNameQuery
	// SpecFirst discovers and picks the first device in response order.
	SpecFirst
	// SpecAll discovers and returns every device, for listing.
	SpecAll
)

// RenderSpec is a request to resolve one or more renders.
type RenderSpec struct {
	Kind    RenderSpecKind
	Address string
	Query   string
	// TimeoutSeconds bounds the discovery scan for the kinds that need one.
	TimeoutSeconds int
}

func (s RenderSpec) String() string {
	switch s.Kind {
	case SpecExplicitAddress:
		return "address " + s.Address
	case SpecNameQuery:
		return "query " + strings.ToLower(s.Query)
	case SpecFirst:
		return "first discovered"
	case SpecAll:
		return "all discovered"
	default:
		return "unknown spec"
	}
}
