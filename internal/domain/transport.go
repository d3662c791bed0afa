package domain

import "strings"

// TransportState is the playback state reported by a render device. It is
// only ever sourced from polling the device, never assigned speculatively.
type TransportState string

const (
	TransportUnknown        TransportState = ""
	TransportStopped        TransportState = "STOPPED"
	TransportPlaying        TransportState = "PLAYING"
	TransportPaused         TransportState = "PAUSED"
	TransportTransitioning  TransportState = "TRANSITIONING"
	TransportNoMediaPresent TransportState = "NO_MEDIA_PRESENT"
	TransportError          TransportState = "ERROR"
)

// ParseTransportState maps a device-reported CurrentTransportState value to
// a TransportState. Devices report paused playback and paused recording as
// distinct states; both collapse to TransportPaused.
func ParseTransportState(raw string) TransportState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "STOPPED":
		return TransportStopped
	case "PLAYING":
		return TransportPlaying
	case "PAUSED_PLAYBACK", "PAUSED_RECORDING", "PAUSED":
		return TransportPaused
	case "TRANSITIONING":
		return TransportTransitioning
	case "NO_MEDIA_PRESENT":
		return TransportNoMediaPresent
	case "":
		return TransportUnknown
	default:
		return TransportError
	}
}

// Ended reports whether the state means the device finished or dropped the
// current media.
func (s TransportState) Ended() bool {
	return s == TransportStopped || s == TransportNoMediaPresent
}
