package domain

import "fmt"

// Error codes shared across the error types below. Codes are stable strings
// so callers can branch without string-matching messages.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidAddress  = "INVALID_ADDRESS"
	CodeBindFailed      = "BIND_FAILED"
	CodeFileUnreadable  = "FILE_UNREADABLE"
	CodeTimeout         = "TIMEOUT"
	CodeDeviceFault     = "DEVICE_FAULT"
	CodeNetwork         = "NETWORK"
	CodeEmpty           = "EMPTY"
	CodeIndexOutOfBound = "INDEX_OUT_OF_BOUNDS"
)

// DiscoveryError reports a failed discovery scan: no usable network or a
// multicast send failure. Zero discovered devices is not a DiscoveryError.
type DiscoveryError struct {
	Op  string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ResolutionError reports that a RenderSpec could not be turned into a
// render handle.
type ResolutionError struct {
	Code    string
	Spec    RenderSpec
	Message string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %s: %s", e.Spec, e.Code, e.Message)
}

// IsNotFound reports whether err is a ResolutionError with CodeNotFound.
func IsNotFound(err error) bool {
	re, ok := err.(*ResolutionError)
	return ok && re.Code == CodeNotFound
}

// StreamingServerError reports a media server startup failure.
type StreamingServerError struct {
	Code    string
	Message string
	Err     error
}

func (e *StreamingServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("streaming server: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("streaming server: %s: %s", e.Code, e.Message)
}

func (e *StreamingServerError) Unwrap() error { return e.Err }

// ControlCommandError reports a failed AVTransport action. FaultCode and
// FaultMessage are set when the device answered with a UPnP fault; Err is
// set when the exchange itself failed.
type ControlCommandError struct {
	Action       string
	Code         string
	FaultCode    int
	FaultMessage string
	Err          error
}

func (e *ControlCommandError) Error() string {
	switch e.Code {
	case CodeDeviceFault:
		return fmt.Sprintf("%s: device fault %d: %s", e.Action, e.FaultCode, e.FaultMessage)
	case CodeTimeout:
		return fmt.Sprintf("%s: timed out: %v", e.Action, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
}

func (e *ControlCommandError) Unwrap() error { return e.Err }

// PlaylistError reports an invalid playlist construction or navigation.
type PlaylistError struct {
	Code    string
	Message string
}

func (e *PlaylistError) Error() string {
	return fmt.Sprintf("playlist: %s: %s", e.Code, e.Message)
}
