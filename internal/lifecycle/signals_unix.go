//go:build !windows

// Package lifecycle lists the signals that should end a casting session.
package lifecycle

import (
	"os"
	"syscall"
)

func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
