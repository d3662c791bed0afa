// Package buildinfo carries version metadata stamped at build time.
package buildinfo

// Version is overridden through -ldflags on release builds.
var Version = "dev"
