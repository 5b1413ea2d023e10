// Package version carries the build version stamped in at link time.
package version

// Version is overridden by the release pipeline via
// -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "main"
