// Package version carries build-time identification, set via linker flags
// the same way the teacher's cmd entrypoint does it. The process entrypoint
// itself is out of scope here; this package only holds the variables.
package version

import "fmt"

// Version is the service's released version. Overridden at build time:
//
//	go build -ldflags "-X github.com/jonatasporto/trinks-router/internal/version.Version=v1.2.0"
var Version = "0.0.0-dev"

// GitCommit is the commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// String returns the version string with a short commit suffix when known.
func String() string {
	if GitCommit != "" && GitCommit != "unknown" {
		short := GitCommit
		if len(short) > 8 {
			short = short[:8]
		}
		return fmt.Sprintf("%s-%s", Version, short)
	}
	return Version
}
