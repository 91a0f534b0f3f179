package config

import "fmt"

// Set with -ldflags, for example:
//
//	go build -ldflags "-X greenquote/internal/config.version=1.2.3 \
//	    -X greenquote/internal/config.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// String renders the build as "version (commit, time)" for startup logs and
// the CLI version flag.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Commit, b.BuildTime)
}
