// Package version carries build metadata injected by the linker:
//
//	go build -ldflags "-X github.com/rickgao/athlete-live/internal/version.Version=0.3.0 \
//	                   -X github.com/rickgao/athlete-live/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/athlete-live/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/parentview
package version

import "runtime/debug"

var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Revision returns the commit the binary was built from. Without ldflags it
// falls back to the VCS stamp the go tool embeds, then to "unknown".
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}

// LogAttrs returns the build metadata as slog key/value pairs.
func LogAttrs() []any {
	attrs := []any{"version", Version, "commit", Revision()}
	if BuildTime != "" {
		attrs = append(attrs, "built", BuildTime)
	}
	return attrs
}
