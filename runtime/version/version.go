// Package version reports the VoiceKit build. The variables below are set
// at build time:
//
//	go build -ldflags "-X github.com/AltairaLabs/VoiceKit/runtime/version.version=1.0.0"
package version

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// Info describes the running binary.
type Info struct {
	Version string
	Commit  string
	Dirty   bool
	Built   string
}

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get collects version details from the ldflags variables, falling back to
// the module build info.
func Get() Info {
	info := Info{Version: version, Commit: gitCommit, Built: buildDate}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if gitCommit != "" {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == vcsRevisionKey && s.Value != "":
			info.Commit = s.Value[:min(shortCommitLen, len(s.Value))]
		case s.Key == vcsModifiedKey && s.Value == "true":
			info.Dirty = true
		}
	}
	return info
}

// GetVersion returns the version string.
func GetVersion() string { return Get().Version }

// String renders the multi-line form printed by "voicekit version".
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "voicekit version %s", i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", i.Commit)
		if i.Dirty {
			b.WriteString(" (dirty)")
		}
	}
	if i.Built != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", i.Built)
	}
	return b.String()
}

// Attrs returns the details as slog key/value pairs.
func (i Info) Attrs() []any {
	attrs := []any{"version", i.Version}
	if i.Commit != "" {
		attrs = append(attrs, "commit", i.Commit)
	}
	if i.Dirty {
		attrs = append(attrs, "dirty", true)
	}
	if i.Built != "" {
		attrs = append(attrs, "built", i.Built)
	}
	return attrs
}

// LogStartup records the build at debug level.
func LogStartup(ctx context.Context) {
	logger.DebugContext(ctx, "VoiceKit starting", Get().Attrs()...)
}
