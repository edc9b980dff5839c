// Package version reports build information set at link time with
//
//	-ldflags "-X github.com/thecopy-and-thepaste/DA/pkg/version.version=v1.0.0"
package version

import "runtime/debug"

//nolint:gochecknoglobals // set via -ldflags -X
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the release version. When it was not set at link time,
// the module version recorded by the Go toolchain is used if available.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// GetCommit returns the git commit the binary was built from.
func GetCommit() string {
	return commit
}

// GetBuildDate returns the build timestamp.
func GetBuildDate() string {
	return buildDate
}
