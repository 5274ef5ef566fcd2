// Package version holds build information, set at link time with
//
//	-ldflags "-X github.com/mycophonic/flake/version.version=..."
package version

//nolint:gochecknoglobals // set by the linker.
var (
	name    = "flake"
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Name returns the binary name.
func Name() string { return name }

// String returns the release version with the revision and date it was built from.
func String() string {
	return version + " (" + commit + " - " + date + ")"
}
