package version

// Version is the current version of the argo-backfill library.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-backfill/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// SchemaVersion is the version of the candle cache schema written by this
// build. Stored in the cache metadata table and checked on open.
const SchemaVersion = "1.0.0"

// GetVersion returns the current version of the library.
func GetVersion() string {
	return Version
}
