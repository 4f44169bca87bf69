package version

// Set at link time with -ldflags "-X github.com/cuidar/medstock/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
