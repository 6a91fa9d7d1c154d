package version

var (
	// Version is the current application version. It is rewritten by the
	// release tool.
	Version = "0.1.0"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the version line printed by `mutools version`.
func String() string {
	return "mutools " + Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
