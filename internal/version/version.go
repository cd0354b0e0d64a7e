package version

// Version is the semantic version reported by /health (set by ldflags).
var Version = "0.1.0"
