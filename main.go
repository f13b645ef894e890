package main

import (
	"runtime/debug"

	"github.com/joho/godotenv"

	"github.com/marcus/vsync/cmd"
)

// Version may be set at build time via -ldflags "-X main.Version=...".
// If left as "dev", we will attempt to derive a version from Go build info.
var Version = "dev"

func effectiveVersion(v string) string {
	if v != "" && v != "dev" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return v
	}
	// When installed via `go install module@vX.Y.Z`, this will typically
	// be `vX.Y.Z`.
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return v
}

func main() {
	// Missing .env files are fine; the config file stands on its own.
	_ = godotenv.Load()

	cmd.SetVersion(effectiveVersion(Version))
	cmd.Execute()
}
