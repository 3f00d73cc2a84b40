package main

import (
	"context"
	"os"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/cmd"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
