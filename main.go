package main

import (
	"github.com/joho/godotenv"

	"github.com/teemow/conflictfewer/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	// Load a local .env if present; real deployments use the environment.
	_ = godotenv.Load()

	// Set the version from build-time variable
	cmd.SetVersion(version)

	// Execute the root command
	cmd.Execute()
}
