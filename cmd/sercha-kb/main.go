package main

import (
	"os"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-kb/internal/config"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Loading .env: %v", err)
	}
	if err := cli.Execute(version); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
