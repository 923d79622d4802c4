package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/perchbrowser/perch/cmd/perch"
	"github.com/perchbrowser/perch/internal/config"
)

//go:embed etc/perch.yaml
var embeddedConfig []byte

// version is stamped via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	boot, err := config.LoadBootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read environment: %v\n", err)
		os.Exit(1)
	}

	cli.BuildVersion = version
	if err := cli.SetupRootCmd(embeddedConfig, boot).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
