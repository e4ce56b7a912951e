// Package main provides the agentwire server entrypoint.
//
// agentwire bridges browser chat frontends to remote A2A agents: it relays
// agent SSE streams, translates them to AG-UI events, and keeps API keys
// server-side.
//
// Usage:
//
//	agentwire serve --config agentwire.yaml
//	agentwire card --url https://agent.example/a2a
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// Version is set via ldflags at build time.
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "agentwire",
		Usage:   "Agent-to-chat-UI streaming bridge",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "Path to an env file loaded before anything else",
				Value: ".env",
			},
		},
		Before: func(c *cli.Context) error {
			// Missing env file is the normal case outside development.
			if err := godotenv.Load(c.String("env")); err != nil && c.IsSet("env") {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			cardCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
