package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/agentwire/agentwire/card"
)

func cardCommand() *cli.Command {
	return &cli.Command{
		Name:  "card",
		Usage: "Fetch, validate, and print an agent card",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Usage:    "Agent base URL",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			fetcher := card.NewFetcher()
			crd, err := fetcher.Fetch(c.Context, c.String("url"))
			if err != nil {
				return fmt.Errorf("fetch agent card: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(crd)
		},
	}
}
