package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentwire/agentwire/config"
	"github.com/agentwire/agentwire/proxy"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the bridge HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   "agentwire.yaml",
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "Listen address, overrides the config file",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload the config file when it changes",
				Value: true,
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	bootLog, err := buildLogger("info")
	if err != nil {
		return err
	}

	store, err := config.NewStore(c.String("config"), bootLog)
	if err != nil {
		return err
	}
	cfg := store.Current()

	log, err := buildLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	address := cfg.Server.Address
	if c.IsSet("address") {
		address = c.String("address")
	}

	handler := proxy.New(store, proxy.WithLogger(log))
	server := &http.Server{
		Addr:        address,
		Handler:     handler.Routes(),
		ReadTimeout: 10 * time.Second,
		// SSE streams stay open for the whole turn, no write timeout.
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting",
			zap.String("address", address),
			zap.Int("agents", len(cfg.Agents)),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if c.Bool("watch") {
		g.Go(func() error {
			err := store.Watch(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
