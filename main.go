package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oaiiae/contacts-vcf/cli/api"
	"github.com/oaiiae/contacts-vcf/cli/logger"
	"github.com/oaiiae/contacts-vcf/datastores"
)

// Set with -ldflags "-X main.version=...".
var (
	title    = "contacts"
	version  = "dev"
	revision = ""
	created  = ""
)

// Options for the CLI. Pass `--port` or set the `SERVICE_PORT` env var,
// variables are also read from a .env file in the working directory.
type Options struct {
	logger.Options
	api.ServerOptions
	api.RouterOptions
	api.StoreOptions
}

func main() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "err", err)
	}

	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		logger := logger.New(&options.Options)
		metriks := metrics.NewSet()

		store, err := api.NewStore(&options.StoreOptions, metriks, logger)
		if err != nil {
			logger.Error("failed to open contacts store", "err", err)
			os.Exit(1)
		}

		srv := api.NewServer(&options.ServerOptions,
			api.NewRouter(&options.RouterOptions, title, version, revision, created, store, metriks, logger),
			logger,
		)
		hooks.OnStart(func() {
			logger.Info("listening", "addr", srv.Addr, "dir", store.Root(), "version", version)
			err := srv.ListenAndServe()
			if err != http.ErrServerClosed {
				logger.Error("failed to listen and serve", "err", err)
			} else {
				logger.Info("server closed")
			}
		})
		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			err := srv.Shutdown(ctx)
			if err != nil {
				logger.Warn("could not shutdown the server", "err", err)
			}
		})
	})

	cli.Root().Use = title
	cli.Root().Version = version
	cli.Root().AddCommand(&cobra.Command{
		Use:   "check",
		Short: "List the contact cards and report the ones that cannot be read",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, options *Options) {
			err := check(cmd, options)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(1)
			}
		}),
	})
	cli.Run()
}

func check(cmd *cobra.Command, options *Options) error {
	store, err := api.NewStore(&options.StoreOptions, metrics.NewSet(), slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}

	var skipped int
	store.OnSkip = func(name string, err error) {
		skipped++
		fmt.Fprintf(cmd.OutOrStdout(), "skip\t%s\t%v\n", name, err)
	}

	contacts, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, c := range contacts {
		fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s%s\t%s\n", c.ID, datastores.CardExt, c.Name)
	}

	if skipped > 0 {
		return fmt.Errorf("%d of %d cards could not be read", skipped, skipped+len(contacts))
	}
	return nil
}
