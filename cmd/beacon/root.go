package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/etwodev/beacon"
	"github.com/etwodev/beacon/config"
	"github.com/etwodev/beacon/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "beacon",
		Short: "beacon - TCP listener with a fixed response",
		Long: `
beacon binds a TCP address, retrying with exponential backoff until it
succeeds or runs out of attempts, then answers every chunk of data a client
sends with the same configured response.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", config.CONFIG_PATH, "config file, created with defaults if missing")
	cmd.Flags().StringP("address", "a", "", "bind address, host:port")
	cmd.Flags().String("engine", "", "connection engine: goroutine or eventloop")
	cmd.Flags().String("log-level", "", "log level")
	_ = v.BindPFlag("address", cmd.Flags().Lookup("address"))
	_ = v.BindPFlag("engine", cmd.Flags().Lookup("engine"))
	_ = v.BindPFlag("logLevel", cmd.Flags().Lookup("log-level"))

	return cmd
}

// run serves until a fatal error or SIGINT/SIGTERM, then shuts down within the
// configured timeout.
func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logger := log.New(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	srv, err := beacon.New(cfg, beacon.WithLogger(logger))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
