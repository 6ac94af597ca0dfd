package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mac-/eidetic/config"
	"github.com/mac-/eidetic/health"
	"github.com/mac-/eidetic/metric"
	"github.com/mac-/eidetic/pkg/cache"
	"github.com/mac-/eidetic/pkg/clone"
)

type healthChecker interface {
	Health() health.Status
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   appName,
		Short: "In-process key/value cache with expiry and LRU eviction",
		Long: `eidetic runs an in-process cache with absolute and sliding expiry,
a bounded size with least-recently-used eviction, and Prometheus metrics.
The serve command exposes the cache on an observability server and can
drive it with synthetic read-through traffic.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("EIDETIC_CONFIG"),
		"Path to a JSON or YAML configuration file (env: EIDETIC_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "",
		"Log format: json, text (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the configured file, or only defaults and environment
// when no path is given, and applies the logging flags on top.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		loader := config.NewLoader()
		loader.EnableValidation(true)
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cache behind the observability server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := setupLogger(cmd.OutOrStdout(), cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

// serve runs until ctx is cancelled or one of its parts fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()
	registry.CoreMetrics().RecordBuild(Version)

	name := cfg.Cache.Name
	if name == "" {
		name = appName
	}
	cacheCfg := cfg.Cache
	cacheCfg.Name = name

	options := []cache.Option[[]byte]{
		cache.WithLogger[[]byte](logger),
		cache.WithCopier[[]byte](clone.CopierFunc[[]byte](bytes.Clone)),
	}
	if cfg.Metrics.Enabled {
		options = append(options, cache.WithMetrics[[]byte](registry, name))
	}

	c, err := cache.NewFromConfig[[]byte](cacheCfg, options...)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("cache close failed", "error", err)
		}
		logger.Info("cache closed", "cache", name)
	}()

	logger.Info("eidetic starting",
		"cache", name,
		"max_size", cacheCfg.MaxSize,
		"can_put_when_full", cacheCfg.CanPutWhenFull,
		"default_duration", cacheCfg.DefaultDuration,
		"build_time", BuildTime)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, logger)
		// A disabled cache is a no-op without statistics.
		if stats := c.Stats(); stats != nil {
			server.Attach(name, func() any { return stats.Summary() })
		}
		if checker, ok := c.(healthChecker); ok {
			server.Health().Register(name, checker.Health)
		} else {
			server.Health().UpdateHealthy(name, "caching disabled")
		}
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	if cfg.Workload.Enabled {
		w := newWorkload(c, cfg.Workload, logger)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if stats := c.Stats(); stats != nil {
		summary := stats.Summary()
		logger.Info("eidetic stopped",
			"hits", summary.Hits,
			"misses", summary.Misses,
			"evictions", summary.Evictions,
			"expirations", summary.Expirations)
	}
	return nil
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(opts); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", appName, Version, BuildTime)
			return err
		},
	}
}
