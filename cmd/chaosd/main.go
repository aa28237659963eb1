// chaosd hosts the fault-injection engine behind a small admin API. It is a
// reference deployment of the library in internal/chaos; services normally
// embed the engine in-process instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Greg89/normaize-server-sub004/internal/api"
	"github.com/Greg89/normaize-server-sub004/internal/chaos"
	"github.com/Greg89/normaize-server-sub004/internal/config"
	"github.com/Greg89/normaize-server-sub004/internal/logging"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "chaosd",
		Short: "Fault-injection decision engine",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "chaosd.yaml", "path to configuration file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Encoding:   cfg.Logging.Encoding,
		OutputPath: cfg.Logging.OutputPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	manager := config.NewManager(logger.Named("config"), configPath)
	if err := manager.Load(); err != nil {
		return err
	}
	if err := manager.Watch(); err != nil {
		return err
	}
	defer manager.Close()

	metrics := chaos.NewMetrics("chaosd")
	engine := chaos.NewEngine(manager, logger.Named("chaos"), chaos.WithMetrics(metrics))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.API.Enabled {
		logger.Info("admin API disabled, running engine only")
		<-ctx.Done()
		return nil
	}

	server, err := api.NewServer(api.Config{
		Enabled:    cfg.API.Enabled,
		ListenAddr: cfg.API.ListenAddr,
		RateLimit:  cfg.API.RateLimit,
		RateBurst:  cfg.API.RateBurst,
	}, logger.Named("api"), engine, manager, metrics)
	if err != nil {
		return err
	}

	logger.Info("chaosd starting",
		zap.String("environment", manager.Current().Environment),
		zap.Bool("chaos_enabled", manager.Current().Global.Enabled),
	)
	return server.Start(ctx)
}
