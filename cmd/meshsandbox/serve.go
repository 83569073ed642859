package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbaliyan/meshsandbox"
	"github.com/rbaliyan/meshsandbox/config"
	"github.com/rbaliyan/meshsandbox/store"
	"github.com/rbaliyan/meshsandbox/store/file"
	"github.com/rbaliyan/meshsandbox/store/fixture"
	"github.com/rbaliyan/meshsandbox/store/memory"
	"github.com/rbaliyan/meshsandbox/transport/httpapi"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "", "listen address (default :8700)")
	f.String("store-mode", "", "store mode: canned, memory or file")
	f.String("auth-mode", "", "auth mode: none, canned or full")
	f.String("file-store-dir", "", "directory of the file store")

	_ = viper.BindPFlag("http.addr", f.Lookup("addr"))
	_ = viper.BindPFlag("store_mode", f.Lookup("store-mode"))
	_ = viper.BindPFlag("auth_mode", f.Lookup("auth-mode"))
	_ = viper.BindPFlag("file_store_dir", f.Lookup("file-store-dir"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting meshsandbox", "config", cfg)

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	opts := []meshsandbox.Option{
		meshsandbox.WithStore(st),
		meshsandbox.WithLogger(logger),
		meshsandbox.WithAuthMode(cfg.Auth()),
		meshsandbox.WithSharedKey(cfg.SharedKey),
		meshsandbox.WithInboxRetention(cfg.InboxRetention()),
		meshsandbox.WithTracing(cfg.Telemetry.Tracing),
		meshsandbox.WithMetrics(cfg.Telemetry.Metrics),
		meshsandbox.WithServiceName(cfg.Telemetry.ServiceName),
		meshsandbox.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		meshsandbox.WithEventErrorsFatal(cfg.Events.Fatal),
	}
	if cfg.Events.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Events.RedisAddr,
			Password: cfg.Events.RedisPassword,
			DB:       cfg.Events.RedisDB,
		})
		defer client.Close()
		opts = append(opts, meshsandbox.WithRedisClient(client))
	}

	engine, err := meshsandbox.NewEngine(opts...)
	if err != nil {
		_ = st.Close(context.Background())
		return fmt.Errorf("create engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Connect(ctx); err != nil {
		_ = st.Close(context.Background())
		return fmt.Errorf("connect engine: %w", err)
	}

	srv := httpapi.New(engine,
		httpapi.WithLogger(logger),
		httpapi.WithEnv(cfg.Env),
		httpapi.WithBuildLabel(cfg.BuildLabel),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.HTTP.Addr) }()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := engine.Close(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("close engine: %w", err))
	}
	logger.Info("stopped")
	return serveErr
}

// openStore builds the store for the configured mode. Canned data is
// read-only; memory and file modes start from the mailboxes and workflows
// with empty boxes.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var fixtureOpts []fixture.Option
	if cfg.StoreMode != config.StoreCanned {
		fixtureOpts = append(fixtureOpts, fixture.WithoutMessages())
	}

	var (
		ds  *store.Dataset
		err error
	)
	if cfg.FixtureDir != "" {
		ds, err = fixture.LoadDir(cfg.FixtureDir, fixtureOpts...)
	} else {
		ds, err = fixture.Load(fixtureOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}

	var persistence store.Persistence
	switch cfg.StoreMode {
	case config.StoreCanned:
		persistence = memory.ReadOnly()
	case config.StoreMemory:
		persistence = memory.NewChunkStore()
	case config.StoreFile:
		fs, err := file.New(cfg.FileStoreDir,
			file.WithRetention(cfg.MessageRetention()),
			file.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		persistence = fs
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStoreMode, cfg.StoreMode)
	}

	logger.Info("store opened",
		"mode", cfg.StoreMode,
		"mailboxes", len(ds.Mailboxes),
		"workflows", len(ds.Workflows),
		"messages", len(ds.Messages),
	)
	return memory.New(ds,
		memory.WithPersistence(persistence),
		memory.WithLogger(logger),
	), nil
}
