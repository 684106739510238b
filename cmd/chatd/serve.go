package main

import (
	"context"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/auth"
	"github.com/Tyrowin/chatd/internal/directory"
	"github.com/Tyrowin/chatd/internal/logging"
	"github.com/Tyrowin/chatd/internal/messages"
	"github.com/Tyrowin/chatd/internal/relay"
	"github.com/Tyrowin/chatd/internal/server"
	"github.com/Tyrowin/chatd/internal/store/memory"
	"github.com/Tyrowin/chatd/internal/store/postgres"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Long: "Run the chat server. Settings come from the environment " +
			"(SERVER_PORT, JWT_SECRET, DATABASE_URL, REDIS_ADDR, NATS_URL, ...) and flags override them.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := server.NewConfigFromEnv()
			applyServeFlags(cmd, cfg)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("port", "", "listen address, e.g. :8080")
	cmd.Flags().StringSlice("allowed-origins", nil, "WebSocket origin allow-list; * allows any")
	cmd.Flags().String("database-url", "", "Postgres URL; empty runs on an in-memory store")
	cmd.Flags().String("redis-addr", "", "Redis address for the directory cache")
	cmd.Flags().String("nats-url", "", "NATS URL for channel announcements")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().String("log-format", "", "console or json")
	return cmd
}

func applyServeFlags(cmd *cobra.Command, cfg *server.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	if flags.Changed("allowed-origins") {
		cfg.AllowedOrigins, _ = flags.GetStringSlice("allowed-origins")
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL, _ = flags.GetString("database-url")
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("nats-url") {
		cfg.NATS.URL, _ = flags.GetString("nats-url")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
}

type backend interface {
	messages.Store
	directory.Directory
}

func serve(ctx context.Context, cfg *server.Config) (err error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	// core owns everything the "server" shutdown operation releases; on a
	// startup failure it releases whatever was acquired so far.
	core := newTeardown(logger)
	started := false
	defer func() {
		if err != nil && !started {
			err = multierr.Append(err, core.run(context.Background()))
		}
	}()

	var store backend
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using an in-memory store where every user may join every channel")
		store = memory.NewOpen()
	} else {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		store = pg
		core.add("postgres", func(context.Context) error {
			pg.Close()
			return nil
		})
	}

	var dir directory.Directory = store
	if cfg.Redis.Addr != "" {
		rdb, err := directory.NewRedisClient(ctx, directory.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		core.add("redis", func(context.Context) error { return rdb.Close() })
		dir = directory.NewCache(store, rdb, cfg.DirectoryCacheTTL, logger)
		logger.Info("directory cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	srv := server.New(*cfg, server.Deps{
		Authenticator: auth.NewAuthenticator([]byte(cfg.JWTSecret)),
		Store:         store,
		Directory:     dir,
		Logger:        logger,
	})
	srv.Start()
	core.add("hub", func(context.Context) error { return srv.Shutdown(cfg.ShutdownTimeout) })

	relayDown := newTeardown(logger)
	if cfg.NATS.URL != "" {
		nc, err := relay.Connect(cfg.NATS.URL, "chatd", logger)
		if err != nil {
			return err
		}
		relayDown.add("nats", func(context.Context) error { return nc.Drain() })
		sub, err := relay.Subscribe(nc, cfg.NATS.Subject, srv.Relay(), logger)
		if err != nil {
			nc.Close()
			return err
		}
		relayDown.add("subscription", func(context.Context) error { return sub.Close() })
	}

	httpServer := server.CreateServer(cfg.Port, srv.Handler())
	core.add("http", func(ctx context.Context) error { return server.ShutdownServer(ctx, httpServer, logger) })
	go func() {
		if err := server.StartServer(httpServer, logger); err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
			p, _ := os.FindProcess(os.Getpid())
			_ = p.Signal(os.Interrupt)
		}
	}()

	operations := map[string]gfshutdown.Operation{
		"server": core.run,
	}
	if len(relayDown.steps) > 0 {
		operations["relay"] = relayDown.run
	}

	started = true
	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, operations)
	exitCode := <-wait
	logger.Info("chatd exited", zap.Int("code", exitCode))
	if exitCode != 0 {
		return errors.Errorf("shutdown finished with code %d", exitCode)
	}
	return nil
}
