// parentview connects to the realtime server, performs the parent_view
// token handshake and prints every inbound message.
// Usage: go run ./cmd/parentview --config configs/parentview.example.yaml --token <token>
//
// The token may also be supplied through ATHLETE_LIVE_PARENT_TOKEN.
// SIGUSR1 suspends automatic reconnection and SIGUSR2 resumes it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/athlete-live/internal/config"
	"github.com/rickgao/athlete-live/internal/connection"
	"github.com/rickgao/athlete-live/internal/database"
	"github.com/rickgao/athlete-live/internal/metrics"
	"github.com/rickgao/athlete-live/internal/model"
	"github.com/rickgao/athlete-live/internal/queue"
	"github.com/rickgao/athlete-live/internal/version"
)

const tokenEnv = "ATHLETE_LIVE_PARENT_TOKEN"

func main() {
	configPath := flag.String("config", "configs/parentview.example.yaml", "path to config file")
	token := flag.String("token", os.Getenv(tokenEnv), "parent view token")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting parentview",
		append(version.LogAttrs(), "config", *configPath)...,
	)

	if err := run(cfg, *token, *verbose, logger); err != nil {
		logger.Error("parentview failed", "error", err)
		os.Exit(1)
	}
	logger.Info("parentview stopped")
}

func run(cfg *config.ClientConfig, token string, verbose bool, logger *slog.Logger) error {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("athlete_live")
	}

	// Pending queue, optionally mirrored to Postgres
	var (
		store queue.Store
		pool  *pgxpool.Pool
	)
	if cfg.Queue.Persist {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := queue.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
	}

	policy, err := queue.ParsePolicy(cfg.Queue.Overflow)
	if err != nil {
		return err
	}
	qcfg := queue.DefaultConfig()
	qcfg.Capacity = cfg.Queue.Capacity
	qcfg.Overflow = policy
	pending := queue.New(qcfg, store, logger)
	defer pending.Close()

	if n, err := pending.Restore(ctx); err != nil {
		logger.Warn("failed to restore pending messages", "error", err)
	} else if n > 0 {
		logger.Info("restored pending messages", "count", n)
	}

	clientCfg := connection.ClientConfig{
		URL:              endpoint,
		Origin:           cfg.HandshakeOrigin(),
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		PingInterval:     cfg.Connection.KeepAliveInterval,
		PingTimeout:      cfg.Connection.PongTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
		BufferSize:       cfg.Connection.ReadBufferSize,
	}
	managerCfg := connection.ManagerConfig{
		ReconnectDelay:    cfg.Connection.ReconnectDelay,
		KeepAliveInterval: cfg.Connection.KeepAliveInterval,
		RetryCount:        cfg.Send.Retries(),
		RetryDelay:        cfg.Send.RetryDelay,
	}

	mgr := connection.NewManager(managerCfg,
		connection.NewClientFactory(clientCfg, logger),
		pending,
		logger,
		connection.WithMetrics(collector),
	)
	defer mgr.Close()

	mgr.OnStateChange(func(old, new connection.State) {
		logger.Info("connection state", "from", old, "to", new)
	})
	mgr.Subscribe(printer(verbose))

	logger.Info("connecting", "url", endpoint)
	mgr.Connect()

	if token != "" {
		mgr.AuthenticateParentView(token)
	} else {
		logger.Warn("no parent view token given, listening only", "env", tokenEnv)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return handleVisibilitySignals(ctx, mgr, logger)
	})

	if cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           newStatusHandler(cfg.Metrics.Path, collector, mgr, pool),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down...")
		st := mgr.Status()
		if err := mgr.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
		// Let the store writer persist what is still pending before the
		// pool goes away.
		pending.Close()

		ds := mgr.Dispatcher().Stats()
		logger.Info("final status",
			"state", st.State,
			"pending", st.QueueDepth,
			"keepalive_pings", mgr.KeepAliveStats().Pings,
			"frames", ds.FramesReceived,
			"parse_errors", ds.ParseErrors,
		)
		return nil
	})

	return g.Wait()
}

// handleVisibilitySignals maps SIGUSR1/SIGUSR2 to Suspend/Resume.
func handleVisibilitySignals(ctx context.Context, mgr *connection.Manager, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			if sig == syscall.SIGUSR1 {
				logger.Info("suspending reconnects")
				mgr.Suspend()
			} else {
				logger.Info("resuming reconnects")
				mgr.Resume()
			}
		}
	}
}

// printer returns a subscriber that writes inbound messages to stdout.
func printer(verbose bool) func(model.Message) {
	return func(msg model.Message) {
		ts := time.Now().Format("15:04:05.000")

		switch msg.Type() {
		case model.TypeParentViewSuccess:
			pv, err := model.ParseParentViewSuccess(msg)
			if err != nil {
				fmt.Printf("[%s] parent_view_success (unparsed: %v)\n", ts, err)
				return
			}
			fmt.Printf("[%s] parent view granted athlete=%d\n", ts, pv.AthleteID)
		case model.TypeError:
			reason, _ := model.ErrorReason(msg)
			fmt.Printf("[%s] server error: %s\n", ts, reason)
		default:
			fmt.Printf("[%s] %s\n", ts, msg.Type())
		}

		if verbose {
			data, _ := json.MarshalIndent(msg, "  ", "  ")
			fmt.Printf("  %s\n", data)
		}
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
