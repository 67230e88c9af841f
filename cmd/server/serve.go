package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/km2209/onion-gateway/internal/adapter/handler"
	"github.com/km2209/onion-gateway/internal/adapter/storage"
	"github.com/km2209/onion-gateway/internal/config"
	"github.com/km2209/onion-gateway/internal/core/domain"
	"github.com/km2209/onion-gateway/internal/core/service"
	"github.com/km2209/onion-gateway/internal/metric"
	"github.com/km2209/onion-gateway/internal/onion"
	"github.com/km2209/onion-gateway/internal/port"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the gateway behind the hidden-service daemon",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: c.LogLevel,
	})))

	metric.Register()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The daemon publishes its generated host identifier once it is ready.
	// Not seeing it within the retry budget is a misconfiguration.
	watcher := onion.NewWatcher(c.HostnameFile, c.IdentityRetries, c.IdentityBackoff)
	identity, err := watcher.Wait(ctx)
	if err != nil {
		return fmt.Errorf("hidden-service identity: %w", err)
	}
	slog.Info("hidden-service identity published", "host", identity)

	guard := service.NewHostGuard(identity, c.LoopbackAlias)

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}

	gateway := service.NewGateway(guard, store, c.ChangeQueue)

	var workers sync.WaitGroup
	for i := 0; i < c.ChangeWorkers; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			changeWorker(id, gateway.Changes())
		}(i)
	}
	slog.Info("started change workers", "count", c.ChangeWorkers)

	httpHandler := handler.NewHTTPHandler(gateway)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	// Host admission is the first gate: it runs before routing, so even
	// unknown paths never leak parse or validation behavior.
	var root http.Handler = handler.WithHostGuard(mux, guard)
	root = handler.WithInflightLimit(root, c.MaxInflight)
	root = handler.WithRequestLog(root)

	lis, err := net.Listen("tcp", c.Bind)
	if err != nil {
		return fmt.Errorf("bind %s: %w", c.Bind, err)
	}

	httpServer := &http.Server{Handler: root}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metric.Handler())
	metricsServer := &http.Server{Addr: c.MetricsBind, Handler: metricsMux}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.Info("gateway ready",
			"bind", c.Bind,
			"public_url", "http://"+identity,
			"allowlist", guard.Hosts(),
			"store", c.Store,
		)
		if err := httpServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway listener: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		slog.Info("metrics listening", "bind", c.MetricsBind)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down", "grace", c.ShutdownGrace)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownGrace)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			// Grace period spent draining; force-close what remains.
			httpServer.Close()
		}
		metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	err = eg.Wait()

	// Listener is drained: no more mutations can reach the queue.
	gateway.Close()
	workers.Wait()
	slog.Info("change workers stopped")

	if cerr := store.Close(context.Background()); cerr != nil {
		slog.Error("failed to close store", "error", cerr)
	}

	slog.Info("shutdown complete")
	return err
}

// changeWorker journals mutations from the gateway's change queue.
func changeWorker(id int, changes <-chan domain.Change) {
	for change := range changes {
		metric.ChangeQueueDepth.Set(float64(len(changes)))
		metric.ChangesJournaledTotal.WithLabelValues(string(change.Kind)).Inc()
		slog.Info("resource change",
			"worker", id,
			"kind", change.Kind,
			"resource_id", change.ResourceID,
			"version", change.Version,
			"at", change.At,
		)
	}
}

func openStore(ctx context.Context, c *config.Config) (port.ResourceStore, error) {
	switch c.Store {
	case config.StoreMemory:
		return storage.NewMemoryAdapter(), nil

	case config.StoreMySQL:
		db, err := sql.Open("mysql", c.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping mysql: %w", err)
		}
		slog.Info("connected to mysql")
		return storage.NewMySQLAdapter(db), nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		slog.Info("connected to redis")
		return storage.NewRedisAdapter(rdb), nil

	case config.StoreMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(c.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		slog.Info("connected to mongo")
		return storage.NewMongoAdapter(client, c.MongoDB), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", c.Store)
}
