package app

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trackhub/backend/libs/db"
	"trackhub/backend/libs/redis"
	"trackhub/backend/libs/tcpserver"
	"trackhub/backend/services/tracking-service/internal/broadcast"
	"trackhub/backend/services/tracking-service/internal/broadcast/natspub"
	"trackhub/backend/services/tracking-service/internal/broadcast/redisrelay"
	"trackhub/backend/services/tracking-service/internal/config"
	"trackhub/backend/services/tracking-service/internal/decoder"
	httpserver "trackhub/backend/services/tracking-service/internal/http"
	"trackhub/backend/services/tracking-service/internal/http/handlers"
	"trackhub/backend/services/tracking-service/internal/http/middleware"
	"trackhub/backend/services/tracking-service/internal/listener"
	"trackhub/backend/services/tracking-service/internal/repository"
	"trackhub/backend/services/tracking-service/internal/service"
	"trackhub/backend/services/tracking-service/internal/ws"
)

// Store is everything the tracking service needs from persistence.
type Store interface {
	service.PositionStore
	listener.Store
}

// App wires tracking service dependencies.
type App struct {
	server    *httpserver.Server
	listeners []*tcpserver.Server
	relay     *redisrelay.Relay
	sessions  *ws.Manager

	db     *sql.DB
	redis  *goredis.Client
	nats   *natspub.Publisher
	logger *zap.Logger
}

// New constructs application components.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := decoder.NewDefaultRegistry()
	if err := registry.SetDefault(cfg.Decoder.Default); err != nil {
		a.Close()
		return nil, fmt.Errorf("decoder: %w", err)
	}

	hub := broadcast.NewHub(logger.Named("hub"))
	publisher, err := a.buildPublisher(ctx, cfg, hub)
	if err != nil {
		a.Close()
		return nil, err
	}

	var listenerOpts []listener.Option
	if cfg.TCP.Broadcast {
		listenerOpts = append(listenerOpts, listener.WithPublisher(publisher))
	}
	tcpHandler := listener.New(registry, store, cfg.FramingConfig(), logger.Named("listener"), listenerOpts...)
	for _, addr := range cfg.TCP.Addresses {
		a.listeners = append(a.listeners, tcpserver.New(
			addr,
			tcpHandler,
			logger.Named("tcp"),
			tcpserver.WithProxyProtocol(cfg.TCP.ProxyProtocol),
		))
	}

	ingestService := service.NewIngestService(store, registry, publisher, logger.Named("ingest"))
	positionsService := service.NewPositionsService(store, cfg.TripGap(), logger.Named("positions"))

	a.sessions = ws.NewManager()
	stream := ws.NewServer(hub, a.sessions, cfg.WriteTimeout(), cfg.PingInterval(), logger.Named("ws"))

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("jwt secret not configured, read APIs run without authentication")
	}
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Ingest:         handlers.NewIngestHandler(ingestService, logger),
		Positions:      handlers.NewPositionsHandlers(positionsService, logger),
		Stream:         stream.HandleWS,
		Health:         handlers.NewHealthHandler(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger.Named("http"),
	}, middleware.AuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.GlobalTenantID))
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		a.logger.Warn("using in-memory store, positions are lost on restart")
		return repository.NewMemoryStore(), nil
	}

	sqlDB, err := db.NewPostgresDB(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = sqlDB

	store := repository.NewStore(sqlDB)
	if cfg.Database.Migrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("database schema ensured")
	}
	return store, nil
}

// buildPublisher composes the broadcast targets. With Redis configured the
// hub is fed by the relay subscription instead of directly, so local
// subscribers see each event once.
func (a *App) buildPublisher(ctx context.Context, cfg *config.Config, hub *broadcast.Hub) (broadcast.Publisher, error) {
	fanout := broadcast.Fanout{}

	if cfg.Redis.Addr != "" {
		client, err := redis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.relay = redisrelay.New(client, cfg.Redis.Channel, hub, a.logger.Named("redis-relay"))
		fanout = append(fanout, a.relay)
	} else {
		fanout = append(fanout, hub)
	}

	if cfg.NATS.URL != "" {
		pub, err := natspub.Connect(cfg.NATS.URL, cfg.NATS.Subject, a.logger.Named("nats"))
		if err != nil {
			return nil, err
		}
		a.nats = pub
		fanout = append(fanout, pub)
	}
	return fanout, nil
}

// Run serves HTTP, every TCP listener and the Redis relay until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Run(ctx)
	})
	for _, l := range a.listeners {
		l := l
		g.Go(func() error {
			return l.Run(ctx)
		})
	}
	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Run(ctx)
		})
	}

	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	if a.sessions != nil {
		a.sessions.CloseAll()
	}
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.logger.Warn("failed to drain nats", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
