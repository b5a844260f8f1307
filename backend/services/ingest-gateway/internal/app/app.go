package app

import (
	"context"

	"go.uber.org/zap"

	"trackhub/backend/libs/tcpserver"
	"trackhub/backend/services/ingest-gateway/internal/clients"
	"trackhub/backend/services/ingest-gateway/internal/config"
	"trackhub/backend/services/ingest-gateway/internal/relay"
)

// App wires ingest gateway dependencies.
type App struct {
	server *tcpserver.Server
	logger *zap.Logger
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	targets, invalid := cfg.TargetAddresses()
	for _, entry := range invalid {
		logger.Error("invalid target, expected host:port", zap.String("target", entry))
	}
	for _, addr := range targets {
		logger.Info("target configured", zap.String("target", addr))
	}

	primary := clients.NewIngestClient(cfg.Primary.URL, cfg.Primary.Timeout, logger.Named("ingest-client"))
	if !primary.Enabled() {
		logger.Warn("primary destination not configured, frames go to legacy targets only")
	}

	handler := relay.NewHandler(relay.Config{
		Framing:        cfg.FramingConfig(),
		ForwardTimeout: cfg.Primary.Timeout,
		MaxInFlight:    cfg.Primary.MaxInFlight,
		Targets:        targets,
		Target: clients.TargetConfig{
			QueueSize:    cfg.Target.QueueSize,
			DialTimeout:  cfg.Target.DialTimeout,
			WriteTimeout: cfg.Target.WriteTimeout,
		},
	}, primary, logger.Named("relay"))

	server := tcpserver.New(
		cfg.ListenAddress(),
		handler,
		logger.Named("tcp"),
		tcpserver.WithProxyProtocol(cfg.Listen.ProxyProtocol),
	)

	return &App{
		server: server,
		logger: logger,
	}, nil
}

// Run accepts tracker connections until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources (none yet).
func (a *App) Close() {}
