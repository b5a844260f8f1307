package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/config"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.HTTP.Port = "0"
	cfg.Database.Driver = config.DriverMemory
	cfg.TCP.Addresses = []string{"127.0.0.1:0", "127.0.0.1:0"}
	cfg.Decoder.Default = "gps103"
	return cfg
}

func TestAppRunsUntilCancelled(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	require.Len(t, a.listeners, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for _, l := range a.listeners {
		select {
		case <-l.Ready():
		case <-time.After(time.Second):
			t.Fatal("listener did not start")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppRejectsUnknownDecoder(t *testing.T) {
	cfg := memoryConfig()
	cfg.Decoder.Default = "nmea"
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
