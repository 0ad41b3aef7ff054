package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/portpulse/portpulse/internal/breaker"
	"github.com/portpulse/portpulse/internal/config"
	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/engine"
	"github.com/portpulse/portpulse/internal/live"
	"github.com/portpulse/portpulse/internal/logging"
	"github.com/portpulse/portpulse/internal/provider"
	"github.com/portpulse/portpulse/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupProvider selects the data source: the simulated provider by default,
// the broker REST client when credentials are configured. The simulated
// provider's price walk runs until ctx is cancelled.
func setupProvider(ctx context.Context, cfg *config.Config, clock clockwork.Clock) domain.Provider {
	if cfg.UseMockData {
		slog.Info("Using simulated market data", "update_interval", cfg.MockUpdateInterval)
		mock := provider.NewMock(clock, cfg.MockUpdateInterval)
		go mock.Run(ctx)
		return mock
	}

	slog.Info("Using broker data", "base_url", cfg.BrokerBaseURL)
	return provider.NewBroker(cfg.BrokerBaseURL, cfg.BrokerClientID, cfg.BrokerAccessToken)
}

func runGracefulShutdown(cancel context.CancelFunc, srv *server.Server, hub *live.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		cancel() // stops the poll loops and the simulated price walk

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataProvider := setupProvider(ctx, cfg, clock)
	brk := breaker.New(cfg.BreakerFailureThreshold, cfg.BreakerOpenTimeout)
	buffer := engine.NewBuffer(cfg.EventBufferSize)

	hub := live.NewHub(buffer, clock, live.Options{
		SendBuffer:   cfg.ClientSendBuffer,
		PingInterval: cfg.PingInterval,
		IdleTimeout:  cfg.IdleTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MessageRate:  cfg.MessageRateLimit,
		MessageBurst: cfg.MessageRateBurst,
	})

	eng := engine.New(dataProvider, brk, buffer, hub, clock, engine.Config{
		FailureBackoff:    cfg.PollFailureBackoff,
		SummaryMaxChanges: cfg.SummaryMaxChanges,
		SummaryMaxClients: cfg.SummaryMaxClients,
	})

	go func() {
		if err := eng.Run(ctx); err != nil {
			slog.Error("Engine stopped with error", "error", err)
		}
	}()

	srv := server.NewServer(cfg, dataProvider, brk, eng, hub, clock)

	done := runGracefulShutdown(cancel, srv, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
