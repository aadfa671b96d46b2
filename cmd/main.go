package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/nyaysetu/nyaysetu/config"
	"github.com/nyaysetu/nyaysetu/monitoring"
	"github.com/nyaysetu/nyaysetu/server"
	"github.com/nyaysetu/nyaysetu/state"
	"github.com/nyaysetu/nyaysetu/utils"
)

func setupStateManager(valkeyEndpoint string) (state.Manager, func(), error) {
	if valkeyEndpoint == "" {
		return state.NewMemoryManager(), func() {}, nil
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{valkeyEndpoint},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}
	return state.NewValkeyManager(valkeyClient), valkeyClient.Close, nil
}

func main() {
	logger := utils.Must(zap.NewProduction())
	defer logger.Sync()
	sugar := logger.Sugar()

	configPath := flag.String("config", "", "path or URL of an optional YAML config file")
	flag.Parse()
	config, err := config.LoadConfig(*configPath, sugar)
	if err != nil {
		sugar.Fatalw("Failed to load config", "error", err)
	}

	stateManager, cleanup, err := setupStateManager(config.ValkeyEndpoint)
	if err != nil {
		sugar.Fatalw("Failed to setup state manager", "error", err)
	}
	defer cleanup()

	monitor, err := monitoring.NewMonitoringManager(&config.Monitoring, sugar)
	if err != nil {
		sugar.Fatalw("Failed to setup monitoring", "error", err)
	}
	defer func() {
		if err := monitor.Close(); err != nil {
			sugar.Warnw("Failed to close monitoring", "error", err)
		}
	}()

	sugar.Infow("Loaded config",
		"local_base_url", config.LocalBaseUrl,
		"local_model", config.LocalModel,
		"remote_model", config.RemoteModel,
		"remote_configured", config.RemoteApiKey != "",
		"valkey", config.ValkeyEndpoint != "",
		"port", config.Port,
	)

	service, err := server.NewService(stateManager, monitor, config, sugar)
	if err != nil {
		sugar.Fatalw("Failed to create service", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sugar.Infow("Starting NyaySetu Legal RAG Backend...")
	service.PingBackends(ctx)

	router := service.Router(monitor.MetricsPath(), monitor.Handler())

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	address := fmt.Sprintf(":%d", config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: corsMiddleware.Handler(router),
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go service.StartPingLoop(ctx)

	go func() {
		<-shutdownSignal
		sugar.Infow("Shutting down server...")
		cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			sugar.Errorw("Server forced to shutdown", "error", err)
		}
	}()

	sugar.Infow("Starting server", "address", address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("Failed to start server", "error", err)
	}

	sugar.Infow("Server exited gracefully")
}
