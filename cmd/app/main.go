package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promptrelay/internal/config"
	"promptrelay/internal/httpserver"
	"promptrelay/internal/llm"
	"promptrelay/internal/relay"
	"promptrelay/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	if cfg.Upstream.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is empty, upstream calls will be sent with an empty bearer token")
	}

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout, &cfg.Upstream.APIKey)
	llmClient := llm.NewChatCompletionsClient(cfg.Upstream, httpClient, logger)

	generateHandler := relay.NewHandler(relay.HandlerDeps{
		LLM:          llmClient,
		Logger:       logger,
		MaxBodyBytes: cfg.MaxBodyBytes,
		StrictPrompt: cfg.StrictPrompt,
		Timeout:      cfg.RelayTimeout,
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:          logger,
		GenerateHandler: generateHandler,
	})

	// WriteTimeout больше RELAY_TIMEOUT, иначе медленный upstream оборвёт соединение без 500.
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RelayTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("model", cfg.Upstream.Model),
			slog.String("upstream", cfg.Upstream.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
