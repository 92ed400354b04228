// Package main is the entry point for the headless chat client daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/auth"
	"github.com/pulsechat/pulsechat-go/internal/config"
	"github.com/pulsechat/pulsechat-go/internal/engine"
	"github.com/pulsechat/pulsechat-go/internal/handler"
	"github.com/pulsechat/pulsechat-go/internal/middleware"
	"github.com/pulsechat/pulsechat-go/internal/rest"
	"github.com/pulsechat/pulsechat-go/internal/service"
	"github.com/pulsechat/pulsechat-go/internal/socket"
	"github.com/pulsechat/pulsechat-go/internal/store"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
	"github.com/pulsechat/pulsechat-go/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting chat client daemon")

	if cfg.AuthToken == "" {
		log.Error("CHAT_AUTH_TOKEN is required")
		os.Exit(1)
	}

	// Resolve identity: explicit CHAT_USER_ID wins, otherwise the token
	// claims carry it.
	userID := cfg.UserID
	if ident, err := auth.ParseIdentity(cfg.AuthToken); err == nil {
		if userID == 0 {
			userID = ident.UserID
		}
		if ident.Expired(time.Now()) {
			log.Warn("auth token is expired; the server will likely reject the connection")
		}
	} else if userID == 0 {
		log.Error("cannot determine user id", zap.Error(err))
		os.Exit(1)
	}

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "pulsechat-client", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// HTTP collaborator
	backend := rest.NewClient(cfg.ServerURL, cfg.AuthToken,
		rest.WithTimeout(cfg.HTTPTimeout),
	)

	// Engine wiring
	st := store.New(log)
	sock := socket.NewManager(socket.Config{
		ServerURL:  cfg.ServerURL,
		SocketPath: cfg.SocketPath,
		BaseDelay:  cfg.ReconnectBaseDelay,
		MaxDelay:   cfg.ReconnectMaxDelay,
	}, nil, log)

	outgoing := service.NewOutgoing(sock, backend, userID, log)
	receipts := service.NewReceipts(sock, st, userID, cfg.ReadSettleDelay, log)
	presence := service.NewPresence(st, log)

	eng := engine.New(sock, st, outgoing, receipts, presence, backend, userID, cfg.AuthToken, log)

	// Dispatcher
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go eng.Run(runCtx)

	// Initial population, then connect. Connect failures reschedule
	// themselves with backoff.
	if err := eng.LoadConversations(ctx); err != nil {
		log.Warn("initial conversation load failed", zap.Error(err))
	}
	if err := eng.Connect(ctx); err != nil {
		log.Warn("initial connect failed, retrying with backoff", zap.Error(err))
	}

	// Local control API
	healthHandler := handler.NewHealthHandler(eng)
	conversationHandler := handler.NewConversationHandler(eng, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/status", healthHandler.Status)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/direct", conversationHandler.StartDirect)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", conversationHandler.Messages)
				r.Post("/messages", conversationHandler.Send)
				r.Post("/activate", conversationHandler.Activate)
				r.Post("/typing", conversationHandler.Typing)
				r.Delete("/", conversationHandler.Delete)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      r,
		ReadTimeout:  cfg.APIReadTimeout,
		WriteTimeout: cfg.APIWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("control API listening", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	eng.Shutdown()
	stopRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("stopped")
}
