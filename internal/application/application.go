package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/cryptoknapsack/internal/api"
	"github.com/eugenenazirov/cryptoknapsack/internal/config"
	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
	"github.com/eugenenazirov/cryptoknapsack/internal/playback"
	"github.com/eugenenazirov/cryptoknapsack/internal/session"
	"github.com/eugenenazirov/cryptoknapsack/internal/storage"
	"github.com/eugenenazirov/cryptoknapsack/internal/stream"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage   storage.Storage
	session   *session.Knapsack
	scheduler *playback.RealtimeScheduler
	player    *playback.Player
	hub       *stream.Hub
	handler   *api.Handler
	router    http.Handler
	logger    *zap.Logger
	server    *http.Server

	cancel context.CancelFunc
	done   chan struct{}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if err := store.SetItems(cfg.Items); err != nil {
		return nil, fmt.Errorf("failed to apply initial items: %w", err)
	}

	sess, err := session.New(store, cfg.Capacity, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("failed to create knapsack: %w", err)
	}

	scheduler := playback.NewRealtimeScheduler()
	hub := stream.NewHub(logger.Named("stream"), stream.WithAllowedOrigins(cfg.AllowedOrigins...))
	player := playback.NewPlayer(sess, scheduler,
		playback.WithDelays(cfg.InitialDelay, cfg.StepDelay),
		playback.WithLogger(logger.Named("playback")),
		playback.WithObserver(hub),
	)

	handler := api.NewHandler(knapsack.DefaultRegistry(), sess, player,
		api.WithEvents(hub),
		api.WithMaxCapacity(cfg.MaxCapacity),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage:   store,
		session:   sess,
		scheduler: scheduler,
		player:    player,
		hub:       hub,
		handler:   handler,
		router:    apiRouter,
		logger:    logger,
		server:    NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and answers everything else
// with 404.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.NotFoundHandler())
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start launches the playback scheduler and the HTTP server in goroutines.
func (a *App) Start() error {
	if a.cancel != nil {
		return errors.New("application already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := a.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("playback scheduler stopped", zap.Error(err))
		}
	}()

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests, cancels any running playback and stops
// the scheduler. Event stream subscribers are disconnected.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.stopPlayback()
	return err
}

// Close forcibly closes the HTTP server and stops playback.
func (a *App) Close() error {
	err := a.server.Close()
	a.stopPlayback()
	return err
}

func (a *App) stopPlayback() {
	if a.player.Stop() {
		a.logger.Info("cancelled running playback")
	}
	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
	}
	a.hub.Close()
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}
