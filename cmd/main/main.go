package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/calvora/frond/pkg/frond"
	"github.com/calvora/frond/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Server wires the rendering engine, the template store, and the load
// coordinator behind one HTTP mux.
type Server struct {
	config *Config
	db     *sql.DB
	logger *slog.Logger
	engine *frond.Engine
	st     *store.Store
	lc     *frond.LoadCoordinator
	api    *TemplateAPI
	mux    *http.ServeMux
}

// NewServer builds the full object graph from an open database connection.
func NewServer(config *Config, logger *slog.Logger, db *sql.DB) (*Server, error) {
	st, err := store.New(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create template store: %w", err)
	}
	st.SetLogger(logger)

	engine := frond.New(logger, config.Engine)
	for name, data := range config.Server.DefaultData {
		engine.SetDefaultData(name, data)
	}

	names := config.Server.PreloadTemplates
	if len(names) == 0 {
		names, err = st.List(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to list stored templates: %w", err)
		}
	}
	lc := frond.NewLoadCoordinator(logger, st, names, engine.Store())

	api := NewTemplateAPI(engine, st, lc, logger)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	return &Server{
		config: config,
		db:     db,
		logger: logger,
		engine: engine,
		st:     st,
		lc:     lc,
		api:    api,
		mux:    mux,
	}, nil
}

func main() {
	logger, err := run()
	if err != nil {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
		}
		logger.Error("Server run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("frond has shut down.")
}

func run() (*slog.Logger, error) {
	config, err := LoadConfig("./config.json")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var logLevel slog.Level
	switch strings.ToLower(config.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("Starting frond", "version", Version, "commit", Commit, "build_date", BuildDate)

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return logger, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return logger, fmt.Errorf("failed to setup template schema: %w", err)
	}

	server, err := NewServer(config, logger, db)
	if err != nil {
		_ = db.Close()
		return logger, fmt.Errorf("failed to create server object: %w", err)
	}

	httpServer := &http.Server{
		Addr:    config.Server.ServerAddr,
		Handler: server.mux,
	}

	go func() {
		logger.Info("Starting frond render server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Render server failed", "error", err)
		}
	}()

	osSignalChan := make(chan os.Signal, 1)
	signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
	<-osSignalChan
	logger.Info("OS signal received, initiating shutdown.")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	server.st.Close()
	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return logger, nil
}
