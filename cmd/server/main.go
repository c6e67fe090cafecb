package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/auth"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/config"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/draft"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/events"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/middleware"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/numbering"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/render"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/service"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage/mongo"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage/sqlite"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/uploads"
	"github.com/vishwas4859/Ai-Invoice-Generator/pkg/logging"
)

func main() {
	if err := newApp(serve).Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Configuration flags belong to each
// subcommand, and a bare invocation runs serve.
func newApp(serveAction cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:           "invoicer",
		Usage:          "invoice management API",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API (default)",
				Flags:  config.Flags(),
				Action: serveAction,
			},
			{
				Name:  "token",
				Usage: "mint a bearer token for local development",
				Flags: append(config.Flags(),
					&cli.StringFlag{Name: "user", Required: true, Usage: "owner id placed in the token subject"},
					&cli.StringFlag{Name: "email", Usage: "email claim"},
				),
				Action: mintToken,
			},
		},
	}
}

func serve(c *cli.Context) error {
	cfg := config.FromContext(c)
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := uploads.NewStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()
	if _, ok := publisher.(events.Noop); ok {
		slog.Info("Invoice events disabled", "reason", "no kafka brokers configured")
	} else {
		slog.Info("Publishing invoice events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var gen draft.Generator
	if cfg.GeminiAPIKey != "" {
		gen = draft.NewGeminiClient(cfg.GeminiAPIKey, "")
	} else {
		slog.Warn("GEMINI_API_KEY is not set; AI drafting disabled")
	}

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)
	jwtManager := auth.NewJWTManager(cfg.AuthSecret, cfg.TokenTTL)

	r := mux.NewRouter()
	r.Use(middleware.Logging, metrics.Instrument, middleware.Timeout(cfg.RequestTimeout))

	service.NewRouter(r, service.Deps{
		Store:     store,
		Allocator: numbering.New(store),
		Uploads:   files,
		Events:    publisher,
		Metrics:   metrics,
		Renderer:  render.NewPDFRenderer(files.Dir(), cfg.PublicBaseURL),
		Drafter:   draft.New(gen, cfg.GeminiModels),
	}, jwtManager)

	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", files.Handler())).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API WORKING"))
	}).Methods(http.MethodGet)

	handler := middleware.CORS(cfg.CORSOrigins)(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost:%d", cfg.Port), "db_driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := mongo.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", "mongo", "database", cfg.MongoDatabase)
		return store, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.DBPath)
		return store, nil
	}
}

func mintToken(c *cli.Context) error {
	cfg := config.FromContext(c)
	if cfg.AuthSecret == "" {
		return errors.New("auth-secret is required to sign tokens")
	}
	token, err := auth.NewJWTManager(cfg.AuthSecret, cfg.TokenTTL).Generate(c.String("user"), c.String("email"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
