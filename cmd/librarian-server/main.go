package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/librarian/api"
	"github.com/gcbaptista/librarian/config"
	"github.com/gcbaptista/librarian/internal/blob"
	"github.com/gcbaptista/librarian/internal/isbn"
	"github.com/gcbaptista/librarian/internal/library"
	"github.com/gcbaptista/librarian/internal/logger"
	"github.com/gcbaptista/librarian/internal/metrics"
)

func main() {
	var (
		help       = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
		configPath = flag.String("config", "", "Path to a YAML configuration file")
		host       = flag.String("host", "", "Interface to listen on (overrides configuration)")
		port       = flag.Int("port", 0, "Port to run the server on (overrides configuration)")
		root       = flag.String("root", "", "Library directory (overrides configuration and LBRPATH)")
	)

	flag.Parse()

	if *help {
		fmt.Printf("Librarian server - search and serve a personal document library over HTTP\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s                            # Serve ~/.library on 127.0.0.1:8080\n", os.Args[0])
		fmt.Printf("  %s --port 9000                # Start server on port 9000\n", os.Args[0])
		fmt.Printf("  %s --config librarian.yaml    # Use a configuration file\n", os.Args[0])
		return
	}

	if *version {
		fmt.Printf("Librarian server v1.0.0\n")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Library.Root = *root
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", p)
		}
		os.Exit(1)
	}

	log := logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	blobs, err := openBlobStore(cfg)
	if err != nil {
		return err
	}

	log.Info("opening library", "root", cfg.Library.Root, "storage", cfg.Storage.Backend)
	lib, err := library.Open(library.Options{
		Root:         cfg.Library.Root,
		SnapshotPath: cfg.Library.SnapshotPath(),
		GramSize:     cfg.Library.GramSize,
		SearchLimit:  cfg.Library.SearchLimit,
		Blobs:        blobs,
		Logger:       logger.WithComponent("library"),
	})
	if err != nil {
		return fmt.Errorf("opening library: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	shared := library.NewShared(lib,
		library.WithLockTimeout(cfg.Library.LockTimeout),
		library.WithMetrics(m),
	)

	opts := []api.Option{
		api.WithLogger(logger.WithComponent("api")),
		api.WithMaxSearchLimit(cfg.Library.MaxSearchLimit),
	}
	if len(cfg.Server.ImportDirs) > 0 {
		log.Info("server-side import enabled", "dirs", cfg.Server.ImportDirs)
		opts = append(opts, api.WithImportDirs(cfg.Server.ImportDirs...))
	}
	if m != nil {
		opts = append(opts, api.WithMetrics(m, cfg.Metrics.Path))
	}
	if cfg.ISBN.Enabled {
		opts = append(opts, api.WithISBNLookup(isbn.NewClient(cfg.ISBN.BaseURL, cfg.ISBN.Timeout)))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.WithComponent("http")),
		api.MetricsMiddleware(m),
		api.CORSMiddleware(cfg.Server.CORSOrigins...),
		api.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst),
		api.RequestSizeLimitMiddleware(cfg.Server.MaxRequestBytes),
	)
	api.SetupRoutes(router, shared, opts...)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := shared.Save(shutdownCtx); err != nil {
		return fmt.Errorf("saving library: %w", err)
	}
	return nil
}

// openBlobStore selects where document content is kept.
func openBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinio:
		mc := cfg.Storage.Minio
		client, err := blob.NewMinioClient(blob.MinioConfig{
			Endpoint:  mc.Endpoint,
			AccessKey: mc.AccessKey,
			SecretKey: mc.SecretKey,
			UseSSL:    mc.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to MinIO: %w", err)
		}
		return blob.NewMinioStore(client, mc.Bucket, mc.Prefix), nil
	default:
		return blob.NewLocalStore(cfg.Library.Root), nil
	}
}
