// Knowledged serves the knowledge-retrieval subsystem of the
// BrightClass platform: document ingestion into per-school Qdrant
// collections, hybrid retrieval, document listings, and deletion.
//
// Configuration is loaded from a YAML file with environment variable
// overrides (KNOWLEDGED_* prefix).
//
// Usage:
//
//	# Start with defaults
//	knowledged
//
//	# Start with a config file
//	knowledged -config /etc/knowledged/config.yaml
//
//	# Configure via environment
//	KNOWLEDGED_SERVER_PORT=9090 knowledged
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/access"
	"github.com/brightclass/knowledged/internal/config"
	"github.com/brightclass/knowledged/internal/embeddings"
	"github.com/brightclass/knowledged/internal/httpapi"
	"github.com/brightclass/knowledged/internal/knowledge"
	"github.com/brightclass/knowledged/internal/logging"
	"github.com/brightclass/knowledged/internal/tenant"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  knowledged           Start the service\n")
			fmt.Fprintf(os.Stderr, "  knowledged version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("knowledged\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all dependencies and blocks until the context is
// cancelled or the server fails.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting knowledged",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("router_mode", cfg.Router.Mode),
	)

	embedder, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}

	router, err := tenant.NewRouter(cfg.Router, logger)
	if err != nil {
		return fmt.Errorf("initializing tenant router: %w", err)
	}
	defer func() {
		if err := router.Close(); err != nil {
			logger.Warn(ctx, "closing cluster connections", zap.Error(err))
		}
	}()

	svc, err := knowledge.NewService(cfg.Knowledge, router, embedder, logger)
	if err != nil {
		return fmt.Errorf("initializing knowledge service: %w", err)
	}

	checker := access.NewStaticChecker(cfg.Access)

	server, err := httpapi.NewServer(cfg.Server, svc, checker, logger)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
