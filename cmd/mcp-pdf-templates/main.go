package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/a3tai/mcp-pdf-templates/internal/config"
	"github.com/a3tai/mcp-pdf-templates/internal/fill"
	"github.com/a3tai/mcp-pdf-templates/internal/generate"
	"github.com/a3tai/mcp-pdf-templates/internal/httpapi"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mcp"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
	"github.com/a3tai/mcp-pdf-templates/internal/render"
	"github.com/a3tai/mcp-pdf-templates/internal/service"
	"github.com/a3tai/mcp-pdf-templates/internal/storage"
	"github.com/a3tai/mcp-pdf-templates/internal/store"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const shutdownTimeout = 10 * time.Second

// app is the wired process
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *gorm.DB
	service *service.Service
	mcp     *mcp.Server
}

// newLogger builds the process logger. In stdio mode stdout carries the
// MCP protocol, so everything goes to stderr.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Stderr: cfg.IsStdioMode(),
	})
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage {
	case config.StorageMinio:
		st, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return storage.NewFSStore(cfg.ObjectRoot())
	}
}

// build wires every component from cfg
func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open object storage: %w", err)
	}
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	st := store.New(db, objects, log)

	renderer := render.New(ctx, render.Options{
		Brand: render.BrandOptions{
			Name:      cfg.BrandName,
			ImagePath: cfg.BrandImage,
			Color:     cfg.BrandColor,
		},
		SettleTimeout: cfg.SettleTimeout,
		Logger:        log,
	})
	local := generate.NewLocalGenerator(fill.NewEngine(st, log), renderer)

	var gen generate.Generator = local
	if cfg.RemoteGenerator != "" {
		remote, err := generate.NewRemoteGenerator(cfg.RemoteGenerator, cfg.RemoteTimeout)
		if err != nil {
			return nil, err
		}
		gen = remote
		log.Info("documents are generated remotely", "url", cfg.RemoteGenerator)
	}

	downloads, err := generate.NewDirDownloader(cfg.DownloadDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare download directory: %w", err)
	}

	orch, err := generate.NewOrchestrator(generate.Options{
		Templates:  st,
		Generator:  gen,
		Objects:    objects,
		Ledger:     st,
		Downloader: downloads,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	svc, err := service.New(service.Options{
		Store:            st,
		Pages:            pdf.NewPageRenderer(cfg.RenderCacheSize, log),
		Orchestrator:     orch,
		Renderer:         local,
		AutosaveInterval: cfg.AutosaveInterval,
		MaxFileSize:      cfg.MaxFileSize,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	server, err := mcp.NewServer(cfg, svc, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db, service: svc, mcp: server}, nil
}

func (a *app) router() *gin.Engine {
	return httpapi.NewRouter(httpapi.Options{
		Service:     a.service,
		Logger:      a.log,
		CORSOrigins: a.cfg.CORSOrigins,
		MaxFileSize: a.cfg.MaxFileSize,
		Version:     a.cfg.Version,
		MCP:         a.mcp.SSEHandler("http://" + a.cfg.Address()),
	})
}

func (a *app) close() {
	a.service.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	a.log.Sync()
}

// runServerMode serves the HTTP API and MCP over SSE until ctx ends
func (a *app) runServerMode(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          a.log.StdLog(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.log.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// runStdioMode serves MCP on stdin/stdout; the parent process controls
// our lifecycle
func (a *app) runStdioMode(ctx context.Context) error {
	return a.mcp.Run(ctx)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if version != "dev" {
		cfg.Version = version
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	log.Debug("starting", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	if cfg.IsServerMode() {
		err = a.runServerMode(ctx)
	} else {
		err = a.runStdioMode(ctx)
	}
	if err != nil {
		log.Error("server stopped with error", "error", err)
		a.close()
		os.Exit(1)
	}
	log.Info("server stopped")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Templates\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
