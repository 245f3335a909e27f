package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/ai"
	"github.com/intellipatent/intellipatent/internal/bootstrap"
	"github.com/intellipatent/intellipatent/internal/config"
	"github.com/intellipatent/intellipatent/internal/embedcache"
	"github.com/intellipatent/intellipatent/internal/handler"
	"github.com/intellipatent/intellipatent/internal/job"
	"github.com/intellipatent/intellipatent/internal/middleware"
	"github.com/intellipatent/intellipatent/internal/repo"
	"github.com/intellipatent/intellipatent/internal/schedule"
	"github.com/intellipatent/intellipatent/internal/service"
	"github.com/intellipatent/intellipatent/internal/session"
	"github.com/intellipatent/intellipatent/internal/vectorindex"
	"github.com/intellipatent/intellipatent/internal/vectorindex/pinecone"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "intellipatent",
		Short: "patent Q&A engine",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if err := bootstrap.EnsureDatabase(ctx, cfg.DBPath, cfg.Bootstrap); err != nil {
				return fmt.Errorf("bootstrap database: %w", err)
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			return runServer(cfg, db)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	var loadDir string
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "index a directory of patent json files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			manager, index, err := buildAIStack(cfg)
			if err != nil {
				return err
			}
			loader := service.NewLoaderService(manager, index, repo.NewPatentChunkRepo(db))
			stats, err := loader.LoadDir(context.Background(), loadDir)
			if err != nil {
				return err
			}
			logutil.GetLogger(context.Background()).Info("load complete",
				zap.Int("files", stats.Files),
				zap.Int("patents", stats.Patents),
				zap.Int("chunks", stats.Chunks),
				zap.Int("skipped", stats.Skipped),
			)
			return nil
		},
	}
	loadCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	loadCmd.Flags().StringVar(&loadDir, "dir", "patent_jsons", "directory of patent json files")

	rootCmd.AddCommand(runCmd, loadCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := repo.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

func buildAIStack(cfg *config.Config) (*ai.Manager, vectorindex.Index, error) {
	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel, cfg.AI.EmbedDim)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder,
		cfg.EmbedCache.Size,
		time.Duration(cfg.EmbedCache.TTLMinutes)*time.Minute,
	)
	manager := ai.NewManager(provider, cfg.AI.Model, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})
	index := pinecone.New(pinecone.Config{
		APIKey:      cfg.Index.APIKey,
		Host:        cfg.Index.Host,
		ControlURL:  cfg.Index.ControlURL,
		SparseModel: cfg.Index.SparseModel,
		Timeout:     time.Duration(cfg.Index.Timeout) * time.Second,
	})
	return manager, index, nil
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("index_host", cfg.Index.Host),
	)

	manager, index, err := buildAIStack(cfg)
	if err != nil {
		return err
	}

	patentRepo := repo.NewPatentChunkRepo(db)
	store := session.NewStore(0, time.Duration(cfg.SessionTTLHours)*time.Hour)
	sessionService := service.NewSessionService(store, cfg.JWTSecret)
	searchService := service.NewSearchService(manager, index, patentRepo, nil, service.SearchConfig{
		DefaultTopK:  cfg.Search.DefaultTopK,
		MaxTopK:      cfg.Search.MaxTopK,
		ContextTurns: cfg.Search.ContextTurns,
	})

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.Schedule(job.NewSessionCleanupJob(store), cfg.SessionSweepSpec); err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(nil))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	api := engine.Group("/api/v1")
	handler.RegisterRoutes(engine, api, handler.RouterDeps{
		Sessions:        handler.NewSessionHandler(sessionService),
		Search:          handler.NewSearchHandler(searchService, sessionService),
		Health:          handler.NewHealthHandler(db, index),
		JWTSecret:       []byte(cfg.JWTSecret),
		SearchRateLimit: time.Duration(cfg.Search.RateLimitMS) * time.Millisecond,
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
