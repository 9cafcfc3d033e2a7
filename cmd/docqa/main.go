package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/handler"
	"github.com/xxxsen/docqa/internal/job"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/jwt"
)

const apiPrefix = "/api/v1"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "document question answering server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docqa server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := startApp(cfg)
			if err != nil {
				return err
			}
			defer a.db.Close()
			return runServer(a)
		},
	}

	var owner, file string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "store and ingest a local file for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" || file == "" {
				return fmt.Errorf("--owner and --file are required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			a, err := startApp(cfg)
			if err != nil {
				return err
			}
			defer a.db.Close()
			name := filepath.Base(file)
			result, err := a.documents.Upload(cmd.Context(), owner, name, model.MediaKindOfFile(name).ContentType(), data)
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(result)
			}
			return err
		},
	}
	ingestCmd.Flags().StringVar(&owner, "owner", "", "owner id")
	ingestCmd.Flags().StringVar(&file, "file", "", "path to a .md or .pdf file")

	var tokenOwner string
	var ttlHours int
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint a bearer token for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenOwner == "" {
				return fmt.Errorf("--owner is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if ttlHours <= 0 {
				ttlHours = cfg.JWTTTLHours
			}
			token, err := jwt.GenerateToken(tokenOwner, []byte(cfg.JWTSecret), time.Duration(ttlHours)*time.Hour)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().StringVar(&tokenOwner, "owner", "", "owner id")
	tokenCmd.Flags().IntVar(&ttlHours, "ttl-hours", 0, "token lifetime, defaults to jwt_ttl_hours")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup-cache",
		Short: "prune expired embedding cache rows once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.EmbedCache.DBEnabled {
				return fmt.Errorf("embed_cache.db_enabled is false")
			}
			a, err := startApp(cfg)
			if err != nil {
				return err
			}
			defer a.db.Close()
			return a.scheduler.RunNow(cmd.Context(), job.EmbeddingCacheCleanupName)
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, tokenCmd, cleanupCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
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
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func startApp(cfg *config.Config) (*app, error) {
	conn, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

func runServer(a *app) error {
	cfg := a.cfg
	addr := cfg.ListenAddr()
	deps := handler.RouterDeps{
		Documents:      handler.NewDocumentHandler(a.documents, int64(cfg.Ingest.MaxUploadMB)*1024*1024),
		Query:          handler.NewQueryHandler(a.query),
		JWTSecret:      []byte(cfg.JWTSecret),
		QueryRateLimit: time.Duration(cfg.Query.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		apiPrefix,
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{apiPrefix + "/query"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
