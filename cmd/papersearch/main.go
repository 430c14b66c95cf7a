package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/handler"
	"github.com/xxxsen/papersearch/internal/job"
	"github.com/xxxsen/papersearch/internal/middleware"
	"github.com/xxxsen/papersearch/internal/pkg/password"
	"github.com/xxxsen/papersearch/internal/retrieval"
	"github.com/xxxsen/papersearch/internal/schedule"
	"github.com/xxxsen/papersearch/internal/tracing"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "papersearch",
		Short: "semantic search over conference papers and workshops",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run papersearch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	var papersKey, workshopsKey string
	var enrichAfter bool
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "import crawled papers and workshops from the file store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if papersKey == "" && workshopsKey == "" {
				return fmt.Errorf("--papers or --workshops is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			stats, err := a.enrich.ImportFromStore(ctx, papersKey, workshopsKey)
			if err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("import finished",
				zap.Int("papers", stats.Papers),
				zap.Int("workshops", stats.Workshops),
				zap.Int("skipped", stats.Skipped),
			)
			if !enrichAfter {
				return nil
			}
			_, err = a.enrich.BackfillEmbeddings(ctx, 0)
			return err
		},
	}
	importCmd.Flags().StringVar(&papersKey, "papers", "", "file store key of the papers json")
	importCmd.Flags().StringVar(&workshopsKey, "workshops", "", "file store key of the workshops json")
	importCmd.Flags().BoolVar(&enrichAfter, "enrich", false, "backfill embeddings after import")

	var limit int
	enrichCmd := &cobra.Command{
		Use:   "enrich",
		Short: "backfill missing embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			stats, err := a.enrich.BackfillEmbeddings(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
	enrichCmd.Flags().IntVar(&limit, "limit", 0, "max items per kind, 0 for all")

	var noPapers, noWorkshops bool
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "run one search and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			results, _ := a.engine.Search(cmd.Context(), args[0], retrieval.Options{
				SearchPapers:    !noPapers,
				SearchWorkshops: !noWorkshops,
			})
			return printJSON(cmd, results)
		},
	}
	searchCmd.Flags().BoolVar(&noPapers, "no-papers", false, "skip paper search")
	searchCmd.Flags().BoolVar(&noWorkshops, "no-workshops", false, "skip workshop search")

	hashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "print the bcrypt hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, importCmd, enrichCmd, searchCmd, hashCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("embed_model", a.manager.ModelName()),
	)

	var admin *handler.AdminHandler
	if cfg.Admin.JWTSecret != "" && cfg.Admin.PasswordHash != "" {
		admin = handler.NewAdminHandler(a.auth, a.enrich, a.items)
	} else {
		logutil.GetLogger(context.Background()).Warn("admin api disabled, admin.jwt_secret or admin.password_hash not set")
	}
	deps := handler.RouterDeps{
		Search:    handler.NewSearchHandler(a.engine),
		Admin:     admin,
		Health:    handler.NewHealthHandler(a.items),
		JWTSecret: []byte(cfg.Admin.JWTSecret),
		RateLimit: middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.MaxKeys),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init(cfg.Tracing)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logutil.GetLogger(context.Background()).Error("stop tracing failed", zap.Error(err))
		}
	}()

	scheduler := schedule.NewCronScheduler(time.Hour)
	if cfg.Schedule.EnrichSpec != "" {
		if err := scheduler.AddJob(job.NewEnrichEmbeddingJob(a.enrich, cfg.Schedule.EnrichBatch), cfg.Schedule.EnrichSpec); err != nil {
			return err
		}
	}
	if cfg.Schedule.CacheCleanupSpec != "" {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.cache, cfg.Schedule.CacheMaxAgeDays), cfg.Schedule.CacheCleanupSpec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
