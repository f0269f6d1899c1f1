package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/config"
	"github/itish2003/manual-assistant/controller"
	"github/itish2003/manual-assistant/logger"
	"github/itish2003/manual-assistant/services"
)

func main() {
	var (
		configPath  string
		watchConfig bool
	)

	rootCmd := &cobra.Command{
		Use:          "manual-assistant",
		Short:        "Ask questions about uploaded product manuals",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, level, err := logger.NewWithLevel(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watchConfig {
				go watchLogLevel(ctx, configPath, level, log.Named("config"))
			}
			return runServer(ctx, cfg, log)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")
	serveCmd.Flags().BoolVar(&watchConfig, "watch-config", true, "apply log level changes in the config file without a restart")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}

// watchLogLevel applies log.level from every valid edit of the config file.
// Other settings are bound at startup and need a restart.
func watchLogLevel(ctx context.Context, path string, level zap.AtomicLevel, log *zap.Logger) {
	err := config.Watch(ctx, path, log, func(cfg *config.AppConfig) {
		if cfg.Log.Level == level.Level().String() {
			return
		}
		if err := logger.SetLevel(level, cfg.Log.Level); err != nil {
			log.Warn("could not apply log level", zap.Error(err))
			return
		}
		log.Info("log level changed", zap.String("level", cfg.Log.Level))
	})
	if err != nil {
		log.Warn("config watcher stopped", zap.Error(err))
	}
}

func runServer(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	log.Info("starting manual assistant",
		zap.Int("port", cfg.Server.Port),
		zap.String("extractor", cfg.Extractor.Type),
		zap.String("chunker", cfg.Chunker.Type),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("generator", cfg.Generator.Type),
		zap.Bool("reset_on_upload", cfg.Session.ResetOnUpload),
	)

	// One-time initialisation before the listener opens.
	if cfg.Extractor.Type == "unipdf" {
		services.InitUniPDF(cfg.Extractor, log.Named("extractor"))
	}
	analyzer := services.NewVaderAnalyzer()

	extractor, err := services.NewTextExtractor(cfg.Extractor)
	if err != nil {
		return err
	}
	chunker, err := services.NewTextChunker(cfg.Chunker)
	if err != nil {
		return err
	}

	ollamaEmbedder, err := services.NewOllamaEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}
	embedder := services.WrapLRUCache(ollamaEmbedder, cfg.Embedder.CacheSize, cfg.Embedder.CacheTTL(), log.Named("embedder"))

	var chromaClient chromago.Client
	if cfg.VectorStore.Type == "chroma" {
		chromaClient, err = services.NewChromaClient(cfg.VectorStore.ChromaURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := chromaClient.Close(); err != nil {
				log.Warn("failed to close chroma client", zap.Error(err))
			}
		}()
		log.Info("connected to chroma", zap.String("url", cfg.VectorStore.ChromaURL))
	}
	openStore, err := services.NewStoreOpener(cfg.VectorStore, embedder, chromaClient, log.Named("store"))
	if err != nil {
		return err
	}

	generator, err := services.NewGenerator(ctx, cfg.Generator)
	if err != nil {
		return err
	}

	sessions := services.NewSessionManager(
		cfg.Session.DataDir,
		cfg.Session.IdleTTL(),
		openStore,
		generator,
		cfg.VectorStore.TopK,
		cfg.Generator.Timeout(),
		log.Named("session"),
	)
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Warn("failed to close sessions", zap.Error(err))
		}
	}()

	feedbackLog, err := services.NewFeedbackLog(cfg.Feedback, log.Named("feedback"))
	if err != nil {
		return err
	}
	defer func() {
		if err := feedbackLog.Close(); err != nil {
			log.Warn("failed to close feedback log", zap.Error(err))
		}
	}()
	feedback := services.NewFeedbackService(analyzer, feedbackLog, log.Named("feedback"))

	ragService := services.NewRAGService(extractor, chunker, cfg.Session.ResetOnUpload, log.Named("rag"))
	ragController := controller.NewRAGController(
		ragService,
		sessions,
		feedback,
		int64(cfg.Server.MaxUploadMB)<<20,
		log.Named("http"),
	)

	gin.SetMode(cfg.Server.Mode)
	router := controller.NewRouter(ragController, log.Named("http"))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
