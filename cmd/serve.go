package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seyalabs/media-hub/api/core"
	"github.com/seyalabs/media-hub/cache"
	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/dbcore"
	"github.com/seyalabs/media-hub/database/repo"
	"github.com/seyalabs/media-hub/internal/codec"
	codecimaging "github.com/seyalabs/media-hub/internal/codec/imaging"
	codecvips "github.com/seyalabs/media-hub/internal/codec/vips"
	"github.com/seyalabs/media-hub/internal/transform"
	"github.com/seyalabs/media-hub/internal/usage"
	"github.com/seyalabs/media-hub/internal/variants"
	"github.com/seyalabs/media-hub/internal/worker"
	"github.com/seyalabs/media-hub/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	if err := os.MkdirAll("./data", os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db := dbcore.GetDBInstance()
	if err := dbcore.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	repositories := repo.NewRepositories(db)

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	cacheProvider, err := cache.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	imageCodec := newCodec(cfg)
	log.Printf("Using %s codec backend", imageCodec.Name())

	pool := worker.NewPool(cfg.WorkerCount, cfg.WorkerQueueSize)
	pool.Start()

	meter := usage.NewMeter(repositories.Usage, cfg.Plans)
	variantCache := variants.NewCache(repositories.Variants, store, cacheProvider)
	signer := transform.NewSigner(cfg.TransformSignTTL)
	service := transform.NewService(
		repositories.Accounts,
		repositories.Assets,
		variantCache,
		meter,
		imageCodec,
		pool,
		signer,
		store,
		cacheProvider,
		transform.Limits{
			MaxDimension:   cfg.TransformMaxDimension,
			MaxQuality:     cfg.TransformMaxQuality,
			MaxOutputBytes: cfg.MaxOutputBytes(),
			CodecTimeout:   cfg.TransformCodecTimeout,
		},
	)

	deps := &core.ServerDependencies{
		DB:           db,
		Repositories: repositories,
		Store:        store,
		CacheProv:    cacheProvider,
		Service:      service,
		Variants:     variantCache,
		Meter:        meter,
		Config:       cfg,
	}

	server, cleanup := core.StartServer(deps)
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cleanup != nil {
		cleanup()
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	pool.Stop()

	if err := cacheProvider.Close(); err != nil {
		log.Printf("Failed to close cache: %v", err)
	}
	if err := dbcore.CloseDB(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	log.Println("Server exiting")
}

// newCodec 按配置选择编解码后端,vips 不可用的环境用纯 Go 后端兜底
func newCodec(cfg *config.Config) codec.Codec {
	switch cfg.CodecBackend {
	case "imaging":
		return codecimaging.New()
	default:
		return codecvips.New()
	}
}
