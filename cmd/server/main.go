package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/basegraph/analystcore/common/id"
	"github.com/basegraph/analystcore/common/logger"
	"github.com/basegraph/analystcore/common/otel"
	"github.com/basegraph/analystcore/core/config"
	"github.com/basegraph/analystcore/core/db"
	"github.com/basegraph/analystcore/internal/http/middleware"
	httprouter "github.com/basegraph/analystcore/internal/http/router"
	"github.com/basegraph/analystcore/internal/jobs"
	"github.com/basegraph/analystcore/internal/queue"
)

// cmd/server is the job intake and plan inspection surface (spec §4.8's
// JobRecord is created here and handed off over the message broker; the
// worker process embeds the orchestrator and does the actual async work).
func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "analystcore-server starting", "env", cfg.Env)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	jobProducer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream)
	defer jobProducer.Close()

	jobRepo := jobs.NewRepository(database.Pool())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, jobRepo, jobProducer)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, repo *jobs.Repository, producer queue.Producer) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, repo, producer, httprouter.RouterConfig{
		IsProduction: cfg.IsProduction(),
	})

	return router
}

const banner = `
 █████╗ ███╗   ██╗ █████╗ ██╗  ██╗   ██╗███████╗████████╗ ██████╗ ██████╗ ██████╗ ███████╗
██╔══██╗████╗  ██║██╔══██╗██║  ╚██╗ ██╔╝██╔════╝╚══██╔══╝██╔════╝██╔═══██╗██╔══██╗██╔════╝
███████║██╔██╗ ██║███████║██║   ╚████╔╝ ███████╗   ██║   ██║     ██║   ██║██████╔╝█████╗
██╔══██║██║╚██╗██║██╔══██║██║    ╚██╔╝  ╚════██║   ██║   ██║     ██║   ██║██╔══██╗██╔══╝
██║  ██║██║ ╚████║██║  ██║███████╗██║   ███████║   ██║   ╚██████╗╚██████╔╝██║  ██║███████╗
╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝╚══════╝╚═╝   ╚══════╝   ╚═╝    ╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚══════╝
`
