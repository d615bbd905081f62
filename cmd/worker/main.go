package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basegraph/analystcore/common/id"
	"github.com/basegraph/analystcore/common/llm"
	"github.com/basegraph/analystcore/common/logger"
	"github.com/basegraph/analystcore/common/otel"
	"github.com/basegraph/analystcore/core/config"
	"github.com/basegraph/analystcore/core/db"
	"github.com/basegraph/analystcore/internal/analyst"
	"github.com/basegraph/analystcore/internal/connectors"
	"github.com/basegraph/analystcore/internal/jobs"
	"github.com/basegraph/analystcore/internal/orchestrator"
	"github.com/basegraph/analystcore/internal/queue"
	"github.com/basegraph/analystcore/internal/research"
	"github.com/basegraph/analystcore/internal/semantic"
	"github.com/basegraph/analystcore/internal/semantic/translator"
	"github.com/basegraph/analystcore/internal/visual"
)

const maxIterations = 3

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

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

	slog.InfoContext(ctx, "analystcore-worker starting", "env", cfg.Env)

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

	supervisor, err := buildSupervisor(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build supervisor", "error", err)
		os.Exit(1)
	}

	repo := jobs.NewRepository(database.Pool())
	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream)
	defer producer.Close()

	workerID := workerIdentity()
	consumerCfg := queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.ConsumerGroup,
		Consumer:     workerID,
		DLQStream:    cfg.Pipeline.RedisStream + ":dlq",
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RequeueDelay: 2 * time.Second,
	}
	consumer, err := queue.NewRedisConsumer(redisClient, consumerCfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize consumer group", "error", err)
		os.Exit(1)
	}

	handlers := map[string]jobs.Handler{
		jobs.AnalystQuestionJobType: jobs.NewAnalystQuestionHandler(supervisor),
	}

	worker := jobs.New(consumer, producer, repo, handlers, jobs.Config{
		WorkerID:            workerID,
		LeaseDuration:       time.Duration(cfg.Pipeline.LeaseSeconds) * time.Second,
		MaxDeliveryAttempts: cfg.Pipeline.MaxAttempts,
	})

	reclaimer := jobs.NewRedisReclaimer(redisClient, jobs.ReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.ConsumerGroup,
		Consumer:  workerID,
		MinIdle:   time.Duration(cfg.Pipeline.LeaseSeconds) * time.Second,
		Interval:  30 * time.Second,
		BatchSize: 50,
	}, consumer, worker.ProcessMessage)

	go reclaimer.Run(ctx)
	go func() {
		if err := worker.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "worker stopped with error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	reclaimer.Stop()
	worker.Stop()

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutdown complete")
}

// buildSupervisor wires the Analyst, Visual, Deep Research, and Web Search
// agents behind a ReasoningController-bounded Supervisor, the same stack a
// worker's AnalystQuestionHandler dispatches into (spec §4.8 "Workers (C10)
// embed the same orchestrator to serve async jobs").
func buildSupervisor(ctx context.Context, cfg config.Config) (*orchestrator.Supervisor, error) {
	modelBytes, err := os.ReadFile(cfg.Semantic.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("reading semantic model %s: %w", cfg.Semantic.ModelPath, err)
	}
	model, err := semantic.LoadModel(modelBytes)
	if err != nil {
		return nil, fmt.Errorf("loading semantic model: %w", err)
	}

	agentClient, err := llm.NewAgentClient(llm.Config{
		APIKey: cfg.LLM.APIKey, BaseURL: cfg.LLM.BaseURL, Model: cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("building llm agent client: %w", err)
	}
	completer := analyst.NewCompleter(agentClient)

	embedder, err := llm.NewOpenAIEmbedder(llm.Config{
		APIKey: firstNonEmptyConfig(cfg.LLM.EmbeddingKey, cfg.LLM.APIKey), Model: cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	sqlConnector, err := connectors.NewPostgresConnector(ctx, firstNonEmptyConfig(cfg.Semantic.TargetDSN, cfg.DB.DSN))
	if err != nil {
		return nil, fmt.Errorf("building sql connector: %w", err)
	}

	analystTool := analyst.New(completer, embedder, sqlConnector, model, translator.Dialect(cfg.Semantic.Dialect))
	visualAgent := visual.New()
	webSearchAgent := research.NewWebSearchAgent("")
	deepResearchAgent := research.NewDeepResearchAgent(completer, webSearchAgent)
	reasoning := orchestrator.NewReasoningController(maxIterations)

	return orchestrator.NewSupervisor(analystTool, visualAgent, deepResearchAgent, webSearchAgent, reasoning, slog.Default()), nil
}

func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func firstNonEmptyConfig(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
