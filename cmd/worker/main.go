// Command worker runs the grading worker: it connects the durable store,
// the notification channel, the LLM client, and the job queue, then serves
// grading workflows until interrupted.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/gradepipe/gradepipe/internal/configuration"
	"github.com/gradepipe/gradepipe/internal/costlog"
	"github.com/gradepipe/gradepipe/internal/docs"
	"github.com/gradepipe/gradepipe/internal/llm"
	"github.com/gradepipe/gradepipe/internal/llm/circuitbreaker"
	"github.com/gradepipe/gradepipe/internal/llm/pricing"
	"github.com/gradepipe/gradepipe/internal/notify"
	"github.com/gradepipe/gradepipe/internal/processor"
	"github.com/gradepipe/gradepipe/internal/queue"
	"github.com/gradepipe/gradepipe/internal/state"
	"github.com/gradepipe/gradepipe/internal/store/sqlite"
	"github.com/gradepipe/gradepipe/internal/worker"
	"github.com/gradepipe/gradepipe/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("GRADEPIPE_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := configuration.Load(*configPath)
	if err != nil {
		return err
	}

	setupLogging(cfg.Observability)
	logger := slog.Default()

	db, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		publisher = notify.NewRedisPublisher(rdb, cfg.Redis.Channel)
	} else {
		logger.Warn("redis address not configured, state change notifications disabled")
	}

	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		FailureWindow:    cfg.CircuitBreaker.FailureWindow,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		OpenTimeout:      cfg.CircuitBreaker.OpenTimeout,
	})

	recorder := costlog.NewRecorder(pricing.NewRegistry(), db)

	llmClient, err := llm.NewClient(cfg, breakers, recorder)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	defer temporalClient.Close()

	scheduler := queue.NewTemporalScheduler(temporalClient, cfg.Temporal.TaskQueue)

	submissions := state.NewSubmissionManager(db, publisher)
	rubrics := state.NewRubricManager(db, publisher)
	tasks := state.NewTaskManager(db, publisher)

	activities := &workflow.Activities{
		Submissions: processor.NewSubmissionProcessor(
			db, submissions, tasks,
			docs.NewAFSProvider(cfg.Documents.BaseURL),
			llmClient, scheduler, breakers, cfg.Scheduling,
		),
		Rubrics: processor.NewRubricProcessor(
			db, rubrics, tasks,
			llmClient, scheduler, breakers, cfg.Scheduling,
		),
	}

	w := worker.New(temporalClient, cfg.Temporal, cfg.Scheduling, activities)

	logger.Info("grading worker starting",
		"task_queue", cfg.Temporal.TaskQueue,
		"max_concurrent_units", cfg.Scheduling.MaxConcurrentUnits,
		"storage", cfg.Storage.Path)

	return w.Run(sdkworker.InterruptCh())
}

func setupLogging(cfg configuration.ObservabilityConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
