package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/config"
	"mcq-exam-service/internal/domain"
	"mcq-exam-service/internal/infra/memory"
	pginfra "mcq-exam-service/internal/infra/postgres"
	redisinfra "mcq-exam-service/internal/infra/redis"
	transport "mcq-exam-service/internal/transport/http"
)

const defaultTimePerQuestion = 30 * time.Second

// NewServeCmd builds the CLI subcommand to start the HTTP API.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the exam HTTP API (producer side)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var catalog app.QuestionAdmin
	var answered app.AnsweredStore
	var feedback app.FeedbackStore
	var feed app.ScoreFeed
	var queue app.SubmissionQueue

	memQuestions := memory.NewQuestionStore(sampleQuestions())
	memAnswered := memory.NewAnsweredStore()
	memQueue := memory.NewQueue(
		config.PositiveInt(cfg.Queue.Partitions, 4),
		cfg.Queue.MaxDeliveries,
		cfg.Queue.MaxInFlight,
	)

	if pool != nil {
		catalog = pginfra.NewQuestionStore(pool)
	} else {
		catalog = memQuestions
	}

	var db *bun.DB
	if cfg.Postgres.URL != "" {
		db = openBunDB(cfg.Postgres.URL)
		defer db.Close()
		feedback = pginfra.NewFeedbackStore(db)
	} else {
		feedback = memory.NewFeedbackStore()
	}

	var streamQueue *redisinfra.StreamQueue
	if redisClient != nil {
		answered = redisinfra.NewAnsweredStore(redisClient)
		feed = redisinfra.NewScoreFeed(redisClient)
		streamQueue = redisinfra.NewStreamQueue(redisClient, streamConfig(cfg))
		if err := streamQueue.EnsureGroups(ctx); err != nil {
			return err
		}
		queue = streamQueue
	} else {
		answered = memAnswered
		feed = memory.NewScoreFeed()
		queue = memQueue
	}

	publisher := app.NewPublisher(queue, cfg.Queue.PublishBuffer)
	defer publisher.Close()
	producer := app.NewProducer(publisher)
	questions := app.NewQuestionService(catalog, answered)

	// Without Redis there is no separate consumer process; score locally so
	// the pipeline still works end to end in dev runs.
	if redisClient == nil {
		src, err := memQueue.ShardSource(0, 1)
		if err != nil {
			return err
		}
		exam := memory.NewExamConfig(config.Duration(cfg.Exam.TimePerQuestion, defaultTimePerQuestion))
		var ledger app.ScoreLedger = memory.NewScoreLedger()
		directory := app.QuestionDirectory(memQuestions)
		if pool != nil {
			directory = pginfra.NewQuestionStore(pool)
			ledger = pginfra.NewScoreLedger(db)
		}
		consumer := app.NewConsumer(directory, answered, ledger, exam, feed, app.ConsumerConfig{
			RetryCount:   cfg.Consumer.RetryCount,
			RetryBackoff: config.Duration(cfg.Consumer.RetryBackoff, time.Second),
		})
		go func() {
			if err := consumer.Run(ctx, []app.SubmissionSource{src}); err != nil && ctx.Err() == nil {
				log.Printf("in-process consumer stopped: %v", err)
			}
		}()
		log.Printf("redis not configured; running in-process consumer")
	}

	wsHandler := transport.NewWSHandler(feed)
	handler := transport.NewHandler(producer, questions, feedback, wsHandler, adminToken(cfg))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func streamConfig(cfg config.Config) redisinfra.StreamConfig {
	return redisinfra.StreamConfig{
		Prefix:        cfg.Queue.StreamPrefix,
		Group:         cfg.Queue.Group,
		Partitions:    cfg.Queue.Partitions,
		Visibility:    config.Duration(cfg.Queue.Visibility, 30*time.Second),
		MaxDeliveries: cfg.Queue.MaxDeliveries,
		MaxInFlight:   cfg.Queue.MaxInFlight,
	}
}

func adminToken(cfg config.Config) string {
	if env := os.Getenv("ADMIN_TOKEN"); env != "" {
		return env
	}
	return cfg.Server.AdminToken
}

// sampleQuestions provides minimal demo content for runs without Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "q1",
			TestID: "demo_",
			Text:   "What is 2 + 2?",
			Options: []domain.Option{
				{ID: "A", Text: "3"},
				{ID: "B", Text: "4"},
				{ID: "C", Text: "5"},
				{ID: "D", Text: "22"},
			},
			CorrectOptionID: "B",
			Points:          1,
		},
		{
			ID:     "q2",
			TestID: "demo_",
			Text:   "Which planet is known as the Red Planet?",
			Options: []domain.Option{
				{ID: "A", Text: "Venus"},
				{ID: "B", Text: "Jupiter"},
				{ID: "C", Text: "Mars"},
				{ID: "D", Text: "Saturn"},
			},
			CorrectOptionID: "C",
			Points:          1,
		},
	}
}
