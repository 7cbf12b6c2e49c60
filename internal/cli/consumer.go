package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/config"
	pginfra "mcq-exam-service/internal/infra/postgres"
	redisinfra "mcq-exam-service/internal/infra/redis"
)

// NewConsumeCmd builds the CLI subcommand to run validator/scorer shards.
func NewConsumeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Run the answer validator/scorer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsumer(cmd.Context(), *configPath)
		},
	}
}

func runConsumer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr not configured")
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := openBunDB(cfg.Postgres.URL)
	defer db.Close()

	cacheTTL := config.Duration(cfg.Exam.Cache.TTL, 10*time.Minute)
	directory := redisinfra.NewQuestionCache(redisClient, pginfra.NewQuestionStore(pool), cacheTTL)
	answered := redisinfra.NewAnsweredStore(redisClient)
	ledger := pginfra.NewScoreLedger(db)
	exam := redisinfra.NewExamConfig(redisClient, config.Duration(cfg.Exam.TimePerQuestion, defaultTimePerQuestion))
	feed := redisinfra.NewScoreFeed(redisClient)

	queue := redisinfra.NewStreamQueue(redisClient, streamConfig(cfg))
	if err := queue.EnsureGroups(ctx); err != nil {
		return err
	}

	shards := config.PositiveInt(cfg.Consumer.Shards, 1)
	sources := make([]app.SubmissionSource, 0, shards)
	for i := 0; i < shards; i++ {
		src, err := queue.ShardSource(i, shards)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	consumer := app.NewConsumer(directory, answered, ledger, exam, feed, app.ConsumerConfig{
		RetryCount:   cfg.Consumer.RetryCount,
		RetryBackoff: config.Duration(cfg.Consumer.RetryBackoff, time.Second),
	})

	log.Printf("starting %d consumer shard(s)", shards)
	if err := consumer.Run(ctx, sources); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("consumer stopped")
	return nil
}
