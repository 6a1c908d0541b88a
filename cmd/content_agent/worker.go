package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/agents"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/db"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/llm"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/pipeline"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a job queue worker",
	Long:  `Consume pending jobs from the queue and run each through the agent pipeline. Multiple worker processes can run against the same database; claims are atomic.`,
	RunE:  runWorker,
}

var (
	workerConcurrency int
	workerPollSeconds int
)

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 2, "Concurrent jobs per worker process")
	workerCmd.Flags().IntVar(&workerPollSeconds, "poll-seconds", 5, "Queue poll interval in seconds")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	orch := pipeline.NewOrchestrator(database, agents.NewRegistry(client))
	pool := worker.New(database, orch, worker.Config{
		Concurrency:  workerConcurrency,
		PollInterval: time.Duration(workerPollSeconds) * time.Second,
	})

	log.Printf("Worker starting with concurrency %d", workerConcurrency)
	if err := pool.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	log.Println("Worker stopped")
	return nil
}
