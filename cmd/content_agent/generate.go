package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/agents"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/config"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/db"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/jobs"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/llm"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/observability"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/pipeline"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one article end-to-end",
	Long: `Run the full pipeline for a single keyword in the foreground: research -> writer -> seo -> qa, revising until QA passes or the iteration budget runs out.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runGenerate,
}

var (
	genConfigPath    string
	genKeyword       string
	genMaxIterations int
	genAPIKey        string
	genDatabaseURL   string
	genVerbose       bool
)

func init() {
	generateCmd.Flags().StringVar(&genConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	generateCmd.Flags().StringVarP(&genKeyword, "keyword", "k", "", "Target keyword to generate an article for")
	generateCmd.Flags().IntVar(&genMaxIterations, "max-iterations", 0, "Revision loop budget (default 3)")
	generateCmd.Flags().StringVar(&genAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	generateCmd.Flags().StringVar(&genDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print detailed pipeline output")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	var cfg config.Config
	if genConfigPath != "" {
		loadedCfg, err := config.LoadConfig(genConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
	}

	// Command-line args take priority over config file values.
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = genMaxIterations
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = genAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = genDatabaseURL
	}
	cfg.Verbose = cfg.Verbose || genVerbose

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if genKeyword == "" {
		return fmt.Errorf("--keyword is required")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("Gemini API key is required (--api-key or GEMINI_API_KEY)")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (--db-url or DATABASE_URL)")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	jobService := jobs.NewService(database)
	job, err := jobService.Create(ctx, jobs.CreateParams{
		Keyword:       genKeyword,
		MaxIterations: cfg.MaxIterations,
		CreatedBy:     "cli",
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created job %s for keyword %q\n", job.ID, job.Keyword)

	orch := pipeline.NewOrchestrator(database, agents.NewRegistry(client))
	if cfg.Verbose {
		orch.SetCallbacks(verboseCallbacks())
	}

	result, err := orch.Run(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	finished, err := jobService.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintJobSummary(finished)

	if !result.QAPassed && result.Success {
		fmt.Println("Note: the quality gate was not met; the best draft was kept.")
	}
	return nil
}

// verboseCallbacks narrates each agent step with the formatted printers.
func verboseCallbacks() pipeline.Callbacks {
	printer := observability.NewPrinter(os.Stdout)
	return pipeline.Callbacks{
		OnAgentStart: func(agent types.AgentType, iteration int) {
			fmt.Printf("▶ %s (iteration %d)\n", agent, iteration)
		},
		OnAgentComplete: func(agent types.AgentType, iteration int, step *types.Step) {
			switch agent {
			case types.AgentResearch:
				var brief types.ResearchBrief
				if json.Unmarshal(step.Output, &brief) == nil {
					printer.PrintResearchBrief(&brief)
				}
			case types.AgentWriter:
				var draft types.ArticleDraft
				if json.Unmarshal(step.Output, &draft) == nil {
					printer.PrintDraft(&draft, iteration)
				}
			case types.AgentSEO:
				var report types.SEOReport
				if json.Unmarshal(step.Output, &report) == nil {
					printer.PrintSEOReport(&report)
				}
			case types.AgentQA:
				var report types.QAReport
				if json.Unmarshal(step.Output, &report) == nil {
					printer.PrintQAReport(&report, iteration)
				}
			}
		},
	}
}
