package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
	"github.com/BStoller/deep-research/pkg/clients"
	"github.com/BStoller/deep-research/pkg/config"
	"github.com/BStoller/deep-research/pkg/research"
	"github.com/BStoller/deep-research/pkg/search"
)

var (
	query      string
	breadth    int
	depth      int
	noFeedback bool
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "An autonomous deep research agent",
		Long: `deep-research plans search queries for a topic, searches and distills the
results into learnings, recursively explores follow-up directions to a bounded
depth, and writes a final Markdown report with sources.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research query")
	rootCmd.Flags().IntVarP(&breadth, "breadth", "b", cfg.Breadth, "Sibling queries explored per level")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", cfg.Depth, "Recursive expansion levels")
	rootCmd.Flags().BoolVar(&noFeedback, "no-feedback", false, "Skip the clarifying-question round")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	if query == "" {
		// Interactive Mode
		fmt.Print("What would you like to research? ")
		input, _ := reader.ReadString('\n')
		query = strings.TrimSpace(input)
		if query == "" {
			return fmt.Errorf("query cannot be empty")
		}
	}

	fastModel, err := newModel(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("failed to init fast model: %w", err)
	}
	reasoningModel, err := newModel(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to init reasoning model: %w", err)
	}

	counter, err := budget.NewTiktokenCounter(budget.DefaultEncoding)
	if err != nil {
		return fmt.Errorf("failed to init tokenizer: %w", err)
	}
	budgeter := budget.New(counter)

	provider := newProvider(cfg)

	// Clarifying-question round: sharpen the goal before spending searches.
	goal := query
	if !noFeedback {
		questions, err := research.FollowUpQuestions(ctx, reasoningModel, query, 3)
		if err != nil {
			return fmt.Errorf("failed to generate clarifying questions: %w", err)
		}

		var qa strings.Builder
		for _, q := range questions {
			fmt.Printf("\n%s\n> ", q)
			input, _ := reader.ReadString('\n')
			fmt.Fprintf(&qa, "Q: %s\nA: %s\n", q, strings.TrimSpace(input))
		}
		if qa.Len() > 0 {
			goal = fmt.Sprintf("Initial Query: %s\n\nFollow-up Questions and Answers:\n%s", query, qa.String())
		}
	}

	slog.Info("Starting research", "breadth", breadth, "depth", depth)

	engine := research.NewEngine(research.Config{
		Breadth:     breadth,
		Depth:       depth,
		Concurrency: cfg.Concurrency,
	}, fastModel, provider, budgeter)

	result, err := engine.Run(ctx, goal)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}
	slog.Info("Research finished", "learnings", len(result.Learnings), "sources", len(result.VisitedURLs))

	report, err := research.ComposeReport(ctx, reasoningModel, budgeter, goal, query, result.Learnings, result.VisitedURLs)
	if err != nil {
		return fmt.Errorf("report composition failed: %w", err)
	}

	reportFilename := fmt.Sprintf("report_%d.md", time.Now().Unix())
	if err := os.WriteFile(reportFilename, []byte(report), 0644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	fmt.Println(report)
	slog.Info("Report saved", "filename", reportFilename)
	return nil
}

func newModel(ctx context.Context, cfg *config.Config, reasoning bool) (llms.Model, error) {
	switch cfg.Provider {
	case "google":
		model := cfg.FastModel
		if model == "" {
			model = clients.DefaultGoogleModel
		}
		if reasoning {
			model = cfg.ReasoningModel
			if model == "" {
				model = clients.GoogleReasoningModel
			}
		}
		return clients.GoogleAI(ctx, model)
	default:
		model := cfg.FastModel
		if model == "" {
			model = clients.DefaultOpenAIModel
		}
		if reasoning {
			model = cfg.ReasoningModel
			if model == "" {
				model = clients.OpenAIReasoningModel
			}
		}
		return clients.OpenAI(model)
	}
}

func newProvider(cfg *config.Config) search.Provider {
	if cfg.SearchProvider == "arxiv" {
		p := search.NewArxiv()
		if cfg.MistralKey != "" {
			p.OCR = search.NewOCRClient(cfg.MistralKey)
		}
		return p
	}
	return search.NewFirecrawl(cfg.FirecrawlBase, cfg.FirecrawlKey)
}
