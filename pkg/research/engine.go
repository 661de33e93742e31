package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
	"github.com/BStoller/deep-research/pkg/search"
)

const (
	// ConcurrencyLimit caps in-flight branches per orchestrator call. Small
	// on purpose: every branch issues a search and two model calls, and the
	// downstream providers rate-limit aggressively.
	ConcurrencyLimit = 2

	// NumLearnings is how many learnings each distillation pass keeps.
	NumLearnings = 5

	// PerDocumentTokens bounds each search result before it enters a prompt,
	// keeping total prompt size proportional to the result count rather than
	// the raw page size.
	PerDocumentTokens = 35_000

	// ReportContextTokens bounds the learnings block in the final synthesis
	// prompt, sized for large-context reasoning models.
	ReportContextTokens = 175_000
)

// Progress describes one completed branch of the research tree.
type Progress struct {
	Query     string
	Breadth   int
	Depth     int
	Learnings int
	URLs      int
}

// Engine drives the recursive research loop: plan sub-queries, search and
// distill each one concurrently, then recurse on the follow-up questions
// until depth is exhausted.
type Engine struct {
	Config     Config
	Model      llms.Model
	Search     search.Provider
	Budgeter   *budget.Budgeter
	Logger     *slog.Logger
	OnProgress func(Progress)

	planner   *Planner
	distiller *Distiller
}

func NewEngine(cfg Config, model llms.Model, provider search.Provider, b *budget.Budgeter) *Engine {
	return &Engine{
		Config:    cfg,
		Model:     model,
		Search:    provider,
		Budgeter:  b,
		Logger:    slog.Default(),
		planner:   &Planner{Model: model},
		distiller: &Distiller{Model: model, Budgeter: b},
	}
}

func (e *Engine) concurrency() int {
	if e.Config.Concurrency > 0 {
		return e.Config.Concurrency
	}
	return ConcurrencyLimit
}

// Run executes a full research tree for query and returns the deduplicated
// union of every learning and visited URL across all branches reached.
func (e *Engine) Run(ctx context.Context, query string) (Result, error) {
	e.Logger.Info("Starting research", "query", query, "breadth", e.Config.Breadth, "depth", e.Config.Depth)
	return e.research(ctx, query, e.Config.Breadth, e.Config.Depth, Result{})
}

// research is one node of the tree. acc is the caller's accumulated state;
// it is never mutated, only extended through value-returning unions, so
// concurrent siblings cannot race on it.
func (e *Engine) research(ctx context.Context, query string, breadth, depth int, acc Result) (Result, error) {
	queries, err := e.planner.Plan(ctx, query, acc.Learnings, breadth)
	if err != nil {
		// Without queries there is nothing to fan out; this aborts the
		// whole call rather than a single branch.
		return Result{}, fmt.Errorf("planning failed: %w", err)
	}
	// Bound the fan-out even if the planner over-produces. Taking the tail
	// rather than the head is a policy choice, not a contract.
	if len(queries) > breadth {
		queries = queries[len(queries)-breadth:]
	}
	e.Logger.Info("Planned sub-queries", "count", len(queries), "depth", depth)

	results := make([]Result, len(queries))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.concurrency())

	for i, q := range queries {
		wg.Add(1)
		go func(i int, subQuery string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			results[i] = e.branch(ctx, subQuery, breadth, depth, acc)
		}(i, q)
	}
	wg.Wait()

	merged := acc
	for _, r := range results {
		merged = merged.union(r)
	}
	return merged, nil
}

// branch explores one sub-query. Every failure below this point is isolated:
// the branch contributes an empty result and its siblings proceed untouched.
func (e *Engine) branch(ctx context.Context, subQuery string, breadth, depth int, acc Result) Result {
	docs, err := e.Search.Search(ctx, subQuery, search.DefaultOptions())
	if err != nil {
		if errors.Is(err, search.ErrTimeout) {
			e.Logger.Warn("Search timed out, skipping branch", "query", subQuery)
		} else {
			e.Logger.Error("Search failed, skipping branch", "query", subQuery, "error", err)
		}
		return Result{}
	}

	newBreadth := (breadth + 1) / 2
	newDepth := depth - 1

	distilled, err := e.distiller.Distill(ctx, subQuery, docs, NumLearnings, newBreadth)
	if err != nil {
		// Isolated the same way as a search failure, with its own
		// classification in the logs.
		e.Logger.Error("Distillation failed, skipping branch", "query", subQuery, "error", err)
		return Result{}
	}

	urls := make([]string, 0, len(docs))
	for _, doc := range docs {
		urls = append(urls, doc.URL)
	}
	local := acc.union(Result{Learnings: distilled.Learnings, VisitedURLs: urls})

	if e.OnProgress != nil {
		e.OnProgress(Progress{
			Query:     subQuery,
			Breadth:   breadth,
			Depth:     depth,
			Learnings: len(local.Learnings),
			URLs:      len(local.VisitedURLs),
		})
	}

	if newDepth <= 0 {
		return local
	}

	next := fmt.Sprintf("Previous research goal: %s\nFollow-up research directions:\n%s",
		subQuery, strings.Join(distilled.FollowUps, "\n"))
	e.Logger.Info("Recursing", "query", subQuery, "breadth", newBreadth, "depth", newDepth)

	deeper, err := e.research(ctx, next, newBreadth, newDepth, local)
	if err != nil {
		e.Logger.Error("Recursive research failed, skipping branch", "query", subQuery, "error", err)
		return Result{}
	}
	return deeper
}
