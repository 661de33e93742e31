package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
	"github.com/BStoller/deep-research/pkg/search"
)

// testCounter gives the budgeter a deterministic tokenizer.
type testCounter struct{}

func (testCounter) Count(text string) int { return (len(text) + 2) / 3 }

// fakeModel scripts both stages of the generate-then-extract pattern. The
// free-form stage echoes its input, so the extract stage can route on the
// markers embedded in the prompt.
type fakeModel struct {
	mu            sync.Mutex
	planFn        func(notes string, call int) ([]string, error)
	distillFn     func(query string) (learnings, followUps []string)
	badDistill    map[string]bool // queries whose distill-extract stage emits garbage
	questions     []string
	planCalls     int
	extractSchema []string
	generateErr   error
}

func textOf(messages []llms.MessageContent) (system, user string) {
	for _, m := range messages {
		var sb strings.Builder
		for _, part := range m.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
		if m.Role == llms.ChatMessageTypeSystem {
			system = sb.String()
		} else {
			user = sb.String()
		}
	}
	return system, user
}

func textBetween(s, open, close string) string {
	start := strings.Index(s, open)
	if start < 0 {
		return ""
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func respond(payload interface{}) (*llms.ContentResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: string(data)}},
	}, nil
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generateErr != nil {
		return nil, f.generateErr
	}

	system, user := textOf(messages)
	switch {
	case strings.Contains(system, `"followUpQuestions"`):
		f.extractSchema = append(f.extractSchema, system)
		query := textBetween(user, "<query>", "</query>")
		if f.badDistill[query] {
			// Model ignored JSON mode; the extract stage must fail on this.
			return &llms.ContentResponse{
				Choices: []*llms.ContentChoice{{Content: "Here are the learnings I found:"}},
			}, nil
		}
		learnings, followUps := f.distillFn(query)
		return respond(map[string]interface{}{
			"learnings":         learnings,
			"followUpQuestions": followUps,
		})
	case strings.Contains(system, `"queries"`):
		f.extractSchema = append(f.extractSchema, system)
		f.planCalls++
		queries, err := f.planFn(user, f.planCalls)
		if err != nil {
			return nil, err
		}
		return respond(map[string]interface{}{"queries": queries})
	case strings.Contains(system, `"questions"`):
		return respond(map[string]interface{}{"questions": f.questions})
	default:
		// Free-form stage: echo so the extract stage sees the full context.
		return &llms.ContentResponse{
			Choices: []*llms.ContentChoice{{Content: user}},
		}, nil
	}
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", fmt.Errorf("not implemented")
}

// fakeProvider serves canned results per query and tracks concurrency.
type fakeProvider struct {
	mu          sync.Mutex
	results     map[string][]search.Result
	errs        map[string]error
	calls       []string
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func (p *fakeProvider) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, query)
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	if err := p.errs[query]; err != nil {
		return nil, err
	}
	return p.results[query], nil
}

func (p *fakeProvider) called(query string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c == query {
			return true
		}
	}
	return false
}

func doc(url string) []search.Result {
	return []search.Result{{Title: url, URL: url, Content: "content from " + url}}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func count(list []string, s string) int {
	n := 0
	for _, item := range list {
		if item == s {
			n++
		}
	}
	return n
}

func newTestEngine(cfg Config, model *fakeModel, provider *fakeProvider) *Engine {
	return NewEngine(cfg, model, provider, budget.New(testCounter{}))
}

func TestEngineDepthZeroSingleLevel(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			return []string{"q1", "q2"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"learning from " + query}, []string{"follow-up for " + query}
		},
	}
	provider := &fakeProvider{results: map[string][]search.Result{
		"q1": doc("https://example.com/1"),
		"q2": doc("https://example.com/2"),
	}}

	e := newTestEngine(Config{Breadth: 2, Depth: 0}, model, provider)
	result, err := e.Run(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.planCalls != 1 {
		t.Errorf("planner called %d times, want 1 (no recursion at depth 0)", model.planCalls)
	}
	if !contains(result.Learnings, "learning from q1") || !contains(result.Learnings, "learning from q2") {
		t.Errorf("Learnings = %v, want both branches", result.Learnings)
	}
	if !contains(result.VisitedURLs, "https://example.com/1") || !contains(result.VisitedURLs, "https://example.com/2") {
		t.Errorf("VisitedURLs = %v, want both branches", result.VisitedURLs)
	}
}

func TestEngineTakesLastBreadthQueries(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			return []string{"extra", "q1", "q2"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"learning from " + query}, nil
		},
	}
	provider := &fakeProvider{results: map[string][]search.Result{
		"q1": doc("https://example.com/1"),
		"q2": doc("https://example.com/2"),
	}}

	e := newTestEngine(Config{Breadth: 2, Depth: 0}, model, provider)
	if _, err := e.Run(context.Background(), "topic"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if provider.called("extra") {
		t.Error("over-produced query was searched, want last 2 only")
	}
	if !provider.called("q1") || !provider.called("q2") {
		t.Errorf("calls = %v, want the last two queries", provider.calls)
	}
}

func TestEngineDeduplicatesAcrossBranches(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			return []string{"q1", "q2"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"shared learning"}, nil
		},
	}
	provider := &fakeProvider{results: map[string][]search.Result{
		"q1": doc("https://example.com/same"),
		"q2": doc("https://example.com/same"),
	}}

	e := newTestEngine(Config{Breadth: 2, Depth: 0}, model, provider)
	result, err := e.Run(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := count(result.Learnings, "shared learning"); got != 1 {
		t.Errorf("duplicate learning appears %d times, want 1", got)
	}
	if got := count(result.VisitedURLs, "https://example.com/same"); got != 1 {
		t.Errorf("duplicate URL appears %d times, want 1", got)
	}
}

func TestEngineBranchIsolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"Timeout", fmt.Errorf("firecrawl request failed: %w", search.ErrTimeout)},
		{"Other failure", fmt.Errorf("status 500")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{
				planFn: func(notes string, call int) ([]string, error) {
					return []string{"good", "bad"}, nil
				},
				distillFn: func(query string) ([]string, []string) {
					return []string{"learning from " + query}, nil
				},
			}
			provider := &fakeProvider{
				results: map[string][]search.Result{"good": doc("https://example.com/good")},
				errs:    map[string]error{"bad": tt.err},
			}

			e := newTestEngine(Config{Breadth: 2, Depth: 0}, model, provider)
			result, err := e.Run(context.Background(), "topic")
			if err != nil {
				t.Fatalf("Run() error = %v, want failed branch isolated", err)
			}

			if !contains(result.Learnings, "learning from good") {
				t.Errorf("Learnings = %v, want surviving branch present", result.Learnings)
			}
			if contains(result.Learnings, "learning from bad") {
				t.Errorf("Learnings = %v, failed branch contributed", result.Learnings)
			}
		})
	}
}

func TestEngineDistillationFailureIsolated(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			return []string{"good", "bad"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"learning from " + query}, nil
		},
		badDistill: map[string]bool{"bad": true},
	}
	provider := &fakeProvider{results: map[string][]search.Result{
		"good": doc("https://example.com/good"),
		"bad":  doc("https://example.com/bad"),
	}}

	e := newTestEngine(Config{Breadth: 2, Depth: 0}, model, provider)
	result, err := e.Run(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Run() error = %v, want failed distillation isolated", err)
	}

	if !contains(result.Learnings, "learning from good") {
		t.Errorf("Learnings = %v, want surviving branch present", result.Learnings)
	}
	if contains(result.Learnings, "learning from bad") {
		t.Errorf("Learnings = %v, failed branch contributed", result.Learnings)
	}
	if contains(result.VisitedURLs, "https://example.com/bad") {
		t.Errorf("VisitedURLs = %v, failed branch contributed its URL", result.VisitedURLs)
	}
}

func TestEngineRecursivePlanningFailureIsolated(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			if !strings.Contains(notes, "Previous research goal:") {
				return []string{"q1", "q2"}, nil
			}
			if strings.Contains(notes, "q1") {
				return nil, fmt.Errorf("model unavailable")
			}
			return []string{"q2-deep"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"learning from " + query}, []string{"dig deeper into " + query}
		},
	}
	provider := &fakeProvider{results: map[string][]search.Result{
		"q1":      doc("https://example.com/1"),
		"q2":      doc("https://example.com/2"),
		"q2-deep": doc("https://example.com/2-deep"),
	}}

	e := newTestEngine(Config{Breadth: 2, Depth: 2}, model, provider)
	result, err := e.Run(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Run() error = %v, want failed recursion isolated", err)
	}

	for _, want := range []string{"learning from q2", "learning from q2-deep"} {
		if !contains(result.Learnings, want) {
			t.Errorf("Learnings = %v, missing %q", result.Learnings, want)
		}
	}
	// A branch whose recursion fails contributes nothing, including its own
	// pre-recursion learnings.
	if contains(result.Learnings, "learning from q1") {
		t.Errorf("Learnings = %v, failed subtree contributed", result.Learnings)
	}
	if contains(result.VisitedURLs, "https://example.com/1") {
		t.Errorf("VisitedURLs = %v, failed subtree contributed its URL", result.VisitedURLs)
	}
}

func TestEngineRecursionHalvesBreadth(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			if call == 1 {
				return []string{"q1", "q2"}, nil
			}
			// Recursive plans carry the combined goal forward.
			if !strings.Contains(notes, "Previous research goal:") {
				return nil, fmt.Errorf("recursive plan missing combined goal: %s", notes)
			}
			if strings.Contains(notes, "q1") {
				return []string{"q1-deep"}, nil
			}
			return []string{"q2-deep"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"learning from " + query}, []string{"dig deeper into " + query}
		},
	}
	provider := &fakeProvider{results: map[string][]search.Result{
		"q1":      doc("https://example.com/1"),
		"q2":      doc("https://example.com/2"),
		"q1-deep": doc("https://example.com/1-deep"),
		"q2-deep": doc("https://example.com/2-deep"),
	}}

	e := newTestEngine(Config{Breadth: 2, Depth: 2}, model, provider)
	result, err := e.Run(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.planCalls != 3 {
		t.Errorf("planner called %d times, want 3 (root plus one per branch)", model.planCalls)
	}
	for _, want := range []string{"learning from q1", "learning from q2", "learning from q1-deep", "learning from q2-deep"} {
		if !contains(result.Learnings, want) {
			t.Errorf("Learnings = %v, missing %q", result.Learnings, want)
		}
	}

	// ceil(2/2) = 1: second-level plans and distills are asked for one item.
	model.mu.Lock()
	defer model.mu.Unlock()
	secondLevel := 0
	for _, schema := range model.extractSchema {
		if strings.Contains(schema, "up to 1 ") {
			secondLevel++
		}
	}
	if secondLevel == 0 {
		t.Error("no second-level call used the halved breadth of 1")
	}
}

func TestEngineConcurrencyCap(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			return []string{"q1", "q2", "q3", "q4"}, nil
		},
		distillFn: func(query string) ([]string, []string) {
			return []string{"learning from " + query}, nil
		},
	}
	provider := &fakeProvider{
		delay: 30 * time.Millisecond,
		results: map[string][]search.Result{
			"q1": doc("https://example.com/1"),
			"q2": doc("https://example.com/2"),
			"q3": doc("https://example.com/3"),
			"q4": doc("https://example.com/4"),
		},
	}

	e := newTestEngine(Config{Breadth: 4, Depth: 0}, model, provider)
	if _, err := e.Run(context.Background(), "topic"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if provider.maxInFlight > ConcurrencyLimit {
		t.Errorf("max in-flight searches = %d, want <= %d", provider.maxInFlight, ConcurrencyLimit)
	}
}

func TestEnginePlanningFailureIsFatal(t *testing.T) {
	model := &fakeModel{
		planFn: func(notes string, call int) ([]string, error) {
			return nil, fmt.Errorf("model unavailable")
		},
	}
	provider := &fakeProvider{}

	e := newTestEngine(Config{Breadth: 2, Depth: 1}, model, provider)
	if _, err := e.Run(context.Background(), "topic"); err == nil {
		t.Fatal("Run() error = nil, want planning failure to abort the call")
	}
}

func TestMergeUnique(t *testing.T) {
	got := mergeUnique([]string{"a", "b"}, []string{"b", "c", "a", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("mergeUnique() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mergeUnique()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
