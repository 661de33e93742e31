package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
	"github.com/BStoller/deep-research/pkg/config"
	"github.com/BStoller/deep-research/pkg/research"
	"github.com/BStoller/deep-research/pkg/search"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Service runs research jobs in the background and tracks them in memory.
// Runs are stateless by design, so nothing survives a restart.
type Service struct {
	Cfg      *config.Config
	Model    llms.Model
	Search   search.Provider
	Budgeter *budget.Budgeter

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	logs map[uuid.UUID][]LogEntry
}

func NewService(cfg *config.Config, model llms.Model, provider search.Provider, b *budget.Budgeter) *Service {
	return &Service{
		Cfg:      cfg,
		Model:    model,
		Search:   provider,
		Budgeter: b,
		jobs:     make(map[uuid.UUID]*Job),
		logs:     make(map[uuid.UUID][]LogEntry),
	}
}

type Job struct {
	ID        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status"`
	Breadth   int       `json:"breadth"`
	Depth     int       `json:"depth"`
	Report    *string   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	Learnings int       `json:"learnings"`
	Sources   int       `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateJobRequest struct {
	Topic   string `json:"topic"`
	Breadth int    `json:"breadth"`
	Depth   int    `json:"depth"`
}

type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Service) CreateJob(req CreateJobRequest) (Job, error) {
	if req.Topic == "" {
		return Job{}, fmt.Errorf("topic is required")
	}
	if req.Breadth <= 0 {
		req.Breadth = s.Cfg.Breadth
	}
	if req.Depth < 0 {
		req.Depth = s.Cfg.Depth
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New(),
		Topic:     req.Topic,
		Status:    "pending",
		Breadth:   req.Breadth,
		Depth:     req.Depth,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runWorker(job.ID)

	return *job, nil
}

func (s *Service) GetJob(id uuid.UUID) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

func (s *Service) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (s *Service) GetJobLogs(id uuid.UUID) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.jobs[id]; !ok {
		return nil, ErrJobNotFound
	}
	return append([]LogEntry(nil), s.logs[id]...), nil
}

func (s *Service) appendLog(id uuid.UUID, entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = append(s.logs[id], entry)
}

func (s *Service) update(id uuid.UUID, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}

func (s *Service) runWorker(id uuid.UUID) {
	ctx := context.Background()

	s.mu.RLock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.RUnlock()
		return
	}
	topic, breadth, depth := job.Topic, job.Breadth, job.Depth
	s.mu.RUnlock()

	s.update(id, func(j *Job) { j.Status = "running" })

	jobLogger := slog.New(NewMemoryLogHandler(s, id))

	engine := research.NewEngine(research.Config{
		Breadth:     breadth,
		Depth:       depth,
		Concurrency: s.Cfg.Concurrency,
	}, s.Model, s.Search, s.Budgeter)
	engine.Logger = jobLogger
	engine.OnProgress = func(p research.Progress) {
		s.update(id, func(j *Job) {
			j.Learnings = p.Learnings
			j.Sources = p.URLs
		})
	}

	result, err := engine.Run(ctx, topic)
	if err != nil {
		s.failJob(id, jobLogger, fmt.Sprintf("Research failed: %v", err))
		return
	}

	report, err := research.ComposeReport(ctx, s.Model, s.Budgeter, topic, topic, result.Learnings, result.VisitedURLs)
	if err != nil {
		s.failJob(id, jobLogger, fmt.Sprintf("Report composition failed: %v", err))
		return
	}

	s.update(id, func(j *Job) {
		j.Status = "completed"
		j.Report = &report
		j.Learnings = len(result.Learnings)
		j.Sources = len(result.VisitedURLs)
	})
	jobLogger.Info("Job completed", "learnings", len(result.Learnings), "sources", len(result.VisitedURLs))
}

func (s *Service) failJob(id uuid.UUID, logger *slog.Logger, reason string) {
	logger.Error(reason)
	s.update(id, func(j *Job) {
		j.Status = "failed"
		j.Error = reason
	})
}
