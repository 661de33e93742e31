package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// MemoryLogHandler is a slog.Handler that appends records to a job's
// in-memory log, so clients can follow a background run over the API.
type MemoryLogHandler struct {
	service *Service
	jobID   uuid.UUID
	attrs   []slog.Attr
}

func NewMemoryLogHandler(s *Service, jobID uuid.UUID) *MemoryLogHandler {
	return &MemoryLogHandler{service: s, jobID: jobID}
}

func (h *MemoryLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *MemoryLogHandler) Handle(ctx context.Context, r slog.Record) error {
	metadata := make(map[string]any)
	for _, a := range h.attrs {
		metadata[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		metadata[a.Key] = a.Value.Any()
		return true
	})

	h.service.appendLog(h.jobID, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  metadata,
	})
	return nil
}

func (h *MemoryLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &MemoryLogHandler{service: h.service, jobID: h.jobID, attrs: merged}
}

func (h *MemoryLogHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened; the job log is a simple list.
	return h
}
