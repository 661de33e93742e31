package search

import (
	"context"
	"errors"
	"net"
	"time"
)

// Result is a single retrieved document.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// ErrTimeout reports that a search did not complete within Options.Timeout.
// Callers use errors.Is to tell timeouts apart from other provider failures.
var ErrTimeout = errors.New("search timed out")

// Options control a single provider search.
type Options struct {
	Timeout         time.Duration // per-search deadline
	Limit           int           // maximum number of results
	Format          string        // content format, e.g. "markdown"
	MainContentOnly bool          // strip navigation and boilerplate
	RenderWait      time.Duration // wait for client-side rendering before scraping
}

// DefaultOptions returns the options used by the research engine.
func DefaultOptions() Options {
	return Options{
		Timeout:         15 * time.Second,
		Limit:           5,
		Format:          "markdown",
		MainContentOnly: true,
		RenderWait:      time.Second,
	}
}

// Provider executes a web search and returns scraped page content.
type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// classifyErr maps deadline and network timeouts onto ErrTimeout so the
// engine can log them distinctly from other failures.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}
