package research

// Config holds the control knobs for a research run.
type Config struct {
	Breadth     int // sibling queries explored at the first tree level
	Depth       int // remaining recursive expansion levels
	Concurrency int // in-flight branches per orchestrator call; 0 means ConcurrencyLimit
}

// Result is the aggregate produced by every research invocation, recursive
// ones included. Both slices are deduplicated by exact string equality.
type Result struct {
	Learnings   []string `json:"learnings"`
	VisitedURLs []string `json:"visited_urls"`
}

// union returns a new Result combining r and other, preserving first-seen
// order and dropping exact duplicates. It never mutates its receiver, which
// is what lets concurrent branches share a baseline without locks.
func (r Result) union(other Result) Result {
	return Result{
		Learnings:   mergeUnique(r.Learnings, other.Learnings),
		VisitedURLs: mergeUnique(r.VisitedURLs, other.VisitedURLs),
	}
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	return merged
}
