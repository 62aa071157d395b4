package server

import (
	"github.com/magicfolder/brain/pipeline"
)

// errNoPath is the reply for an empty or missing file list.
const errNoPath = "No path provided"

// Request is the classification request envelope. The batch `files` form
// is canonical; the legacy singleton `path` form is normalized into a
// one-element batch at this boundary so nothing downstream branches on it.
type Request struct {
	Files []string `json:"files"`
	Path  string   `json:"path"`
}

// Paths returns the normalized batch.
func (r *Request) Paths() []string {
	if len(r.Files) > 0 {
		return r.Files
	}
	if r.Path != "" {
		return []string{r.Path}
	}
	return nil
}

// FileResult is one per-path verdict in the reply.
type FileResult struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Error    string `json:"error,omitempty"`
}

// Response is the reply envelope. Exactly one of Results or Error is set.
// Result order is not contractual; callers match entries by path.
type Response struct {
	Results []FileResult `json:"results,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// toResponse converts pipeline results into the wire shape.
func toResponse(results []pipeline.Result) Response {
	resp := Response{Results: make([]FileResult, len(results))}
	for i, r := range results {
		resp.Results[i] = FileResult{
			Path:     r.Path,
			Category: r.Category.String(),
			Error:    r.Err,
		}
	}
	return resp
}
