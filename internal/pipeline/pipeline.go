// Package pipeline normalizes scraped rows through a chain of middleware.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// Middleware processes an article and returns the (possibly modified)
// article. Return nil to drop the article.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an article. Return nil to drop it.
	Process(a *types.Article) (*types.Article, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Normalizer returns the pipeline every merged table passes through.
func Normalizer(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&NewlineMiddleware{})
	p.Use(&TrimMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the article through all middleware in order.
func (p *Pipeline) Process(a *types.Article) (*types.Article, error) {
	current := a

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				URL:   current.SourceURL,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("article dropped", "stage", mw.Name(), "url", a.SourceURL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Run processes every row of t in order and returns the surviving rows and
// how many were dropped.
func (p *Pipeline) Run(t types.Table) (types.Table, int, error) {
	out := make(types.Table, 0, len(t))
	dropped := 0
	for i := range t {
		a := t[i]
		res, err := p.Process(&a)
		if err != nil {
			return nil, dropped, err
		}
		if res == nil {
			dropped++
			continue
		}
		out = append(out, *res)
	}
	return out, dropped, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
