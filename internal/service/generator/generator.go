package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fcch/access-control/internal/acl"
	"github.com/fcch/access-control/internal/config"
	"github.com/fcch/access-control/internal/domain/generation"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/repository/status"
)

var errUnexpectedStatus = errors.New("unexpected status")

// Generator regenerates every allow-list from the membership table.
type Generator struct {
	// cfg is the validated generator section.
	cfg config.Generator
	// store receives the lists.
	store *acl.Store
	// repo records the outcome of each run.
	repo status.Repository
	// http downloads remote tables.
	http *http.Client
	// now stamps each run.
	now func() time.Time

	// mu guards running.
	mu sync.Mutex
	// running is true while Start's goroutine works.
	running bool
	// wg tracks background runs.
	wg sync.WaitGroup
}

// New creates a generator from a validated configuration section.
func New(cfg config.Generator, repo status.Repository) *Generator {
	return &Generator{
		cfg:   cfg,
		store: acl.NewStore(cfg.ACLDir),
		repo:  repo,
		http:  &http.Client{Timeout: cfg.FetchTimeout},
		now:   time.Now,
	}
}

// Run performs one generation and records its status. The returned status
// is also returned on failure, with Success false.
func (g *Generator) Run(ctx context.Context) (*generation.Status, error) {
	ctx = logger.WithName(ctx, "generator")

	release, err := acquireMarker(ctx, g.cfg.MarkerFile)
	if err != nil {
		return nil, err
	}
	defer release()

	st := &generation.Status{
		GeneratedAt: g.now(),
		Source:      g.cfg.Source,
	}

	counts, err := g.generate(ctx, st.GeneratedAt)
	if err != nil {
		st.Error = err.Error()
		logger.ErrorKV(ctx, "Allow-list generation failed", "error", err)
	} else {
		st.Success = true
		st.Counts = counts
		logger.InfoKV(ctx, "Allow-lists generated", "lists", len(counts), "entries", st.Total())
	}

	if saveErr := g.repo.Save(ctx, st); saveErr != nil {
		logger.ErrorKV(ctx, "Unable to save generation status", "error", saveErr)

		if err == nil {
			err = fmt.Errorf("save status: %w", saveErr)
		}
	}

	return st, err
}

func (g *Generator) generate(ctx context.Context, generatedAt time.Time) (map[string]int, error) {
	logger.InfoKV(ctx, "Reading membership table", "source", g.cfg.Source)

	src, err := openSource(ctx, g.http, g.cfg.Source)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = src.Close()
	}()

	lists, err := ParseTable(src, TableOptions{Always: g.cfg.Always, Rename: g.cfg.Rename})
	if err != nil {
		return nil, err
	}

	if err = g.store.Replace(lists, generatedAt); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(lists))
	for name, ids := range lists {
		counts[name] = len(sliceToSet(ids))
	}

	return counts, nil
}

// Start runs a generation in the background. It fails with
// generation.ErrAlreadyRunning while a previous one is still in progress.
// The run outlives ctx's cancellation but keeps its logger.
func (g *Generator) Start(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return generation.ErrAlreadyRunning
	}

	g.running = true
	g.wg.Add(1)

	go func() {
		defer g.wg.Done()

		defer func() {
			g.mu.Lock()
			g.running = false
			g.mu.Unlock()
		}()

		_, _ = g.Run(ctx)
	}()

	return nil
}

// Running reports whether a background generation is in progress.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.running
}

// Wait blocks until background generations have finished.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
