// Package search answers interactive queries against the published search
// index artifact, loaded lazily on first activation.
package search

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/renderinc/blogpipe/internal/artifact"
	"github.com/renderinc/blogpipe/internal/content"
)

// DefaultLimit bounds the number of results per query.
const DefaultLimit = 10

// State is the load state of an Engine.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadFailed:
		return "load_failed"
	}
	return "unknown"
}

// Result is one query hit.
type Result struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Engine owns one loaded index. A failed or pending load degrades every
// query to no results.
type Engine struct {
	fetcher Fetcher
	limit   int
	log     zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	settled    chan struct{}
	index      *Index
	entries    []content.SearchIndexEntry
	err        error
}

func NewEngine(fetcher Fetcher, limit int, log zerolog.Logger) *Engine {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{fetcher: fetcher, limit: limit, log: log}
}

// Open activates the engine. It starts a load when nothing is loaded or the
// previous load failed, and returns without waiting for it.
func (e *Engine) Open(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Loading || e.state == Ready {
		return
	}

	e.generation++
	e.state = Loading
	e.err = nil
	e.settled = make(chan struct{})
	go e.load(ctx, e.generation, e.settled)
}

// Close deactivates the engine. A load still in flight is superseded: its
// result is dropped when it arrives and the next Open starts afresh.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Loading {
		return
	}
	e.generation++
	e.state = Unloaded
	close(e.settled)
	e.settled = nil
}

// Shutdown releases the loaded index.
func (e *Engine) Shutdown() error {
	e.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.index
	e.index, e.entries = nil, nil
	if e.state == Ready {
		e.state = Unloaded
	}
	if idx != nil {
		return idx.Close()
	}
	return nil
}

func (e *Engine) load(ctx context.Context, generation uint64, settled chan struct{}) {
	entries, idx, err := e.fetchAndIndex(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation {
		e.log.Debug().Uint64("generation", generation).Msg("discarding superseded search index load")
		if idx != nil {
			idx.Close()
		}
		return
	}

	if err != nil {
		e.state = LoadFailed
		e.err = err
		e.log.Warn().Err(err).Msg("search index load failed")
	} else {
		e.state = Ready
		e.index = idx
		e.entries = entries
		e.log.Info().Int("count", len(entries)).Msg("search index loaded")
	}
	close(settled)
	e.settled = nil
}

func (e *Engine) fetchAndIndex(ctx context.Context) ([]content.SearchIndexEntry, *Index, error) {
	data, err := e.fetcher.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	entries, err := artifact.ParseSearchIndex(data)
	if err != nil {
		return nil, nil, err
	}
	idx, err := NewIndex(entries)
	if err != nil {
		return nil, nil, err
	}
	return entries, idx, nil
}

// State reports the current load state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error of the last failed load.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Wait blocks until the pending load settles or ctx is done, then reports
// the state.
func (e *Engine) Wait(ctx context.Context) State {
	e.mu.Lock()
	settled := e.settled
	e.mu.Unlock()

	if settled != nil {
		select {
		case <-settled:
		case <-ctx.Done():
		}
	}
	return e.State()
}

// Search returns up to the configured limit of matches. Blank queries return
// no results without consulting the index.
func (e *Engine) Search(q string) []Result {
	results := []Result{}
	if strings.TrimSpace(q) == "" {
		return results
	}

	e.mu.Lock()
	state, idx, entries := e.state, e.index, e.entries
	e.mu.Unlock()

	if state != Ready {
		return results
	}

	positions, err := idx.Search(q, e.limit)
	if err != nil {
		e.log.Warn().Err(err).Str("query", q).Msg("search failed")
		return results
	}

	for _, pos := range positions {
		entry := entries[pos]
		results = append(results, Result{
			Identifier:  entry.Identifier,
			Title:       entry.Title,
			Description: entry.Description,
		})
	}
	return results
}
