package build

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/renderinc/blogpipe/internal/artifact"
	"github.com/renderinc/blogpipe/internal/config"
	"github.com/renderinc/blogpipe/internal/content"
)

// Snapshotter persists a corpus. beforeCommit runs inside the same unit of
// work; its failure must leave the previous snapshot in place.
type Snapshotter interface {
	ContentHashes(ctx context.Context) (map[string]string, error)
	ReplaceCorpus(ctx context.Context, corpus *content.Corpus, beforeCommit func() error) error
}

// Report summarizes one pipeline run.
type Report struct {
	Stats
	NewPosts       int
	UpdatedPosts   int
	UnchangedPosts int
	RemovedPosts   int
	Artifacts      []string
	Elapsed        time.Duration
}

// Pipeline runs a full build: compile, generate artifacts, write artifacts
// and store the snapshot.
type Pipeline struct {
	builder *Builder
	site    config.SiteConfig
	output  config.OutputConfig
	store   Snapshotter
	log     zerolog.Logger
}

// NewPipeline wires a pipeline. store may be nil, in which case only the
// artifacts are written.
func NewPipeline(builder *Builder, site config.SiteConfig, output config.OutputConfig, store Snapshotter, log zerolog.Logger) *Pipeline {
	return &Pipeline{builder: builder, site: site, output: output, store: store, log: log}
}

// Run builds the corpus and publishes it. Nothing is written unless every
// document compiles.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	startTime := time.Now()

	corpus, stats, err := p.builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	files, err := artifact.Generate(corpus, p.site, p.output)
	if err != nil {
		return nil, fmt.Errorf("generate artifacts: %w", err)
	}

	report := &Report{Stats: *stats, Artifacts: files.Names()}

	if p.store == nil {
		if err := artifact.WriteAll(p.output.Dir, files); err != nil {
			return nil, fmt.Errorf("write artifacts: %w", err)
		}
	} else {
		previous, err := p.store.ContentHashes(ctx)
		if err != nil {
			return nil, fmt.Errorf("read previous snapshot: %w", err)
		}
		report.diff(previous, corpus)

		staged, err := artifact.Stage(p.output.Dir, files)
		if err != nil {
			return nil, fmt.Errorf("write artifacts: %w", err)
		}

		// Artifacts go in place inside the snapshot transaction; a failed
		// commit puts the previous artifacts back.
		install := func() error {
			if err := staged.Install(); err != nil {
				return fmt.Errorf("write artifacts: %w", err)
			}
			return nil
		}
		if err := p.store.ReplaceCorpus(ctx, corpus, install); err != nil {
			if rerr := staged.Rollback(); rerr != nil {
				p.log.Error().Err(rerr).Msg("restoring previous artifacts failed")
			}
			return nil, fmt.Errorf("store snapshot: %w", err)
		}
		if err := staged.Commit(); err != nil {
			p.log.Warn().Err(err).Msg("artifact backups not removed")
		}
	}

	report.Elapsed = time.Since(startTime)
	p.log.Info().
		Strs("artifacts", report.Artifacts).
		Int("new", report.NewPosts).
		Int("updated", report.UpdatedPosts).
		Int("removed", report.RemovedPosts).
		Dur("duration", report.Elapsed).
		Msg("build published")

	return report, nil
}

func (r *Report) diff(previous map[string]string, corpus *content.Corpus) {
	seen := make(map[string]bool, corpus.Len())
	for _, rec := range corpus.Records() {
		seen[rec.Identifier] = true
		hash, ok := previous[rec.Identifier]
		switch {
		case !ok:
			r.NewPosts++
		case hash != rec.ContentHash:
			r.UpdatedPosts++
		default:
			r.UnchangedPosts++
		}
	}
	for id := range previous {
		if !seen[id] {
			r.RemovedPosts++
		}
	}
}
