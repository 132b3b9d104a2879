// Package build compiles every source document into one corpus snapshot and
// publishes the snapshot's artifacts. A build either succeeds as a whole or
// leaves every output untouched.
package build

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/renderinc/blogpipe/internal/cache"
	"github.com/renderinc/blogpipe/internal/compiler"
	"github.com/renderinc/blogpipe/internal/content"
	"github.com/renderinc/blogpipe/internal/document"
	"github.com/renderinc/blogpipe/internal/schema"
)

// Options configures a Builder.
type Options struct {
	Root          string
	Collection    string
	Extensions    []string
	Concurrency   int
	DefaultAuthor string
	Components    []string
	Cache         cache.Cache
	Logger        zerolog.Logger
}

// Builder turns a content tree into a corpus.
type Builder struct {
	root        string
	collection  string
	exts        []string
	concurrency int
	validator   *schema.Validator
	compiler    *compiler.Compiler
	cache       cache.Cache
	log         zerolog.Logger
}

func NewBuilder(opts Options) *Builder {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	return &Builder{
		root:        opts.Root,
		collection:  opts.Collection,
		exts:        opts.Extensions,
		concurrency: opts.Concurrency,
		validator:   schema.New(opts.DefaultAuthor),
		compiler:    compiler.New(opts.Components),
		cache:       opts.Cache,
		log:         opts.Logger,
	}
}

// Stats holds build statistics
type Stats struct {
	Documents int
	Published int
	Drafts    int
	CacheHits int
	Duration  time.Duration
}

// Build compiles every document. On any failure it returns the joined errors
// of all failing documents and no corpus.
func (b *Builder) Build(ctx context.Context) (*content.Corpus, *Stats, error) {
	startTime := time.Now()
	stats := &Stats{}

	paths, err := Enumerate(b.root, b.collection, b.exts)
	if err != nil {
		return nil, nil, err
	}
	stats.Documents = len(paths)
	b.log.Info().Int("count", len(paths)).Str("path", b.root).Msg("enumerated source documents")

	jobs := make(chan int, len(paths))
	for i := range paths {
		jobs <- i
	}
	close(jobs)

	records := make([]*content.PostRecord, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for w := 0; w < b.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = fmt.Errorf("%s: %w", paths[i], err)
					continue
				}
				rec, hit, err := b.compileFile(ctx, paths[i])
				if err != nil {
					b.log.Error().Err(err).Str("path", paths[i]).Msg("document failed")
					errs[i] = err
					continue
				}
				records[i] = rec
				if hit {
					mu.Lock()
					stats.CacheHits++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}

	corpusRecords := make([]content.PostRecord, len(records))
	for i, rec := range records {
		corpusRecords[i] = *rec
		if rec.Published {
			stats.Published++
		} else {
			stats.Drafts++
		}
	}

	if err := checkUnique(corpusRecords); err != nil {
		return nil, nil, err
	}

	stats.Duration = time.Since(startTime)
	b.log.Info().
		Int("count", stats.Documents).
		Int("published", stats.Published).
		Int("drafts", stats.Drafts).
		Int("cache_hits", stats.CacheHits).
		Dur("duration", stats.Duration).
		Msg("corpus built")

	return content.NewCorpus(corpusRecords), stats, nil
}

// compileFile validates and compiles one source file. The bool reports a
// compile cache hit.
func (b *Builder) compileFile(ctx context.Context, path string) (*content.PostRecord, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := b.validator.Parse(path, raw)
	if err != nil {
		return nil, false, err
	}

	out, hit, err := b.compileBody(ctx, doc)
	if err != nil {
		return nil, false, err
	}

	rec, err := compiler.NewRecord(b.root, doc, out)
	if err != nil {
		return nil, false, err
	}
	rec.ContentHash = fmt.Sprintf("%x", md5.Sum(raw))

	b.log.Debug().Str("path", path).Str("identifier", rec.Identifier).Bool("cached", hit).Msg("compiled")
	return rec, hit, nil
}

// compileBody consults the cache first. Cache failures are logged and the
// body is compiled as if the entry were missing.
func (b *Builder) compileBody(ctx context.Context, doc *schema.Document) (*compiler.Output, bool, error) {
	key := cache.Key(b.compiler.Components(), doc.Body)

	data, ok, err := b.cache.Get(ctx, key)
	if err != nil {
		b.log.Warn().Err(err).Str("path", doc.Path).Msg("compile cache read failed")
	}
	if ok {
		var out compiler.Output
		err := json.Unmarshal(data, &out)
		switch {
		case err != nil || out.Unit == nil:
			b.log.Warn().Str("path", doc.Path).Msg("discarding undecodable compile cache entry")
		case out.Unit.Version != document.UnitVersion:
			b.log.Debug().Str("path", doc.Path).Int("version", out.Unit.Version).Msg("discarding stale compile cache entry")
		default:
			return &out, true, nil
		}
	}

	out, err := b.compiler.CompileBody(doc.Path, doc.Body, doc.BodyLine)
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := b.cache.Set(ctx, key, data); err != nil {
			b.log.Warn().Err(err).Str("path", doc.Path).Msg("compile cache write failed")
		}
	}
	return out, false, nil
}

// checkUnique reports every slug and identifier claimed by more than one
// document, in first-seen order.
func checkUnique(records []content.PostRecord) error {
	var errs []error
	for _, kind := range []string{"slug", "identifier"} {
		seen := make(map[string][]string)
		var order []string
		for _, r := range records {
			key := r.Identifier
			if kind == "slug" {
				key = r.Slug()
			}
			if _, ok := seen[key]; !ok {
				order = append(order, key)
			}
			seen[key] = append(seen[key], r.SourcePath)
		}
		for _, key := range order {
			if paths := seen[key]; len(paths) > 1 {
				errs = append(errs, &DuplicateError{Kind: kind, Key: key, Paths: paths})
			}
		}
	}
	return errors.Join(errs...)
}
