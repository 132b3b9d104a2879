package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/renderinc/blogpipe/internal/artifact"
	"github.com/renderinc/blogpipe/internal/build"
	"github.com/renderinc/blogpipe/internal/cache"
	"github.com/renderinc/blogpipe/internal/config"
	"github.com/renderinc/blogpipe/internal/document"
	"github.com/renderinc/blogpipe/internal/logger"
	"github.com/renderinc/blogpipe/internal/publish"
	"github.com/renderinc/blogpipe/internal/query"
	"github.com/renderinc/blogpipe/internal/render"
	"github.com/renderinc/blogpipe/internal/search"
	"github.com/renderinc/blogpipe/internal/storage"
	"github.com/renderinc/blogpipe/internal/web"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	globalFlags := flag.NewFlagSet("global", flag.ExitOnError)
	configPath := globalFlags.String("config", "blogpipe.yaml", "Path to the YAML config file")
	dataDirFlag := globalFlags.String("data-dir", "", "Directory for the snapshot database (overrides config)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Find where the command starts (skip global flags)
	commandIdx := 1
	for i := 1; i < len(os.Args); i++ {
		if !strings.HasPrefix(os.Args[i], "-") {
			commandIdx = i
			break
		}
	}
	if commandIdx > 1 {
		globalFlags.Parse(os.Args[1:commandIdx])
	}

	var err error
	cfg, err = config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log = *logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[commandIdx]
	args := os.Args[commandIdx+1:]

	switch command {
	case "build":
		buildFlags := flag.NewFlagSet("build", flag.ExitOnError)
		noStore := buildFlags.Bool("no-store", false, "Write artifacts without updating the snapshot database")
		buildFlags.Parse(args)
		err = runBuild(ctx, *noStore)
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		port := serveFlags.String("port", cfg.Server.Port, "Port to listen on")
		host := serveFlags.String("host", cfg.Server.Host, "Host to bind to")
		serveFlags.Parse(args)
		cfg.Server.Port, cfg.Server.Host = *port, *host
		err = runServe(ctx)
	case "search":
		if len(args) < 1 {
			fmt.Println("Error: search query required")
			fmt.Println("Usage: blogpipe [global-flags] search <query>")
			os.Exit(1)
		}
		err = runSearch(ctx, strings.Join(args, " "))
	case "stats":
		err = runStats(ctx)
	case "get-doc":
		if len(args) < 1 {
			fmt.Println("Error: post identifier required")
			fmt.Println("Usage: blogpipe [global-flags] get-doc <identifier>")
			os.Exit(1)
		}
		err = runGetDoc(ctx, args[0])
	case "verify-feed":
		err = runVerifyFeed()
	case "publish":
		err = runPublish(ctx)
	case "clear-cache":
		err = runClearCache(ctx)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("blogpipe - content pipeline for the blog")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  blogpipe [global-flags] <command> [flags]")
	fmt.Println()
	fmt.Println("Global Flags:")
	fmt.Println("  --config=<file>    YAML config file (default: blogpipe.yaml)")
	fmt.Println("  --data-dir=<dir>   Directory for the snapshot database")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  build [-no-store]  Compile the content tree and write the search index and feed")
	fmt.Println("  serve [flags]      Start the preview server")
	fmt.Println("  search <query>     Query the built search index")
	fmt.Println("  stats              Show snapshot statistics")
	fmt.Println("  get-doc <id>       Print a stored post as JSON")
	fmt.Println("  verify-feed        Parse the built feed and list its items")
	fmt.Println("  publish            Upload built artifacts to object storage")
	fmt.Println("  clear-cache        Drop cached compile results from Redis")
	fmt.Println()
	fmt.Println("Serve Flags:")
	fmt.Println("  -host=<host>       Host to bind to (default: localhost)")
	fmt.Println("  -port=<port>       Port to listen on (default: 6893)")
}

func openCache() (cache.Cache, error) {
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
}

func openDB() (*storage.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return storage.Open(cfg.DBPath())
}

func runBuild(ctx context.Context, noStore bool) error {
	compileCache, err := openCache()
	if err != nil {
		return err
	}
	defer compileCache.Close()

	builder := build.NewBuilder(build.Options{
		Root:          cfg.Content.Root,
		Collection:    cfg.Content.Collection,
		Extensions:    cfg.Content.Extensions,
		Concurrency:   cfg.Build.Concurrency,
		DefaultAuthor: cfg.Site.DefaultAuthor,
		Components:    document.ComponentNames(),
		Cache:         compileCache,
		Logger:        log,
	})

	var pipeline *build.Pipeline
	if noStore {
		pipeline = build.NewPipeline(builder, cfg.Site, cfg.Output, nil, log)
	} else {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		pipeline = build.NewPipeline(builder, cfg.Site, cfg.Output, db, log)
	}

	report, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("=== Build Complete ===")
	fmt.Printf("Documents:     %d\n", report.Documents)
	fmt.Printf("Published:     %d\n", report.Published)
	fmt.Printf("Drafts:        %d\n", report.Drafts)
	fmt.Printf("Cache hits:    %d\n", report.CacheHits)
	if !noStore {
		fmt.Printf("New:           %d\n", report.NewPosts)
		fmt.Printf("Updated:       %d\n", report.UpdatedPosts)
		fmt.Printf("Unchanged:     %d\n", report.UnchangedPosts)
		fmt.Printf("Removed:       %d\n", report.RemovedPosts)
	}
	fmt.Printf("Artifacts:     %s\n", strings.Join(report.Artifacts, ", "))
	fmt.Printf("Duration:      %v\n", report.Elapsed)
	return nil
}

func newEngine() *search.Engine {
	var fetcher search.Fetcher = search.FileFetcher{Path: cfg.SearchIndexPath()}
	if cfg.Search.IndexURL != "" {
		fetcher = search.NewHTTPFetcher(cfg.Search.IndexURL)
	}
	return search.NewEngine(fetcher, cfg.Search.Limit, log)
}

func runServe(ctx context.Context) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	corpus, err := db.LoadCorpus(ctx)
	if err != nil {
		return err
	}

	engine := newEngine()
	defer engine.Shutdown()

	server, err := web.NewServer(ctx, query.New(corpus), engine, render.DefaultRegistry(), cfg, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              web.Addr(cfg.Server),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", httpServer.Addr).Int("posts", corpus.Len()).Msg("starting preview server")
	fmt.Printf("Starting server on http://%s\n", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runSearch(ctx context.Context, q string) error {
	engine := newEngine()
	defer engine.Shutdown()

	engine.Open(ctx)
	if state := engine.Wait(ctx); state != search.Ready {
		return fmt.Errorf("search index not available (%s): %w", state, engine.Err())
	}

	results := engine.Search(q)
	if len(results) == 0 {
		fmt.Printf("No results found for %q\n", q)
		return nil
	}

	fmt.Printf("Found %d results for %q:\n\n", len(results), q)
	for i, r := range results {
		fmt.Printf("%d. %s\n", i+1, r.Title)
		fmt.Printf("   %s\n", artifact.PostURL(cfg.Site, r.Identifier))
		if r.Description != "" {
			fmt.Printf("   %s\n", r.Description)
		}
		fmt.Println()
	}
	return nil
}

func runStats(ctx context.Context) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	total, err := db.Count(ctx, true)
	if err != nil {
		return err
	}
	published, err := db.Count(ctx, false)
	if err != nil {
		return err
	}
	builtAt, err := db.BuiltAt(ctx)
	if err != nil {
		return err
	}

	corpus, err := db.LoadCorpus(ctx)
	if err != nil {
		return err
	}
	store := query.New(corpus)

	fmt.Println("=== Snapshot Statistics ===")
	fmt.Printf("Posts:         %d\n", total)
	fmt.Printf("Published:     %d\n", published)
	fmt.Printf("Drafts:        %d\n", total-published)
	if !builtAt.IsZero() {
		fmt.Printf("Last build:    %s\n", builtAt.Format(time.RFC3339))
	}
	fmt.Printf("Tags:          %d\n", len(store.TagCounts(nil)))
	fmt.Printf("Categories:    %d\n", len(store.CategoryCounts(nil)))
	fmt.Printf("Database:      %s\n", cfg.DBPath())
	return nil
}

func runGetDoc(ctx context.Context, id string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("error retrieving post: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("post %q not found", id)
	}

	el, err := render.Try(rec.Body, render.DefaultRegistry())
	if err != nil {
		log.Warn().Err(err).Str("identifier", id).Msg("post failed to render")
		el = render.Fallback()
	}
	html, err := render.HTML(el)
	if err != nil {
		return err
	}

	fmt.Printf("# %s\n\n", rec.Title)
	fmt.Printf("identifier: %s\nlocale: %s\ndate: %s\npublished: %t\n\n", rec.Identifier, rec.Locale, rec.PublishDate.Format("2006-01-02"), rec.Published)
	fmt.Println(html)
	return nil
}

func runVerifyFeed() error {
	f, err := os.Open(cfg.FeedPath())
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}

	fmt.Printf("%s (%s), %d items\n", feed.Title, feed.FeedType, len(feed.Items))
	for _, item := range feed.Items {
		fmt.Printf("  %s  %s\n", item.Published, item.Link)
	}
	return nil
}

func runPublish(ctx context.Context) error {
	client, err := publish.NewS3Client(ctx, cfg.Publish)
	if err != nil {
		return err
	}

	publisher := publish.NewPublisher(client, cfg.Publish.Bucket, cfg.Publish.Prefix, log)
	keys, err := publisher.Publish(ctx, cfg.Output.Dir, []string{cfg.Output.SearchIndex, cfg.Output.Feed})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d artifacts to %s\n", len(keys), cfg.Publish.Bucket)
	return nil
}

func runClearCache(ctx context.Context) error {
	if cfg.Cache.RedisURL == "" {
		fmt.Println("No Redis cache configured")
		return nil
	}
	redisCache, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
	if err != nil {
		return err
	}
	defer redisCache.Close()
	return redisCache.Clear(ctx)
}
