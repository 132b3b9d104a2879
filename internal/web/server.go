package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/renderinc/blogpipe/internal/config"
	"github.com/renderinc/blogpipe/internal/content"
	"github.com/renderinc/blogpipe/internal/query"
	"github.com/renderinc/blogpipe/internal/render"
	"github.com/renderinc/blogpipe/internal/search"
)

//go:embed templates/*.html
var templatesFS embed.FS

// searchWait bounds how long a search request waits for the index to load.
const searchWait = 5 * time.Second

type Server struct {
	store     *query.Store
	engine    *search.Engine
	registry  render.Registry
	cfg       *config.Config
	templates *template.Template
	log       zerolog.Logger

	// ctx outlives requests so a search index load is not tied to the
	// request that triggered it.
	ctx context.Context
}

// PostSummary is the list projection of a post.
type PostSummary struct {
	Identifier         string         `json:"identifier"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	PublishDate        time.Time      `json:"publishDate"`
	UpdatedDate        *time.Time     `json:"updatedDate,omitempty"`
	Locale             content.Locale `json:"locale"`
	Tags               []string       `json:"tags"`
	Categories         []string       `json:"categories"`
	Author             string         `json:"author"`
	CoverImage         string         `json:"coverImage,omitempty"`
	ReadingTimeMinutes int            `json:"readingTimeMinutes"`
}

type PostsResponse struct {
	Posts      []PostSummary `json:"posts"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
}

type SearchResponse struct {
	Query   string          `json:"query"`
	State   string          `json:"state"`
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

func NewServer(ctx context.Context, store *query.Store, engine *search.Engine, registry render.Registry, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	return &Server{
		store:     store,
		engine:    engine,
		registry:  registry,
		cfg:       cfg,
		templates: tmpl,
		log:       log,
		ctx:       ctx,
	}, nil
}

// Handler returns the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogging())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/posts", s.handleListPosts)
		api.GET("/posts/*identifier", s.handleGetPost)
		api.GET("/tags", s.handleCounts(s.store.TagCounts))
		api.GET("/categories", s.handleCounts(s.store.CategoryCounts))
		api.GET("/search", s.handleSearch)
	}

	r.GET(s.cfg.Site.BlogPath+"/*identifier", s.handleRenderPost)
	r.StaticFile("/"+s.cfg.Output.SearchIndex, s.cfg.SearchIndexPath())
	r.StaticFile(s.cfg.Site.FeedPath, s.cfg.FeedPath())

	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}).Handler(r)
}

func (s *Server) requestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"posts":        len(s.store.ListAll()),
		"search_state": s.engine.State().String(),
	})
}

func (s *Server) handleListPosts(c *gin.Context) {
	locale, ok := s.localeParam(c)
	if !ok {
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		page = n
	}

	var records []content.PostRecord
	switch tag, category := c.Query("tag"), c.Query("category"); {
	case tag != "":
		records = s.store.ByTag(tag, locale)
	case category != "":
		records = s.store.ByCategory(category, locale)
	case locale != nil:
		records = s.store.ByLocale(*locale)
	default:
		records = s.store.ListAll()
	}

	p := query.Paginate(records, page, query.PostsPerPage)
	posts := make([]PostSummary, 0, len(p.Records))
	for i := range p.Records {
		posts = append(posts, summarize(&p.Records[i]))
	}
	c.JSON(http.StatusOK, PostsResponse{
		Posts:      posts,
		Page:       p.Number,
		TotalPages: p.TotalPages,
		Total:      p.Total,
	})
}

func (s *Server) handleGetPost(c *gin.Context) {
	id := strings.Trim(c.Param("identifier"), "/")
	rec, ok := s.store.ByIdentifier(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post":     summarize(&rec),
		"headings": rec.Headings,
		"body":     rec.Body,
	})
}

func (s *Server) handleCounts(counts func(*content.Locale) []query.Count) gin.HandlerFunc {
	return func(c *gin.Context) {
		locale, ok := s.localeParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, counts(locale))
	}
}

func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")

	s.engine.Open(s.ctx)
	ctx, cancel := context.WithTimeout(c.Request.Context(), searchWait)
	defer cancel()
	state := s.engine.Wait(ctx)

	results := s.engine.Search(q)
	c.JSON(http.StatusOK, SearchResponse{
		Query:   q,
		State:   state.String(),
		Results: results,
		Count:   len(results),
	})
}

func (s *Server) handleRenderPost(c *gin.Context) {
	id := strings.Trim(c.Param("identifier"), "/")
	rec, ok := s.store.ByIdentifier(id)
	if !ok {
		s.renderTemplate(c, http.StatusNotFound, "notfound.html", gin.H{
			"SiteTitle": s.cfg.Site.Title,
			"Path":      c.Request.URL.Path,
			"BlogPath":  s.cfg.Site.BlogPath,
		})
		return
	}

	body, err := render.HTML(render.Render(rec.Body, s.registry))
	if err != nil {
		s.log.Error().Err(err).Str("identifier", id).Msg("serialize rendered post")
		body, _ = render.HTML(render.Fallback())
	}

	s.renderTemplate(c, http.StatusOK, "post.html", gin.H{
		"SiteTitle":   s.cfg.Site.Title,
		"FeedPath":    s.cfg.Site.FeedPath,
		"Locale":      rec.Locale,
		"Title":       rec.Title,
		"Description": rec.Description,
		"Author":      rec.Author,
		"Date":        rec.PublishDate.Format("2006-01-02"),
		"DateISO":     rec.PublishDate.Format(time.RFC3339),
		"ReadingTime": rec.ReadingTimeMinutes,
		"Tags":        rec.Tags,
		"Headings":    rec.Headings,
		"Body":        template.HTML(body),
	})
}

func (s *Server) renderTemplate(c *gin.Context, status int, name string, data any) {
	var b strings.Builder
	if err := s.templates.ExecuteTemplate(&b, name, data); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("error rendering template")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte(b.String()))
}

// localeParam parses the optional locale query parameter, answering 400 on
// an unsupported value.
func (s *Server) localeParam(c *gin.Context) (*content.Locale, bool) {
	raw := c.Query("locale")
	if raw == "" {
		return nil, true
	}
	l, err := content.ParseLocale(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &l, true
}

func summarize(rec *content.PostRecord) PostSummary {
	return PostSummary{
		Identifier:         rec.Identifier,
		Title:              rec.Title,
		Description:        rec.Description,
		PublishDate:        rec.PublishDate,
		UpdatedDate:        rec.UpdatedDate,
		Locale:             rec.Locale,
		Tags:               nonNil(rec.Tags),
		Categories:         nonNil(rec.Categories),
		Author:             rec.Author,
		CoverImage:         rec.CoverImage,
		ReadingTimeMinutes: rec.ReadingTimeMinutes,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Addr joins host and port for ListenAndServe.
func Addr(cfg config.ServerConfig) string {
	return cfg.Host + ":" + cfg.Port
}
