package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Site      SiteConfig    `yaml:"site"`
	Content   ContentConfig `yaml:"content"`
	Output    OutputConfig  `yaml:"output"`
	DataDir   string        `yaml:"data_dir"`
	Build     BuildConfig   `yaml:"build"`
	Cache     CacheConfig   `yaml:"cache"`
	Search    SearchConfig  `yaml:"search"`
	Server    ServerConfig  `yaml:"server"`
	Publish   PublishConfig `yaml:"publish"`
	LogLevel  string        `yaml:"log_level"`
	LogPretty bool          `yaml:"log_pretty"`
}

// SiteConfig is the channel-level metadata shared by the feed and the preview server.
type SiteConfig struct {
	Title         string `yaml:"title"`
	URL           string `yaml:"url"`
	Description   string `yaml:"description"`
	Language      string `yaml:"language"`
	DefaultAuthor string `yaml:"default_author"`
	BlogPath      string `yaml:"blog_path"`
	FeedPath      string `yaml:"feed_path"`
}

type ContentConfig struct {
	Root       string   `yaml:"root"`
	Collection string   `yaml:"collection"`
	Extensions []string `yaml:"extensions"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir"`
	SearchIndex string `yaml:"search_index"`
	Feed        string `yaml:"feed"`
}

type BuildConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type SearchConfig struct {
	// IndexURL overrides the local search index artifact; empty means read from Output.Dir.
	IndexURL string `yaml:"index_url"`
	Limit    int    `yaml:"limit"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type PublishConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Load reads the YAML file at path after expanding environment variables.
// A missing file is not an error; every field then takes its default.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "码上同行 - Code Journey Together"
	}
	if c.Site.URL == "" {
		c.Site.URL = "https://nealma.github.io/comicbot"
	}
	if c.Site.Description == "" {
		c.Site.Description = "A father-daughter tech blog about coding adventures"
	}
	if c.Site.Language == "" {
		c.Site.Language = "zh-CN"
	}
	if c.Site.DefaultAuthor == "" {
		c.Site.DefaultAuthor = "码上同行"
	}
	if c.Site.BlogPath == "" {
		c.Site.BlogPath = "/blog"
	}
	if c.Site.FeedPath == "" {
		c.Site.FeedPath = "/feed.xml"
	}
	if c.Content.Root == "" {
		c.Content.Root = "content"
	}
	if c.Content.Collection == "" {
		c.Content.Collection = "posts"
	}
	if len(c.Content.Extensions) == 0 {
		c.Content.Extensions = []string{".mdx", ".md"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "public"
	}
	if c.Output.SearchIndex == "" {
		c.Output.SearchIndex = "search-index.json"
	}
	if c.Output.Feed == "" {
		c.Output.Feed = "feed.xml"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Build.Concurrency == 0 {
		c.Build.Concurrency = 5
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "blogpipe:compile:"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 720 * time.Hour
	}
	if c.Search.Limit == 0 {
		c.Search.Limit = 10
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == "" {
		c.Server.Port = "6893"
	}
	if c.Publish.Region == "" {
		c.Publish.Region = "auto"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.Site.URL == "" {
		return errors.New("site.url must not be empty")
	}
	if c.Site.Title == "" {
		return errors.New("site.title must not be empty")
	}
	if c.Build.Concurrency < 1 {
		return fmt.Errorf("build.concurrency must be positive, got %d", c.Build.Concurrency)
	}
	if c.Search.Limit < 1 {
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	}
	return nil
}

// DBPath is the corpus snapshot database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "corpus.db")
}

func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Output.Dir, c.Output.SearchIndex)
}

func (c *Config) FeedPath() string {
	return filepath.Join(c.Output.Dir, c.Output.Feed)
}
