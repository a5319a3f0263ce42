package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging      LoggingConfig      `yaml:"logging"`
	GeminiModel  string             `yaml:"gemini_model"`
	WindowDays   int                `yaml:"window_days"`
	SummaryQuota SummaryQuotaConfig `yaml:"summary_quota"`
	Fetch        FetchConfig        `yaml:"fetch"`
	Digest       DigestConfig       `yaml:"digest"`
	Sheets       SheetsConfig       `yaml:"sheets"`
	WordPress    WordPressConfig    `yaml:"wordpress"`
	Categories   []Category         `yaml:"categories"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SummaryQuotaConfig bounds the rate and daily volume of LLM summary calls.
// Values of 0 or below mean no limit in that direction.
type SummaryQuotaConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

// Category maps one digest section name to its ordered feed URLs.
// The table is loaded once at startup and never mutated.
type Category struct {
	Name  string   `yaml:"name"`
	Feeds []string `yaml:"feeds"`
}

type FetchConfig struct {
	// RedirectHosts are domains whose article pages misbehave behind the
	// generic extractors and need an explicit GET-with-redirects fetch.
	RedirectHosts []string `yaml:"redirect_hosts"`

	// RenderedHosts are domains whose articles only exist after client-side
	// rendering and go through the headless browser path.
	RenderedHosts []string `yaml:"rendered_hosts"`
}

type DigestConfig struct {
	// SkipLinkPatterns are substrings of non-article links (video players,
	// metadata-only pages) that are dropped before any fetching happens.
	SkipLinkPatterns []string `yaml:"skip_link_patterns"`
	MaxArticleChars  int      `yaml:"max_article_chars"`
	MaxTags          int      `yaml:"max_tags"`
}

type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Range         string `yaml:"range"`
}

type WordPressConfig struct {
	CategoryName      string `yaml:"category_name"`
	DefaultCategoryID int    `yaml:"default_category_id"`
}

var config *AppConfig

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	// load configuration file
	data, err := os.ReadFile(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}

	var c AppConfig
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		panic(err)
	}
	applyDefaults(&c)
	config = &c
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

func applyDefaults(c *AppConfig) {
	if c.WindowDays <= 0 {
		c.WindowDays = 1
	}
	if c.Digest.MaxArticleChars <= 0 {
		c.Digest.MaxArticleChars = 8000
	}
	if c.Digest.MaxTags <= 0 {
		c.Digest.MaxTags = 5
	}
	if c.Sheets.Range == "" {
		c.Sheets.Range = "Sheet1!A:G"
	}
	if c.WordPress.CategoryName == "" {
		c.WordPress.CategoryName = "News Bot"
	}
	if c.WordPress.DefaultCategoryID == 0 {
		c.WordPress.DefaultCategoryID = 11
	}
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
