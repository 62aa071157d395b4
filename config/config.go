// Package config provides configuration loading and management for the
// brain service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/magicfolder/brain/classify"
)

// Config represents the complete brain configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Extract ExtractConfig `yaml:"extract"`
	Rules   RulesConfig   `yaml:"rules"`
	LLM     LLMConfig     `yaml:"llm"`
	RAG     RAGConfig     `yaml:"rag"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig configures the request/reply endpoint
type ServerConfig struct {
	// NATSURL is the NATS server URL (empty = use embedded server)
	NATSURL string `yaml:"nats_url"`
	// Embedded indicates whether to run an embedded NATS server
	Embedded bool `yaml:"embedded"`
	// Subject is the classification request subject
	Subject string `yaml:"subject"`
	// MetricsAddr exposes Prometheus metrics when set (e.g. ":9310")
	MetricsAddr string `yaml:"metrics_addr"`
}

// ExtractConfig configures content extraction
type ExtractConfig struct {
	// MaxBytes caps how much of a file is read for classification
	MaxBytes int64 `yaml:"max_bytes"`
	// PDFPages caps how many PDF pages are read or rasterized
	PDFPages int `yaml:"pdf_pages"`
	// TesseractBin overrides the tesseract binary path
	TesseractBin string `yaml:"tesseract_bin"`
	// PdftoppmBin overrides the pdftoppm binary path
	PdftoppmBin string `yaml:"pdftoppm_bin"`
}

// RulesConfig overrides the built-in classification rules. All fields are
// optional; empty fields keep the corresponding defaults.
type RulesConfig struct {
	// HardRules maps extensions to final categories (e.g. ".mp3": "Audio")
	HardRules map[string]string `yaml:"hard_rules"`
	// KeywordRules are checked in order; the first matching rule wins
	KeywordRules []KeywordRuleConfig `yaml:"keyword_rules"`
	// TextExts are extensions read as plain text
	TextExts []string `yaml:"text_exts"`
	// OCRExts are extensions sent through OCR
	OCRExts []string `yaml:"ocr_exts"`
}

// KeywordRuleConfig is one ordered content-matching rule
type KeywordRuleConfig struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// LLMConfig configures the escalation model
type LLMConfig struct {
	// Provider selects the backend ("gemini", "openai", "ollama")
	Provider string `yaml:"provider"`
	// URL is the API base URL (empty = provider default)
	URL string `yaml:"url"`
	// Model is the completion model for escalation
	Model string `yaml:"model"`
	// EmbedModel is the embedding model for indexing and search
	EmbedModel string `yaml:"embed_model"`
	// EmbedDimension is the embedding vector size
	EmbedDimension int `yaml:"embed_dimension"`
	// Temperature controls randomness (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
	// MaxTokens caps the escalation reply length
	MaxTokens int `yaml:"max_tokens"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// RAGConfig configures the semantic index
type RAGConfig struct {
	// Enabled turns indexing on
	Enabled bool `yaml:"enabled"`
	// RedisAddr is the Redis server address
	RedisAddr string `yaml:"redis_addr"`
	// Index is the key prefix for stored vectors
	Index string `yaml:"index"`
	// MinContentLength skips indexing files with less extracted text
	MinContentLength int `yaml:"min_content_length"`
	// SummaryWords caps the stored summary length
	SummaryWords int `yaml:"summary_words"`
}

// SearchConfig configures semantic search results
type SearchConfig struct {
	// TopK is how many candidates the index returns
	TopK int `yaml:"top_k"`
	// Threshold drops matches below this similarity score
	Threshold float64 `yaml:"threshold"`
	// ResultDir is where result symlinks are materialized
	ResultDir string `yaml:"result_dir"`
}

// WatchConfig configures directory watch mode
type WatchConfig struct {
	// Dir is the directory to watch (empty = watch mode off)
	Dir string `yaml:"dir"`
	// Debounce is how long to collect events before classifying a batch
	Debounce time.Duration `yaml:"debounce"`
	// Ignore lists glob patterns for paths to skip
	Ignore []string `yaml:"ignore"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			NATSURL:     "",
			Embedded:    true,
			Subject:     "brain.classify",
			MetricsAddr: "",
		},
		Extract: ExtractConfig{
			MaxBytes: 4 << 20,
			PDFPages: 5,
		},
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-2.0-flash",
			EmbedModel:     "text-embedding-004",
			EmbedDimension: 768,
			Temperature:    0.5,
			MaxTokens:      2000,
			Timeout:        3 * time.Minute,
		},
		RAG: RAGConfig{
			Enabled:          false,
			RedisAddr:        "localhost:6379",
			Index:            "brain",
			MinContentLength: 10,
			SummaryWords:     150,
		},
		Search: SearchConfig{
			TopK:      20,
			Threshold: 0.4,
			ResultDir: filepath.Join(os.TempDir(), "brain_search_results"),
		},
		Watch: WatchConfig{
			Dir:      "",
			Debounce: 500 * time.Millisecond,
			Ignore:   []string{"**/.DS_Store", "**/._*"},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Subject == "" {
		return fmt.Errorf("server.subject is required")
	}
	if c.Extract.MaxBytes <= 0 {
		return fmt.Errorf("extract.max_bytes must be positive")
	}
	if c.Extract.PDFPages <= 0 {
		return fmt.Errorf("extract.pdf_pages must be positive")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be between 0 and 1")
	}
	if c.RAG.Enabled && c.RAG.RedisAddr == "" {
		return fmt.Errorf("rag.redis_addr is required when rag is enabled")
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive")
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("search.threshold must be between 0 and 1")
	}
	if _, err := c.Rules.Build(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

// Build assembles the effective rule set, falling back to the built-in
// defaults for any section left empty.
func (r *RulesConfig) Build() (*classify.RuleSet, error) {
	if len(r.HardRules) == 0 && len(r.KeywordRules) == 0 &&
		len(r.TextExts) == 0 && len(r.OCRExts) == 0 {
		return classify.DefaultRuleSet(), nil
	}

	def := classify.DefaultTables()

	hard := def.HardRules
	if len(r.HardRules) > 0 {
		hard = make(map[string]classify.Category, len(r.HardRules))
		for ext, name := range r.HardRules {
			cat := classify.ParseCategory(name)
			if cat == "" {
				return nil, fmt.Errorf("hard rule %s: unknown category %q", ext, name)
			}
			hard[ext] = cat
		}
	}

	keywords := def.KeywordRules
	if len(r.KeywordRules) > 0 {
		keywords = make([]classify.KeywordRule, 0, len(r.KeywordRules))
		for _, kr := range r.KeywordRules {
			cat := classify.ParseCategory(kr.Category)
			if cat == "" {
				return nil, fmt.Errorf("keyword rule: unknown category %q", kr.Category)
			}
			keywords = append(keywords, classify.KeywordRule{Category: cat, Keywords: kr.Keywords})
		}
	}

	textExts := def.TextExts
	if len(r.TextExts) > 0 {
		textExts = r.TextExts
	}
	ocrExts := def.OCRExts
	if len(r.OCRExts) > 0 {
		ocrExts = r.OCRExts
	}

	return classify.NewRuleSet(hard, keywords, textExts, ocrExts)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.NATSURL != "" {
		c.Server.NATSURL = other.Server.NATSURL
		c.Server.Embedded = false
	}
	if other.Server.Subject != "" {
		c.Server.Subject = other.Server.Subject
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}

	// Extract
	if other.Extract.MaxBytes != 0 {
		c.Extract.MaxBytes = other.Extract.MaxBytes
	}
	if other.Extract.PDFPages != 0 {
		c.Extract.PDFPages = other.Extract.PDFPages
	}
	if other.Extract.TesseractBin != "" {
		c.Extract.TesseractBin = other.Extract.TesseractBin
	}
	if other.Extract.PdftoppmBin != "" {
		c.Extract.PdftoppmBin = other.Extract.PdftoppmBin
	}

	// Rules
	if len(other.Rules.HardRules) > 0 {
		c.Rules.HardRules = other.Rules.HardRules
	}
	if len(other.Rules.KeywordRules) > 0 {
		c.Rules.KeywordRules = other.Rules.KeywordRules
	}
	if len(other.Rules.TextExts) > 0 {
		c.Rules.TextExts = other.Rules.TextExts
	}
	if len(other.Rules.OCRExts) > 0 {
		c.Rules.OCRExts = other.Rules.OCRExts
	}

	// LLM
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.URL != "" {
		c.LLM.URL = other.LLM.URL
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.EmbedModel != "" {
		c.LLM.EmbedModel = other.LLM.EmbedModel
	}
	if other.LLM.EmbedDimension != 0 {
		c.LLM.EmbedDimension = other.LLM.EmbedDimension
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}

	// RAG
	if other.RAG.Enabled {
		c.RAG.Enabled = true
	}
	if other.RAG.RedisAddr != "" {
		c.RAG.RedisAddr = other.RAG.RedisAddr
	}
	if other.RAG.Index != "" {
		c.RAG.Index = other.RAG.Index
	}
	if other.RAG.MinContentLength != 0 {
		c.RAG.MinContentLength = other.RAG.MinContentLength
	}
	if other.RAG.SummaryWords != 0 {
		c.RAG.SummaryWords = other.RAG.SummaryWords
	}

	// Search
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.Threshold != 0 {
		c.Search.Threshold = other.Search.Threshold
	}
	if other.Search.ResultDir != "" {
		c.Search.ResultDir = other.Search.ResultDir
	}

	// Watch
	if other.Watch.Dir != "" {
		c.Watch.Dir = other.Watch.Dir
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.Ignore) > 0 {
		c.Watch.Ignore = other.Watch.Ignore
	}
}
