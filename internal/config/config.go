// Package config provides configuration loading and structs for the taxdesk server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	Matching MatchingConfig `yaml:"matching"`
	Render   RenderConfig   `yaml:"render"`
	Extract  ExtractConfig  `yaml:"extract"`
	Inbox    InboxConfig    `yaml:"inbox"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

// StorageConfig holds database and file locations.
type StorageConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver           string `yaml:"driver"`
	DatabasePath     string `yaml:"database_path"`
	DatabaseURL      string `yaml:"database_url"`
	UploadDir        string `yaml:"upload_dir"`
	ArchiveIndexPath string `yaml:"archive_index_path"`
}

// LLMConfig configures the inference endpoint.
type LLMConfig struct {
	// Provider is "ollama" (native API) or "openai" (any OpenAI-compatible server).
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// AgentConfig tunes the document pipeline.
type AgentConfig struct {
	MaxExtractChars    int     `yaml:"max_extract_chars"`
	SelectorTextChars  int     `yaml:"selector_text_chars"`
	MaxKeyFields       int     `yaml:"max_key_fields"`
	SummaryChars       int     `yaml:"summary_chars"`
	SummaryMaxLength   int     `yaml:"summary_max_length"`
	SummariesEnabled   *bool   `yaml:"summaries_enabled"`
	MinMatchConfidence float64 `yaml:"min_match_confidence"`
}

// SummariesOrDefault returns whether per-document summaries are generated; defaults to true when unset.
func (a *AgentConfig) SummariesOrDefault() bool {
	if a.SummariesEnabled != nil {
		return *a.SummariesEnabled
	}
	return true
}

// MatchingConfig holds the client matcher weights.
type MatchingConfig struct {
	TaxNumberWeight   float64 `yaml:"tax_number_weight"`
	EmailWeight       float64 `yaml:"email_weight"`
	FirstNameWeight   float64 `yaml:"first_name_weight"`
	LastNameWeight    float64 `yaml:"last_name_weight"`
	CompanyNameWeight float64 `yaml:"company_name_weight"`
	PhoneWeight       float64 `yaml:"phone_weight"`
	CityWeight        float64 `yaml:"city_weight"`
	PostalCodeWeight  float64 `yaml:"postal_code_weight"`
}

// RenderConfig configures artifact generation.
type RenderConfig struct {
	// SofficePath is the LibreOffice binary used for PDF conversion. Empty disables conversion.
	SofficePath  string `yaml:"soffice_path"`
	ConvertToPDF bool   `yaml:"convert_to_pdf"`
}

// ExtractConfig configures text extraction.
type ExtractConfig struct {
	// PdfToTextPath is used when the embedded PDF reader finds no text. Ignored if not installed.
	PdfToTextPath string `yaml:"pdftotext_path"`
}

// InboxConfig configures the scanner drop folder.
type InboxConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Directory  string        `yaml:"directory"`
	Extensions []string      `yaml:"extensions"`
	Debounce   time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies environment overrides and defaults,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	finish(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config built from defaults and environment only, with
// relative paths resolved against dir.
func Default(dir string) *Config {
	var cfg Config
	finish(&cfg, dir)
	return &cfg
}

func finish(cfg *Config, configDir string) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	ApplyEnv(cfg)
	ApplyDefaults(cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.ArchiveIndexPath = expandPath(cfg.Storage.ArchiveIndexPath, configDir)
	cfg.Inbox.Directory = expandPath(cfg.Inbox.Directory, configDir)
}

// ApplyEnv overrides cfg with the environment variables the deployment scripts set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("OLLAMA_API_BASE"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("DEFAULT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("DATABASE_URI"); v != "" {
		switch {
		case strings.HasPrefix(v, "postgres://"), strings.HasPrefix(v, "postgresql://"):
			cfg.Storage.Driver = "postgres"
			cfg.Storage.DatabaseURL = v
		case strings.HasPrefix(v, "sqlite:///"):
			cfg.Storage.Driver = "sqlite3"
			cfg.Storage.DatabasePath = strings.TrimPrefix(v, "sqlite:///")
		}
	}
	if v := os.Getenv("TAXDESK_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Debug = true
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
