package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the whole runtime configuration. It is built once at startup
// and handed to the components that need it.
type Settings struct {
	Database DatabaseSettings `toml:"database"`
	Postal   PostalSettings   `toml:"postal"`
	Batch    BatchSettings    `toml:"batch"`
	LLM      LLMSettings      `toml:"llm"`
	Server   ServerSettings   `toml:"server"`
	Debug    bool             `toml:"debug"`
}

// DatabaseSettings locates the customer address table.
type DatabaseSettings struct {
	Driver         string `toml:"driver"` // postgres or sqlite
	DSN            string `toml:"dsn"`
	MaxConnections int    `toml:"max_connections"`

	Table         string `toml:"table"`
	IDColumn      string `toml:"id_column"`
	AddressColumn string `toml:"address_column"`
	RuleColumn    string `toml:"rule_column"`
	LLMColumn     string `toml:"llm_column"`
}

// PostalSettings points at the postal code reference file.
type PostalSettings struct {
	File string `toml:"file"`
}

// BatchSettings controls commit sizes of the batch jobs.
type BatchSettings struct {
	RuleSize int `toml:"rule_size"`
	LLMSize  int `toml:"llm_size"`
}

// LLMSettings configures the chat completion service.
type LLMSettings struct {
	URL               string  `toml:"url"`
	APIKey            string  `toml:"api_key"`
	SystemID          string  `toml:"system_id"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxTokens         int     `toml:"max_tokens"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key"` // empty disables the X-API-Key check
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Driver:         "postgres",
			MaxConnections: 10,
			Table:          "NCRM_STAGE_CIF_ADDR_API",
			IDColumn:       "SNO",
			AddressColumn:  "ADDR",
			RuleColumn:     "ADDR_PYTHON",
			LLMColumn:      "ADDR_GAI",
		},
		Postal: PostalSettings{File: "postal_codes.json"},
		Batch: BatchSettings{
			RuleSize: 1000,
			LLMSize:  10,
		},
		LLM: LLMSettings{
			TimeoutSeconds:    60,
			MaxTokens:         3000,
			RequestsPerSecond: 1,
		},
		Server: ServerSettings{Host: "localhost", Port: 8080},
	}
}

// Load builds settings from defaults, then the TOML file at path (skipped
// when path is empty), then the environment, .env included.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	LoadEnv()
	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	db := &s.Database
	db.Driver = GetEnv("DB_DRIVER", db.Driver)
	db.DSN = GetEnv("DATABASE_URL", db.DSN)
	if db.DSN == "" && db.Driver == "postgres" && os.Getenv("DB_HOST") != "" {
		db.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			GetEnv("DB_HOST", "localhost"),
			GetEnv("DB_PORT", "5432"),
			GetEnv("DB_USERNAME", "postgres"),
			GetEnv("DB_PASSWORD", ""),
			GetEnv("DB_DATABASE", "postgres"),
			GetEnv("DB_SSLMODE", "disable"))
	}
	db.MaxConnections = GetEnvInt("DB_MAX_CONNECTIONS", db.MaxConnections)
	db.Table = GetEnv("ADDR_TABLE", db.Table)

	s.Postal.File = GetEnv("POSTAL_CODE_FILE", s.Postal.File)
	s.Batch.RuleSize = GetEnvInt("BATCH_SIZE", s.Batch.RuleSize)
	s.Batch.LLMSize = GetEnvInt("LLM_BATCH_SIZE", s.Batch.LLMSize)

	s.LLM.URL = GetEnv("API_URL", s.LLM.URL)
	s.LLM.APIKey = GetEnv("API_KEY", s.LLM.APIKey)
	s.LLM.SystemID = GetEnv("SYSTEM_ID", s.LLM.SystemID)
	s.LLM.TimeoutSeconds = GetEnvInt("API_TIMEOUT_SECONDS", s.LLM.TimeoutSeconds)
	s.LLM.RequestsPerSecond = GetEnvFloat("API_REQUESTS_PER_SECOND", s.LLM.RequestsPerSecond)

	s.Server.Host = GetEnv("WEB_HOST", s.Server.Host)
	s.Server.Port = GetEnvInt("WEB_PORT", s.Server.Port)
	s.Server.APIKey = GetEnv("WEB_API_KEY", s.Server.APIKey)
	s.Debug = GetEnvBool("DEBUG", s.Debug)
}

// ValidateDatabase reports missing database settings.
func (s *Settings) ValidateDatabase() error {
	var errs []error
	switch s.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres or sqlite", s.Database.Driver))
	}
	if s.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn (DATABASE_URL) is required"))
	}
	return errors.Join(errs...)
}

// ValidateLLM reports missing LLM service settings.
func (s *Settings) ValidateLLM() error {
	var errs []error
	if s.LLM.URL == "" {
		errs = append(errs, errors.New("llm.url (API_URL) is required"))
	}
	if s.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key (API_KEY) is required"))
	}
	return errors.Join(errs...)
}
