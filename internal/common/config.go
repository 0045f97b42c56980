package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	Remote     RemoteOCRConfig
	Pipeline   PipelineConfig
	Validation ValidationConfig
	Ingest     IngestConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string `validate:"required"`
	MaxConns         int32  `validate:"gte=1"`
	MinConns         int32  `validate:"gte=0"`
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string `validate:"required"`
	MetricsAddr string
}

// OCRConfig holds local OCR and engine-selection configuration
type OCRConfig struct {
	Tesseract           string `validate:"required"`
	Pdftoppm            string `validate:"required"`
	Language            string `validate:"required"`
	TessdataDir         string
	DPI                 int     `validate:"gte=72,lte=1200"`
	MaxPages            int     `validate:"gte=0"`
	PSM                 int     `validate:"gte=0,lte=13"`
	Primary             string  `validate:"oneof=tesseract openai gemini"`
	Fallback            string  `validate:"oneof=tesseract openai gemini"`
	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`
	AttemptTimeout      time.Duration
}

// RemoteOCRConfig holds credentials for the remote vision engines
type RemoteOCRConfig struct {
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string
	RequestsPerSecond float64 `validate:"gt=0"`
}

// PipelineConfig holds extraction pipeline configuration
type PipelineConfig struct {
	MinTextChars    int `validate:"gte=0"`
	RulesFile       string
	Workers         int `validate:"gte=1"`
	QueueSize       int `validate:"gte=1"`
	ProcessTimeout  time.Duration
	ReviewThreshold float64 `validate:"gte=0,lte=1"`
}

// ValidationConfig holds the default intake policy
type ValidationConfig struct {
	MaxFileSize       int64    `validate:"gt=0"`
	AllowedMimes      []string `validate:"min=1"`
	AllowedExtensions []string `validate:"min=1"`
}

// IngestConfig holds inbox watcher configuration
type IngestConfig struct {
	InboxDirs []string
	Debounce  time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:docintake.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		OCR: OCRConfig{
			Tesseract:           getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:            getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Language:            getEnv("OCR_LANGUAGE", "jpn+eng"),
			TessdataDir:         getEnv("TESSDATA_PREFIX", ""),
			DPI:                 getEnvAsInt("OCR_DPI", 300),
			MaxPages:            getEnvAsInt("OCR_MAX_PAGES", 0),
			PSM:                 getEnvAsInt("OCR_PSM", 6),
			Primary:             getEnv("OCR_PRIMARY", "tesseract"),
			Fallback:            getEnv("OCR_FALLBACK", "openai"),
			ConfidenceThreshold: getEnvAsFloat64("OCR_CONFIDENCE_THRESHOLD", 0.88),
			AttemptTimeout:      getEnvAsDuration("OCR_ATTEMPT_TIMEOUT", 30*time.Second),
		},
		Remote: RemoteOCRConfig{
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			RequestsPerSecond: getEnvAsFloat64("REMOTE_OCR_RPS", 2),
		},
		Pipeline: PipelineConfig{
			MinTextChars:    getEnvAsInt("MIN_TEXT_CHARS", 100),
			RulesFile:       getEnv("RULES_FILE", ""),
			Workers:         getEnvAsInt("WORKERS", 4),
			QueueSize:       getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout:  getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
			ReviewThreshold: getEnvAsFloat64("REVIEW_THRESHOLD", 0.8),
		},
		Validation: ValidationConfig{
			MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 20<<20),
			AllowedMimes:      getEnvAsList("ALLOWED_MIMES", []string{"application/pdf", "image/jpeg", "image/png", "image/tiff"}),
			AllowedExtensions: getEnvAsList("ALLOWED_EXTENSIONS", []string{"pdf", "jpg", "jpeg", "png", "tif", "tiff"}),
		},
		Ingest: IngestConfig{
			InboxDirs: getEnvAsList("INBOX_DIRS", nil),
			Debounce:  getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return NewAppError("CONFIG_ERROR", err.Error(), ErrInvalidInput)
	}
	if c.OCR.Primary == c.OCR.Fallback {
		return NewAppError("CONFIG_ERROR", "OCR_PRIMARY and OCR_FALLBACK must differ", ErrInvalidInput)
	}
	for _, engine := range []string{c.OCR.Primary, c.OCR.Fallback} {
		switch engine {
		case "openai":
			if c.Remote.OpenAIAPIKey == "" {
				return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for the openai engine", ErrInvalidInput)
			}
		case "gemini":
			if c.Remote.GeminiAPIKey == "" {
				return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required for the gemini engine", ErrInvalidInput)
			}
		}
	}
	if c.OCR.AttemptTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OCR_ATTEMPT_TIMEOUT must be positive, got %s", c.OCR.AttemptTimeout), ErrInvalidInput)
	}
	return nil
}
