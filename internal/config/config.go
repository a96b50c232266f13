package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string

	// Remote capability endpoints.
	VectorIndexURL    string
	VectorIndexAPIKey string
	VectorIndexName   string
	PriceServiceURL   string

	// Per-caller daily message quota.
	DailyMessageQuota int
}

var AppConfig Config

// ModelOption maps a caller-facing slug to the Gemini model it selects.
type ModelOption struct {
	Slug      string
	Model     string
	IsDefault bool
}

// ChatModels is the fixed catalog of models a caller may select for the
// general question path. Exactly one entry is the default.
var ChatModels = []ModelOption{
	{Slug: "gemini-flash", Model: "gemini-1.5-flash-latest", IsDefault: true},
	{Slug: "gemini-pro", Model: "gemini-1.5-pro-latest"},
}

const (
	RouterModel    = "gemini-1.5-flash-latest"
	TitleModel     = "gemini-1.5-flash-latest"
	EmbeddingModel = "text-embedding-004"
)

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:       getEnv("DATABASE_URL", "khroma.db"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		VectorIndexURL:    getEnv("VECTOR_INDEX_URL", "http://localhost:6333"),
		VectorIndexAPIKey: getEnv("VECTOR_INDEX_API_KEY", ""),
		VectorIndexName:   getEnv("VECTOR_INDEX_NAME", "khroma-products"),
		PriceServiceURL:   getEnv("PRICE_SERVICE_URL", ""),
		DailyMessageQuota: getEnvAsInt("DAILY_MESSAGE_QUOTA", 50),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
}

// ResolveModel returns the Gemini model for a caller-supplied slug. An empty
// or unrecognized slug silently falls back to the default model; resolution
// never fails.
func ResolveModel(slug string) string {
	var fallback string
	for _, m := range ChatModels {
		if m.IsDefault {
			fallback = m.Model
		}
		if slug != "" && m.Slug == slug {
			return m.Model
		}
	}
	return fallback
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
