package config

import (
	"os"
	"strconv"
)

type Config struct {
	Provider       string // llm provider: "openai" or "google"
	ReasoningModel string
	FastModel      string
	FirecrawlKey   string
	FirecrawlBase  string
	MistralKey     string // enables PDF OCR for the arxiv provider
	SearchProvider string // "firecrawl" or "arxiv"
	Port           string
	Breadth        int
	Depth          int
	Concurrency    int
}

func Load() *Config {
	return &Config{
		Provider:       getEnv("LLM_PROVIDER", "openai"),
		ReasoningModel: getEnv("REASONING_MODEL", ""),
		FastModel:      getEnv("FAST_MODEL", ""),
		FirecrawlKey:   getEnv("FIRECRAWL_KEY", ""),
		FirecrawlBase:  getEnv("FIRECRAWL_BASE_URL", ""),
		MistralKey:     getEnv("MISTRAL_API_KEY", ""),
		SearchProvider: getEnv("SEARCH_PROVIDER", "firecrawl"),
		Port:           getEnv("PORT", "8081"),
		Breadth:        getEnvAsInt("RESEARCH_BREADTH", 4),
		Depth:          getEnvAsInt("RESEARCH_DEPTH", 2),
		Concurrency:    getEnvAsInt("RESEARCH_CONCURRENCY", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
