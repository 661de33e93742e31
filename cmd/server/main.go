package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
	"github.com/BStoller/deep-research/pkg/clients"
	"github.com/BStoller/deep-research/pkg/config"
	"github.com/BStoller/deep-research/pkg/search"
	"github.com/BStoller/deep-research/pkg/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	model, err := newModel(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init model: %v", err)
	}

	counter, err := budget.NewTiktokenCounter(budget.DefaultEncoding)
	if err != nil {
		log.Fatalf("Failed to init tokenizer: %v", err)
	}
	budgeter := budget.New(counter)

	var provider search.Provider
	if cfg.SearchProvider == "arxiv" {
		arxiv := search.NewArxiv()
		if cfg.MistralKey != "" {
			arxiv.OCR = search.NewOCRClient(cfg.MistralKey)
		}
		provider = arxiv
	} else {
		provider = search.NewFirecrawl(cfg.FirecrawlBase, cfg.FirecrawlKey)
	}

	// Initialize Service & Handler
	svc := server.NewService(cfg, model, provider, budgeter)
	handler := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newModel(ctx context.Context, cfg *config.Config) (llms.Model, error) {
	switch cfg.Provider {
	case "google":
		model := cfg.FastModel
		if model == "" {
			model = clients.DefaultGoogleModel
		}
		return clients.GoogleAI(ctx, model)
	default:
		model := cfg.FastModel
		if model == "" {
			model = clients.DefaultOpenAIModel
		}
		return clients.OpenAI(model)
	}
}
