package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/advisorhq/advisor-backend/internal/config"
	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/core/analyzer"
	db "github.com/advisorhq/advisor-backend/internal/core/database"
	"github.com/advisorhq/advisor-backend/internal/core/extractor"
	"github.com/advisorhq/advisor-backend/internal/core/ingest"
	"github.com/advisorhq/advisor-backend/internal/core/llm"
	objectclient "github.com/advisorhq/advisor-backend/internal/core/object-client"
	"github.com/advisorhq/advisor-backend/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Ingestor     ingest.Ingestor
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	var llmProvider core.LLMProvider
	if cfg.AIAPIKey != "" {
		gemini, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the llm: %w", err)
		}
		llmProvider = gemini
	} else {
		log.Println("GEMINI_API_KEY not set; analysis will use the frequency fallback")
	}

	docAnalyzer := analyzer.NewLLMAnalyzer(llmProvider)
	docExtractor := extractor.NewMimeExtractor()

	ingCfg := &ingest.Config{
		Bucket:           cfg.BucketName,
		MaxChunkTokens:   cfg.MaxChunkTokens,
		EmbedConcurrency: cfg.EmbedWorkers,
		EmbedRetries:     cfg.EmbedRetries,
	}
	docIngestor := ingest.NewDocumentIngestor(dbClient, objClient, geminiEmbedder, docAnalyzer, docExtractor, ingCfg)

	userService := services.NewUserService(dbClient)
	docService := services.NewDocumentService(dbClient, objClient, geminiEmbedder, cfg.BucketName)

	server := NewServer(cfg, userService, docService, docIngestor)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Ingestor:     docIngestor,
		Server:       server,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
