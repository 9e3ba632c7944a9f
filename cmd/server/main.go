package main

import (
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"learnify/internal/api"
	"learnify/internal/config"
	"learnify/internal/llm"
	"learnify/internal/services"
	"learnify/internal/store"
)

func main() {
	cfg := config.Load()

	conn, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	provider, err := llm.NewGroqProvider(llm.GroqConfig{
		APIKey:  cfg.GroqKey,
		BaseURL: cfg.GroqEndpoint,
		Model:   cfg.GroqModel,
	})
	if err != nil {
		log.Fatalf("configure model provider: %v", err)
	}
	model := llm.WithRetry(provider, llm.DefaultRetryConfig())

	generator := services.NewMaterialGenerator(model, cfg.LLMTimeout)
	server := api.NewServer(
		services.NewAnalyzer(generator, services.DefaultChunkSize, 4),
		services.NewPlanner(model, cfg.LLMTimeout),
		services.NewExplainer(model, cfg.LLMTimeout),
		store.NewSessionStore(conn),
		cfg.UploadDir,
	)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(server.Handler())

	log.Printf("listening on :%s (model %s)", cfg.Port, model.ModelID())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
