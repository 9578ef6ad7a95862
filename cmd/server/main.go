package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"notedeck/internal/api"
	"notedeck/internal/auth"
	"notedeck/internal/config"
	"notedeck/internal/db"
	"notedeck/internal/generate"
	"notedeck/internal/services"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY not set")
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	// Fallback order: fastest/cheapest first, then highest quality, then the
	// general-purpose providers. Only configured providers are wired in.
	var providers []generate.Provider
	if cfg.GroqKey != "" {
		providers = append(providers, generate.NewChatProvider("groq", cfg.GroqKey, cfg.GroqBaseURL, cfg.GroqModel))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, generate.NewAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicURL, cfg.AnthropicModel))
	}
	if cfg.OpenAIKey != "" {
		providers = append(providers, generate.NewChatProvider("openai", cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIModel))
	}
	if cfg.GeminiKey != "" {
		providers = append(providers, generate.NewGeminiProvider(cfg.GeminiKey, cfg.GeminiURL, cfg.GeminiModel))
	}
	pipeline := generate.NewPipeline(cfg.ProviderTimeout, providers...)

	scheduleService := services.NewScheduleService(conn)
	setService := services.NewSetService(conn)
	resultService := services.NewResultService(conn, scheduleService)
	notesService := services.NewNotesService()
	authService := auth.NewService(cfg.JWTSecret)

	server := api.NewServer(pipeline, setService, resultService, scheduleService, notesService)

	mux := http.NewServeMux()
	mux.Handle("/api/", authService.Middleware(server.Handler()))
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		server.Handler().ServeHTTP(w, r)
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("listening on :%s", port)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
