package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/Vovarama1992/medassist-core/internal/ai"
	"github.com/Vovarama1992/medassist-core/internal/assistant"
	"github.com/Vovarama1992/medassist-core/internal/auth"
	"github.com/Vovarama1992/medassist-core/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// --- DB ---
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := assistant.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema error: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Auth module wiring ---
	signer := &auth.Signer{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	authService := auth.NewService(
		signer,
		auth.InitDataValidator{
			BotToken: cfg.TelegramBotToken,
			MaxAge:   cfg.InitDataMaxAge,
		},
		auth.APIKeyValidator{
			Current:  cfg.APIKey,
			Previous: cfg.APIKeyPrevious,
		},
		cfg.ServiceScopes,
	)
	auth.RegisterRoutes(r, auth.NewHandler(authService))

	// --- Assistant module wiring ---
	gateway := ai.NewRouter(
		cfg.OpenAIModel,
		ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITimeout),
	)
	askService := assistant.NewService(assistant.NewRepo(db), gateway, cfg.HistoryTurns)
	assistant.RegisterRoutes(r, assistant.NewHandler(askService), auth.RequireBearer(signer))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	log.Printf("listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
