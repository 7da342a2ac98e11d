package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/Direwen/MealMate/internal/auth"
	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/config"
	"github.com/Direwen/MealMate/internal/docstore"
	"github.com/Direwen/MealMate/internal/groceries"
	"github.com/Direwen/MealMate/internal/images"
	"github.com/Direwen/MealMate/internal/logsink"
	"github.com/Direwen/MealMate/internal/recipes"
	"github.com/Direwen/MealMate/internal/users"
)

func main() {
	var addr string
	var mock bool

	flag.StringVar(&addr, "addr", "", "Address to bind (overrides MEALMATE_ADDR)")
	flag.BoolVar(&mock, "mock", false, "Cookie auth and no external services, for local development")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if mock {
		cfg.Mocks.Enable = true
	}

	ctx := context.Background()
	if cfg.Logs.Enabled() {
		sink, err := logsink.New(ctx, cfg.Logs)
		if err != nil {
			log.Fatalf("failed to create log sink: %v", err)
		}
		defer sink.Close()
		slog.SetDefault(slog.New(sink))
	}

	if err := runServer(ctx, cfg); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	store, err := docstore.Make(cfg)
	if err != nil {
		return fmt.Errorf("failed to create document store: %w", err)
	}
	imageStore, err := images.Make(cfg)
	if err != nil {
		return fmt.Errorf("failed to create image store: %w", err)
	}

	cat := catalog.New(store)
	recipeStore := recipes.NewStorage(store, cat)
	engine := groceries.NewEngine(store, recipeStore, cat)
	userStore := users.NewStorage(store)
	authMgr := auth.NewManager(cfg, userStore)

	mux := http.NewServeMux()
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	users.NewHandler(authMgr).Register(mux)
	catalog.NewHandler(cat, authMgr).Register(mux)
	recipes.NewHandler(recipeStore, authMgr, engine, engine, imageStore).Register(mux)
	groceries.NewHandler(engine, recipeStore, authMgr).Register(mux)

	slog.InfoContext(ctx, "starting server", "addr", cfg.Addr, "mock", cfg.Mocks.Enable)
	return http.ListenAndServe(cfg.Addr, WithMiddleware(mux))
}
