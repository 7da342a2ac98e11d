package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/config"
	"github.com/Direwen/MealMate/internal/docstore"
	"github.com/Direwen/MealMate/internal/groceries"
	"github.com/Direwen/MealMate/internal/recipes"
)

type sweepStats struct {
	Found        int
	WouldDelete  int
	Deleted      int
	DeleteErrors int
}

func main() {
	var apply bool
	flag.BoolVar(&apply, "apply", false, "Delete orphaned grocery items. Default is dry-run.")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	store, err := docstore.Make(cfg)
	if err != nil {
		log.Fatalf("failed to create document store: %v", err)
	}

	cat := catalog.New(store)
	engine := groceries.NewEngine(store, recipes.NewStorage(store, cat), cat)

	stats, err := sweepOrphanItems(ctx, engine, apply, os.Stdout)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}

	fmt.Printf(
		"done: found=%d would_delete=%d deleted=%d delete_errors=%d mode=%s\n",
		stats.Found,
		stats.WouldDelete,
		stats.Deleted,
		stats.DeleteErrors,
		mode(apply),
	)
}

func sweepOrphanItems(ctx context.Context, engine *groceries.Engine, apply bool, out io.Writer) (sweepStats, error) {
	var stats sweepStats

	orphans, err := engine.Orphans(ctx)
	if err != nil {
		return stats, fmt.Errorf("find orphaned items: %w", err)
	}
	stats.Found = len(orphans)

	for _, item := range orphans {
		if !apply {
			stats.WouldDelete++
			_, _ = fmt.Fprintf(out, "would delete %s (list %s, ingredient %s)\n", item.ID, item.GroceryListID, item.IngredientID)
			continue
		}

		if err := engine.DeleteItem(ctx, item.ID); err != nil {
			stats.DeleteErrors++
			_, _ = fmt.Fprintf(out, "failed delete %s: %v\n", item.ID, err)
			continue
		}

		stats.Deleted++
		_, _ = fmt.Fprintf(out, "deleted %s (list %s, ingredient %s)\n", item.ID, item.GroceryListID, item.IngredientID)
	}

	return stats, nil
}

func mode(apply bool) string {
	if apply {
		return "apply"
	}
	return "dry-run"
}
