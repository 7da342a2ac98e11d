package docstore

import (
	"log/slog"

	"github.com/Direwen/MealMate/internal/config"
)

// Make picks the document-store backend from config: Cosmos when an endpoint
// is set, the file backend when a data dir is, memory otherwise.
func Make(cfg *config.Config) (Store, error) {
	if cfg.Store.CosmosEndpoint != "" {
		slog.Info("using cosmos document store", "database", cfg.Store.CosmosDatabase, "container", cfg.Store.CosmosContainer)
		return NewCosmos(cfg.Store.CosmosEndpoint, cfg.Store.CosmosKey, cfg.Store.CosmosDatabase, cfg.Store.CosmosContainer)
	}

	if cfg.Store.DataDir != "" {
		slog.Info("using file document store", "dir", cfg.Store.DataDir)
		return NewFile(cfg.Store.DataDir), nil
	}

	slog.Info("using in-memory document store")
	return NewMemory(), nil
}
