// Package images stores recipe photos. The engine only ever sees the opaque
// key recorded in Recipe.ImagePath.
package images

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/Direwen/MealMate/internal/config"
)

var ErrNotFound = errors.New("image not found")

type Store interface {
	Put(ctx context.Context, key string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Make picks blob storage when an account is configured, local files
// otherwise.
func Make(cfg *config.Config) (Store, error) {
	if cfg.Images.AccountName != "" {
		slog.Info("using azure blob storage for images", "container", cfg.Images.Container)
		return NewBlobStore(cfg.Images.AccountName, cfg.Images.AccountKey, cfg.Images.Container)
	}
	slog.Info("using file storage for images", "dir", cfg.Images.Dir)
	return NewFileStore(cfg.Images.Dir), nil
}
