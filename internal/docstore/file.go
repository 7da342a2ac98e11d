package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File stores one JSON file per document under dir/collection/. Handy for
// local development; queries scan the whole collection.
type File struct {
	Dir string
}

var _ Store = (*File)(nil)

func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) path(collection, id string) string {
	return filepath.Join(f.Dir, collection, id+".json")
}

func (f *File) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	data, err := os.ReadFile(f.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *File) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]json.RawMessage, error) {
	docs, err := f.readAll(collection)
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	for _, doc := range docs {
		if !matches(doc, filters) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *File) QueryIn(ctx context.Context, collection, field string, values []string, filters ...Filter) ([]json.RawMessage, error) {
	if len(values) > MaxInValues {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyValues, len(values), MaxInValues)
	}
	wanted := make(map[string]struct{}, len(values))
	for _, v := range values {
		wanted[v] = struct{}{}
	}

	docs, err := f.readAll(collection)
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	for _, doc := range docs {
		fields := decodeFields(doc)
		v, ok := fields[field].(string)
		if !ok {
			continue
		}
		if _, ok := wanted[v]; !ok {
			continue
		}
		if !matchesFields(fields, filters) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (f *File) Set(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	path := f.path(collection, id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

func (f *File) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := f.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return f.Set(ctx, collection, id, doc)
}

func (f *File) Delete(_ context.Context, collection, id string) error {
	err := os.Remove(f.path(collection, id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// BatchDelete on the file backend is atomic only per file; good enough for
// local development, the remote backend provides the real guarantee.
func (f *File) BatchDelete(ctx context.Context, collection string, ids []string) error {
	for _, id := range ids {
		if err := f.Delete(ctx, collection, id); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) readAll(collection string) ([]json.RawMessage, error) {
	entries, err := os.ReadDir(filepath.Join(f.Dir, collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var docs []json.RawMessage
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.Dir, collection, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, data)
	}
	return docs, nil
}
