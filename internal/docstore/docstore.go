// Package docstore is the persistence contract the rest of the app is built
// on: JSON documents addressed by (collection, id), with equality and "in"
// queries over top-level string fields. Backends: in-memory, file, Cosmos DB.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrTooManyValues is returned by QueryIn when the value set exceeds
	// MaxInValues. Callers chunk larger sets.
	ErrTooManyValues = errors.New("too many values for in query")
)

// MaxInValues caps the cardinality of a single "in" filter. Mirrors the
// Firestore whereIn limit the data model was designed around.
const MaxInValues = 10

// Filter matches documents whose top-level field equals the given string.
type Filter struct {
	Field string
	Value string
}

func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the minimal document-database surface the repositories consume.
// Set is an upsert. Update patches individual fields of an existing document.
// Delete and BatchDelete are idempotent; BatchDelete is all-or-nothing for
// the ids it is given.
type Store interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]json.RawMessage, error)
	QueryIn(ctx context.Context, collection, field string, values []string, filters ...Filter) ([]json.RawMessage, error)
	Set(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	BatchDelete(ctx context.Context, collection string, ids []string) error
}

// DecodeAll unmarshals a query result into typed documents.
func DecodeAll[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Decode unmarshals a single document.
func Decode[T any](raw json.RawMessage) (*T, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
