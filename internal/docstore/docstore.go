// Package docstore is the document-store contract history and variables
// are persisted through: collections of JSON-like documents addressed by id.
package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

// Document is one stored record. Values are JSON-compatible.
type Document map[string]any

// ErrNotFound is returned by Update when the document does not exist. Get
// reports a missing document with ok == false instead.
var ErrNotFound = errors.New("document not found")

// ErrExists is returned by Create when the id is already taken.
var ErrExists = errors.New("document already exists")

type Store interface {
	Create(ctx context.Context, collection, id string, doc Document) error
	// Update merges the top-level fields of patch into the stored document.
	Update(ctx context.Context, collection, id string, patch Document) error
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func merge(dst, patch Document) Document {
	out := dst.Clone()
	if out == nil {
		out = make(Document, len(patch))
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func validate(collection, id string) error {
	if strings.TrimSpace(collection) == "" {
		return errdef.New(errdef.CodeStorage, "collection is empty")
	}
	if strings.TrimSpace(id) == "" {
		return errdef.New(errdef.CodeStorage, "document id is empty")
	}
	return nil
}
