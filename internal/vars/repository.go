package vars

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

// DefaultStorageKey names the single document holding every environment.
const DefaultStorageKey = "variables"

// Repository persists the serialized store. Load returns nil data when
// nothing has been saved yet.
type Repository interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

type MemoryRepository struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryRepository(initial []byte) *MemoryRepository {
	return &MemoryRepository{data: append([]byte(nil), initial...)}
}

func (r *MemoryRepository) Load(context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return nil, nil
	}
	return append([]byte(nil), r.data...), nil
}

func (r *MemoryRepository) Save(_ context.Context, data []byte) error {
	r.mu.Lock()
	r.data = append([]byte(nil), data...)
	r.mu.Unlock()
	return nil
}

// Bytes returns the last saved document.
func (r *MemoryRepository) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data...)
}

type FileRepository struct {
	Path string
}

func (r FileRepository) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read variables %s", r.Path)
	}
	return data, nil
}

// Save writes through a temp file and a rename so a reader never sees a
// half-written document.
func (r FileRepository) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create variables dir")
	}
	tmp, err := os.CreateTemp(dir, ".variables-*.tmp")
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create variables tmp")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errdef.Wrap(errdef.CodeFilesystem, err, "write variables tmp")
	}
	if err := tmp.Close(); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "close variables tmp")
	}
	if err := os.Rename(tmpPath, r.Path); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "replace variables file")
	}
	return nil
}

// DocumentRepository keeps the serialized store as one document of a
// docstore collection, so any document backend can hold variables.
type DocumentRepository struct {
	Store      docstore.Store
	Collection string
	Key        string
}

const documentField = "json"

func (r DocumentRepository) key() string {
	if r.Key == "" {
		return DefaultStorageKey
	}
	return r.Key
}

func (r DocumentRepository) collection() string {
	if r.Collection == "" {
		return "settings"
	}
	return r.Collection
}

func (r DocumentRepository) Load(ctx context.Context) ([]byte, error) {
	doc, ok, err := r.Store.Get(ctx, r.collection(), r.key())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	raw, _ := doc[documentField].(string)
	return []byte(raw), nil
}

func (r DocumentRepository) Save(ctx context.Context, data []byte) error {
	doc := docstore.Document{documentField: string(data)}
	err := r.Store.Update(ctx, r.collection(), r.key(), doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return r.Store.Create(ctx, r.collection(), r.key(), doc)
	}
	return err
}
