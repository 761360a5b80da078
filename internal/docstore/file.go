package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

// File keeps one JSON file per collection under Dir, rewritten whole on
// every change through a temp file and a rename.
type File struct {
	Dir string

	mu sync.Mutex
}

func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) Create(_ context.Context, collection, id string, doc Document) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, err := f.read(collection)
	if err != nil {
		return err
	}
	if _, exists := docs[id]; exists {
		return ErrExists
	}
	docs[id] = doc.Clone()
	return f.write(collection, docs)
}

func (f *File) Update(_ context.Context, collection, id string, patch Document) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, err := f.read(collection)
	if err != nil {
		return err
	}
	existing, ok := docs[id]
	if !ok {
		return ErrNotFound
	}
	docs[id] = merge(existing, patch)
	return f.write(collection, docs)
}

func (f *File) Get(_ context.Context, collection, id string) (Document, bool, error) {
	if err := validate(collection, id); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, err := f.read(collection)
	if err != nil {
		return nil, false, err
	}
	doc, ok := docs[id]
	return doc, ok, nil
}

func (f *File) List(_ context.Context, collection string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, err := f.read(collection)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, docs[id])
	}
	return out, nil
}

func (f *File) Close() error { return nil }

// collection paths such as users/abc/history become a single file name.
func (f *File) path(collection string) string {
	return filepath.Join(f.Dir, url.PathEscape(collection)+".json")
}

func (f *File) read(collection string) (map[string]Document, error) {
	data, err := os.ReadFile(f.path(collection))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return map[string]Document{}, nil
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read collection %s", collection)
	}
	docs := map[string]Document{}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "parse collection %s", collection)
	}
	return docs, nil
}

func (f *File) write(collection string, docs map[string]Document) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create store dir")
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "encode collection %s", collection)
	}
	target := f.path(collection)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write collection tmp")
	}
	if err := os.Rename(tmp, target); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "replace collection file")
	}
	return nil
}
