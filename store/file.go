package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps the collection as a JSON array on disk. It reads the file on every call and
// rewrites it atomically on Upsert, so it suits the local runner, not concurrent processes.
type File struct {
	mu       sync.Mutex
	FilePath string
}

func NewFile(filePath string) *File {
	return &File{FilePath: filePath}
}

func (f *File) load() ([]Document, error) {
	data, err := os.ReadFile(f.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.FilePath, err)
	}
	return docs, nil
}

func (f *File) Get(ctx context.Context, id string) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, err := f.load()
	if err != nil {
		return Document{}, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (f *File) Scan(ctx context.Context, q Query) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, err := f.load()
	if err != nil {
		return nil, err
	}
	return selectDocs(docs, q), nil
}

func (f *File) Upsert(ctx context.Context, d Document) error {
	if err := validate(d); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	docs, err := f.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range docs {
		if docs[i].ID == d.ID {
			docs[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, d)
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.FilePath), 0o755); err != nil {
		return err
	}
	tmp := f.FilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.FilePath)
}
