// Package lazydelete keeps the tracking file of resources whose removal was
// handed over to a later run or to the provider's own lifecycle.
package lazydelete

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/elC0mpa/aws-teardown/model"
)

const fileVersion = 1

var (
	errRead   = errors.New("failed to read tracking file")
	errWrite  = errors.New("failed to write tracking file")
	errNoID   = errors.New("lazy-delete entry has no id")
	errFormat = errors.New("unsupported tracking file version")
)

func NewFile(path string) Store {
	return &file{path: path}
}

// Upsert inserts new entries and replaces existing ones with the same ID. The
// original creation time of a replaced entry is kept.
func (f *file) Upsert(ctx context.Context, entries ...model.LazyDeleteEntry) error {
	if len(entries) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.ID == "" {
			return errNoID
		}
		idx := slices.IndexFunc(data.Entries, func(existing model.LazyDeleteEntry) bool { return existing.ID == e.ID })
		if idx < 0 {
			data.Entries = append(data.Entries, e)
			continue
		}
		if !data.Entries[idx].CreatedAt.IsZero() {
			e.CreatedAt = data.Entries[idx].CreatedAt
		}
		data.Entries[idx] = e
	}

	slices.SortFunc(data.Entries, func(a, b model.LazyDeleteEntry) int { return strings.Compare(a.ID, b.ID) })
	return f.write(ctx, data)
}

func (f *file) List(ctx context.Context) ([]model.LazyDeleteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read(ctx)
	if err != nil {
		return nil, err
	}
	return data.Entries, nil
}

// Pending returns the entries a sweep still has to look at.
func (f *file) Pending(ctx context.Context) ([]model.LazyDeleteEntry, error) {
	all, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(e model.LazyDeleteEntry) bool { return e.Status != model.LazyDeletePending }), nil
}

// read returns an empty document when the file does not exist yet.
func (f *file) read(_ context.Context) (*trackingFile, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &trackingFile{Version: fileVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRead, err)
	}

	var data trackingFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", errRead, err)
	}
	if data.Version != 0 && data.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", errFormat, data.Version)
	}
	data.Version = fileVersion
	return &data, nil
}

// write replaces the file through a rename so a crash never leaves a
// truncated document behind.
func (f *file) write(_ context.Context, data *trackingFile) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", errWrite, err)
		}
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", errWrite, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: %w", errWrite, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: %w", errWrite, err)
	}
	return nil
}
