package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Fakelatency/ztm-schedule/internal/api/models"
	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/static"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// FileLineRepository serves the line index file written by index-lines.
// The file is read into memory at construction and on Reload.
type FileLineRepository struct {
	path         string
	manifestPath string

	mu       sync.RWMutex
	idx      lineindex.Index
	manifest *static.Manifest
}

// NewFileLineRepository loads the index at path. The manifest is optional.
func NewFileLineRepository(path, manifestPath string) (*FileLineRepository, error) {
	r := &FileLineRepository{path: path, manifestPath: manifestPath}
	if err := r.Reload(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the index file. On failure the previous index stays in use.
func (r *FileLineRepository) Reload(ctx context.Context) error {
	idx, err := lineindex.Load(r.path)
	if err != nil {
		return err
	}
	manifest, _ := static.ReadManifest(r.manifestPath)

	r.mu.Lock()
	r.idx = idx
	r.manifest = manifest
	r.mu.Unlock()
	return nil
}

// ListLines returns every line with its stop count, sorted by line
func (r *FileLineRepository) ListLines(ctx context.Context) ([]models.LineSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := r.idx.Lines()
	out := make([]models.LineSummary, 0, len(lines))
	for _, line := range lines {
		out = append(out, models.LineSummary{Line: line, StopCount: len(r.idx[line])})
	}
	return out, nil
}

// GetLineStops returns the stops of a line in index order
func (r *FileLineRepository) GetLineStops(ctx context.Context, line string) ([]stops.Stop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, err := r.idx.Stops(line)
	if err != nil {
		return nil, err
	}
	out := make([]stops.Stop, len(list))
	copy(out, list)
	return out, nil
}

// IndexInfo describes the loaded index
func (r *FileLineRepository) IndexInfo(ctx context.Context) (models.IndexInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := models.IndexInfo{Source: "file", Lines: len(r.idx)}
	if r.manifest != nil {
		info.RunID = r.manifest.RunID
		if t, err := time.Parse(time.RFC3339, r.manifest.GeneratedAt); err == nil {
			info.GeneratedAt = &t
		}
	}
	return info, nil
}
