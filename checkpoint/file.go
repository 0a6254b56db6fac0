package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/adaptive"
)

// document is the on-disk layout of a FileStore.
type document[X comparable, Y any] struct {
	Meta    Meta                     `yaml:"meta"`
	Samples []adaptive.Sample[X, Y] `yaml:"samples"`
}

// FileStore keeps the samples in one YAML file. Every save rewrites the
// file through a temporary file and a rename, so readers never see a
// partial document.
type FileStore[X comparable, Y any] struct {
	path string
	mu   sync.Mutex
}

// Save writes samples to the file.
func (f *FileStore[X, Y]) Save(ctx context.Context, samples []adaptive.Sample[X, Y]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(document[X, Y]{Meta: metaOf(samples), Samples: samples})
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating checkpoint: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("writing checkpoint: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}

	return nil
}

// Load reads the samples back. A missing file holds no samples.
func (f *FileStore[X, Y]) Load(ctx context.Context) ([]adaptive.Sample[X, Y], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, ok, err := f.read()
	if err != nil || !ok {
		return nil, err
	}

	if len(doc.Samples) != doc.Meta.Count {
		return nil, fmt.Errorf("checkpoint %s holds %d samples, meta says %d", f.path, len(doc.Samples), doc.Meta.Count)
	}

	return doc.Samples, nil
}

// Meta returns the description of the stored checkpoint.
func (f *FileStore[X, Y]) Meta() (Meta, bool, error) {
	doc, ok, err := f.read()

	return doc.Meta, ok, err
}

// Close is a no-op.
func (f *FileStore[X, Y]) Close() error {
	return nil
}

// Path returns the file's location.
func (f *FileStore[X, Y]) Path() string {
	return f.path
}

func (f *FileStore[X, Y]) read() (document[X, Y], bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var doc document[X, Y]

	data, err := os.ReadFile(f.path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return doc, false, nil
	case err != nil:
		return doc, false, fmt.Errorf("reading checkpoint: %w", err)
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, false, fmt.Errorf("decoding checkpoint %s: %w", f.path, err)
	}

	return doc, true, nil
}

// NewFileStore stores samples at path. The directory must exist.
func NewFileStore[X comparable, Y any](path string) (*FileStore[X, Y], error) {
	if path == "" {
		return nil, fmt.Errorf("%w: checkpoint path is empty", adaptive.ErrInvalidInput)
	}

	return &FileStore[X, Y]{path: path}, nil
}

var _ Store[float64, float64] = (*FileStore[float64, float64])(nil)
