package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Publisher delivers a rendered README somewhere readers will see it
type Publisher interface {
	Publish(ctx context.Context, content []byte) error
}

// NopPublisher drops the content
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, content []byte) error {
	return nil
}

// FilePublisher writes the README to a local file. The write goes through
// a temp file and rename so readers never see a partial README.
type FilePublisher struct {
	Path string
}

// NewFilePublisher creates a publisher writing to path
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{Path: path}
}

func (p *FilePublisher) Publish(ctx context.Context, content []byte) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create readme directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".readme-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write readme: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close readme: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod readme: %w", err)
	}
	if err := os.Rename(tmpPath, p.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace readme: %w", err)
	}
	return nil
}

// MultiPublisher publishes to every publisher in order and reports the
// first failure after trying them all.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, content []byte) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, content); err != nil && first == nil {
			first = err
		}
	}
	return first
}
