// ABOUTME: Binary blob storage for contract documents
// ABOUTME: Defines the Store interface and a local directory implementation
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
	"go.uber.org/zap"
)

// Store holds document bytes addressed by key. Delete of a missing key is
// not an error.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// DirStore keeps blobs as files under a root directory.
type DirStore struct {
	root string
}

func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", apperr.InvalidField("key", fmt.Sprintf("invalid storage key %q", key))
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *DirStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create blob dir: %w", err)
	}

	// Write then rename so readers never see a partial document.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

func (d *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("blob", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (d *DirStore) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// RemoveAll deletes the blobs of assets whose metadata is already gone.
// Failures are logged and skipped; an orphaned blob is harmless.
func RemoveAll(ctx context.Context, store Store, assets []models.Asset, logger *zap.Logger) int {
	removed := 0
	for _, a := range assets {
		if a.StorageKey == "" {
			continue
		}
		if err := store.Delete(ctx, a.StorageKey); err != nil {
			if logger != nil {
				logger.Warn("failed to delete blob", zap.String("asset_id", a.ID.String()), zap.String("key", a.StorageKey), zap.Error(err))
			}
			continue
		}
		removed++
	}
	return removed
}

// RemoveKeys deletes blobs that have no asset row, such as signing copies.
func RemoveKeys(ctx context.Context, store Store, keys []string, logger *zap.Logger) int {
	removed := 0
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			if logger != nil {
				logger.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		removed++
	}
	return removed
}
