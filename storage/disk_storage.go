package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// diskStorage keeps one file per key under BaseDir. The leading "/" of a key
// is dropped, so "/nts/nts-keys/3600" lands in BaseDir/nts/nts-keys/3600.
type diskStorage struct {
	BaseDir string
}

// NewDiskStorage initializes a new DiskStorage instance
func NewDiskStorage(baseDir string) *diskStorage {
	return &diskStorage{BaseDir: baseDir}
}

func (ds *diskStorage) path(key string) string {
	return filepath.Join(ds.BaseDir, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// Write writes data to a file for a given key
func (ds *diskStorage) Write(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	filePath := ds.path(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0o600)
}

// Add creates the file for key, failing with ErrExists when it is already there
func (ds *diskStorage) Add(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	filePath := ds.path(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Read reads data from a file for a given key
func (ds *diskStorage) Read(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(ds.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrDoesNotExist
	}
	return data, err
}

// Delete deletes a file for a given key
func (ds *diskStorage) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.Remove(ds.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // Ignore file not found errors
		}
		return err
	}
	return nil
}

// Ping makes sure BaseDir exists and is a directory
func (ds *diskStorage) Ping(ctx context.Context) error {
	info, err := os.Stat(ds.BaseDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(ds.BaseDir + " is not a directory")
	}
	return nil
}
