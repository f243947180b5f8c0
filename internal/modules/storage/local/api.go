package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/reusedev/detect-hub/internal/consts"
)

func SaveFile(f io.Reader, path string) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0770)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, f)
	if err != nil {
		return err
	}
	return nil
}

func DeleteFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Storage keeps blobs under a directory on local disk.
type Storage struct {
	root string
}

func New(root string) *Storage {
	return &Storage{root: root}
}

func (s *Storage) Supplier() consts.StorageSupplier {
	return consts.StorageLocal
}

func (s *Storage) Write(_ context.Context, name string, data []byte) (string, map[string]string, error) {
	path := filepath.Join(s.root, filepath.Base(name))
	if err := SaveFile(bytes.NewReader(data), path); err != nil {
		return "", nil, err
	}
	return path, map[string]string{consts.MetaLocalPath: path}, nil
}

func (s *Storage) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *Storage) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *Storage) Delete(_ context.Context, path string) error {
	return DeleteFile(path)
}
