package storage

import (
	"context"
	"fmt"

	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/storage/ali"
	"github.com/reusedev/detect-hub/internal/modules/storage/local"
)

// Blob is where uploaded images and thumbnails live. Paths returned by Write
// are what the other methods accept.
type Blob interface {
	Supplier() consts.StorageSupplier
	Write(ctx context.Context, name string, data []byte) (path string, meta map[string]string, err error)
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Size(ctx context.Context, path string) (int64, error)
	Delete(ctx context.Context, path string) error
}

var (
	_ Blob = (*local.Storage)(nil)
	_ Blob = (*ali.Client)(nil)
)

// New builds the blob store named by storage_supplier. ali_oss expects
// ali.InitOSS to have run.
func New(c *config.Config) (Blob, error) {
	switch consts.StorageSupplier(c.StorageSupplier) {
	case consts.StorageLocal:
		return local.New(c.UploadDir), nil
	case consts.StorageAliOss:
		if ali.OssClient == nil {
			return nil, fmt.Errorf("oss client is not initialised")
		}
		return ali.OssClient, nil
	default:
		return nil, fmt.Errorf("unknown storage supplier %q", c.StorageSupplier)
	}
}
