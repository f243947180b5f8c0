package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/tools"
)

const thumbnailQuality = 85

// BlobStore is the subset of storage.Blob a thumbnail needs.
type BlobStore interface {
	Write(ctx context.Context, name string, data []byte) (string, map[string]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// ThumbnailTask renders a scaled copy of a session's stored image and records
// its path under storage_metadata.thumbnail_path.
type ThumbnailTask struct {
	Gateway   *dao.Gateway
	Blob      BlobStore
	SessionID string
	Ratio     float64
	// OnDone runs after the image row has been updated.
	OnDone func(sessionID string)
}

func (t *ThumbnailTask) Name() string {
	return "thumbnail:" + t.SessionID
}

func (t *ThumbnailTask) Execute(ctx context.Context) error {
	img, err := dao.GetByID[model.DetectionImage](ctx, t.Gateway, t.SessionID)
	if err != nil {
		return err
	}
	data, err := t.Blob.Read(ctx, img.ImagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	thumb, err := tools.Thumbnail(data, t.Ratio, thumbnailQuality)
	if err != nil {
		return fmt.Errorf("render thumbnail: %w", err)
	}
	path, _, err := t.Blob.Write(ctx, t.SessionID+"_thumbnail.jpg", thumb)
	if err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}

	meta := model.StorageMetadata{}
	for k, v := range img.StorageMetadata {
		meta[k] = v
	}
	meta[consts.MetaThumbnailPath] = path
	err = dao.Update[model.DetectionImage](ctx, t.Gateway, t.SessionID, map[string]any{"storage_metadata": meta})
	if errors.Is(err, errs.ErrNotFound) {
		// session deleted while rendering
		_ = t.Blob.Delete(ctx, path)
	}
	if err != nil {
		return err
	}
	if t.OnDone != nil {
		t.OnDone(t.SessionID)
	}
	return nil
}
