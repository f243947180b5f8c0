package queue

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/reusedev/detect-hub/internal/components/db/dbtest"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/internal/modules/storage/local"
	"github.com/stretchr/testify/require"
)

func seedImage(t *testing.T, g *dao.Gateway, blob *local.Storage) string {
	t.Helper()
	ctx := context.Background()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 80, 40))))

	id := uuid.NewString()
	path, meta, err := blob.Write(ctx, id+"_a.png", buf.Bytes())
	require.NoError(t, err)
	_, err = dao.Add(ctx, g, &model.DetectionSession{Id: id, Threshold: 0.5, ImageHash: "h", ModelId: "m"})
	require.NoError(t, err)
	_, err = dao.Add(ctx, g, &model.DetectionImage{
		SessionId:       id,
		StorageType:     consts.StorageLocal.String(),
		ImagePath:       path,
		MimeType:        "image/png",
		StorageMetadata: meta,
	})
	require.NoError(t, err)
	return id
}

func TestThumbnailTask(t *testing.T) {
	ctx := context.Background()
	g := dao.New(dbtest.New(t))
	blob := local.New(t.TempDir())
	id := seedImage(t, g, blob)

	task := &ThumbnailTask{Gateway: g, Blob: blob, SessionID: id, Ratio: 0.25}
	require.NoError(t, task.Execute(ctx))

	img, err := dao.GetByID[model.DetectionImage](ctx, g, id)
	require.NoError(t, err)
	thumbPath := img.StorageMetadata[consts.MetaThumbnailPath]
	require.NotEmpty(t, thumbPath)
	require.Equal(t, img.ImagePath, img.StorageMetadata[consts.MetaLocalPath])

	data, err := blob.Read(ctx, thumbPath)
	require.NoError(t, err)
	thumb, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 20, thumb.Bounds().Dx())
	require.Equal(t, 10, thumb.Bounds().Dy())
}

func TestThumbnailTaskDeletedSession(t *testing.T) {
	ctx := context.Background()
	g := dao.New(dbtest.New(t))
	blob := local.New(t.TempDir())
	id := seedImage(t, g, blob)
	_, err := dao.SoftDeleteWhere[model.DetectionImage](ctx, g, "session_id", id)
	require.NoError(t, err)

	task := &ThumbnailTask{Gateway: g, Blob: blob, SessionID: id, Ratio: 0.5}
	require.ErrorIs(t, task.Execute(ctx), errs.ErrNotFound)
}
