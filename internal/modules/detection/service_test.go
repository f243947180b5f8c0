package detection

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/components/db/dbtest"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/counter"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/detector"
	"github.com/reusedev/detect-hub/internal/modules/detector/detectortest"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/internal/modules/observer"
	"github.com/reusedev/detect-hub/internal/modules/queue"
	"github.com/reusedev/detect-hub/internal/modules/storage/local"
	"github.com/reusedev/detect-hub/tools"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc    *Service
	g      *dao.Gateway
	dir    string
	fake   *detectortest.Fake
	events []observer.Event
	mu     sync.Mutex
}

func newEnv(t *testing.T, opts ...func(*Options)) *env {
	t.Helper()
	e := &env{dir: t.TempDir(), fake: &detectortest.Fake{ID: "ssd", Threshold: 0.5}}
	e.g = dao.New(dbtest.New(t))
	o := Options{
		Gateway:   e.g,
		Counter:   counter.NewUpsertRepository(e.g),
		Blob:      local.New(e.dir),
		Detectors: detector.NewStaticRegistry(map[string]detector.Detector{"ssd": e.fake}, "ssd"),
		Events: observer.NewBroadcaster(observer.Func(func(ev observer.Event, _ observer.DetectionData) {
			e.mu.Lock()
			e.events = append(e.events, ev)
			e.mu.Unlock()
		})),
	}
	for _, opt := range opts {
		opt(&o)
	}
	e.svc = NewService(o)
	return e
}

func (e *env) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	var names []string
	for _, en := range entries {
		names = append(names, en.Name())
	}
	return names
}

func (e *env) count(t *testing.T, table any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.g.Conn(context.Background()).Unscoped().Model(table).Count(&n).Error)
	return n
}

func pngUpload(t *testing.T, w, h int) Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return Upload{Data: buf.Bytes(), Filename: "street.png", ContentType: "image/png"}
}

func pred(class string, conf float64) model.Prediction {
	return model.Prediction{ClassName: class, Confidence: conf, Box: model.BBox{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0.4}}
}

func TestCreateSessionRejectsThreshold(t *testing.T) {
	e := newEnv(t)
	for _, th := range []float64{1.5, -0.1} {
		_, err := e.svc.CreateSession(context.Background(), pngUpload(t, 2, 2), th, "")
		require.ErrorIs(t, err, errs.ErrValidation)
	}
	_, err := e.svc.CreateSession(context.Background(), Upload{Filename: "empty.png"}, 0.5, "")
	require.ErrorIs(t, err, errs.ErrValidation)

	require.Zero(t, e.count(t, &model.DetectionSession{}))
	require.Zero(t, e.count(t, &model.DetectionImage{}))
	require.Empty(t, e.files(t))
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	up := pngUpload(t, 64, 48)

	s, err := e.svc.CreateSession(ctx, up, 0.5, "")
	require.NoError(t, err)
	require.Equal(t, "ssd", s.ModelId)
	require.Zero(t, s.TotalObjectsDetected)

	live, err := dao.GetByID[model.DetectionSession](ctx, e.g, s.Id)
	require.NoError(t, err)
	require.Equal(t, 64, live.ImageWidth)
	require.Equal(t, 48, live.ImageHeight)
	require.Equal(t, tools.SHA256Hex(up.Data), live.ImageHash)

	img, err := dao.GetByID[model.DetectionImage](ctx, e.g, s.Id)
	require.NoError(t, err)
	require.Equal(t, consts.StorageLocal.String(), img.StorageType)
	require.Equal(t, "street.png", img.OriginalFilename.String)
	require.Equal(t, "image/png", img.MimeType)
	require.Equal(t, int64(len(up.Data)), img.FileSizeBytes.Int64)
	require.Equal(t, img.ImagePath, img.StorageMetadata[consts.MetaLocalPath])

	require.Equal(t, []string{s.Id + "_street.png"}, e.files(t))
	require.Equal(t, int64(1), e.count(t, &model.DetectionSession{}))
	require.Equal(t, int64(1), e.count(t, &model.DetectionImage{}))
	require.Equal(t, []observer.Event{observer.EventSessionCreated}, e.events)
}

func TestCreateSessionUnreadableDimensions(t *testing.T) {
	e := newEnv(t)
	s, err := e.svc.CreateSession(context.Background(), Upload{Data: []byte("not an image"), Filename: "x.bin"}, 0.3, "custom")
	require.NoError(t, err)
	require.Zero(t, s.ImageWidth)
	require.Zero(t, s.ImageHeight)
	require.Equal(t, "custom", s.ModelId)
}

func TestCreateSessionCleansUpOnPersistenceFailure(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.g.Conn(context.Background()).Migrator().DropTable(&model.DetectionImage{}))

	_, err := e.svc.CreateSession(context.Background(), pngUpload(t, 2, 2), 0.5, "")
	require.ErrorIs(t, err, errs.ErrPersistence)
	require.Empty(t, e.files(t), "stored image is removed")
	require.Zero(t, e.count(t, &model.DetectionSession{}), "session insert is rolled back")
}

func TestRecordDetectionsUsesSessionThreshold(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s, err := e.svc.CreateSession(ctx, pngUpload(t, 10, 10), 0.8, "")
	require.NoError(t, err)

	sum, err := e.svc.RecordDetections(ctx, s.Id, []model.Prediction{pred("cat", 0.9), pred("cat", 0.7)})
	require.NoError(t, err)
	require.Equal(t, 1, sum.TotalCount)
	require.Equal(t, 0.8, sum.ThresholdApplied)
	require.Equal(t, [2]int{10, 10}, sum.ImageDimensions)
	require.Len(t, sum.Results, 1)
	require.Equal(t, 0.9, sum.Results[0].Confidence)

	dets, err := e.svc.GetDetections(ctx, s.Id)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	live, err := dao.GetByID[model.DetectionSession](ctx, e.g, s.Id)
	require.NoError(t, err)
	require.Equal(t, 1, live.TotalObjectsDetected)
	require.True(t, live.ProcessingTimeMs.Valid)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 8), 0.5, "")
	require.NoError(t, err)

	sum, err := e.svc.RecordDetections(ctx, s.Id, []model.Prediction{
		pred("person", 0.95),
		{ClassName: "car", Confidence: 0.3, Box: model.BBox{X1: 0.5, Y1: 0.5, X2: 0.6, Y2: 0.6}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, sum.TotalCount)
	require.Equal(t, map[string]int{"person": 1}, sum.Counts)
	require.Len(t, sum.Results, 1)
	require.Equal(t, model.DetectionResult{ClassName: "person", Confidence: 0.95, BBox: []float64{0.1, 0.2, 0.3, 0.4}}, sum.Results[0])

	counts, err := e.svc.GetCounts(ctx, s.Id)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"person": 1}, counts)
}

func TestRecordDetectionsInvalidBBoxRollsBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 8), 0.5, "")
	require.NoError(t, err)

	bad := model.Prediction{ClassName: "dog", Confidence: 0.9, Box: model.BBox{X1: 0.5, Y1: 0.1, X2: 0.2, Y2: 0.4}}
	_, err = e.svc.RecordDetections(ctx, s.Id, []model.Prediction{pred("cat", 0.9), bad})
	require.ErrorIs(t, err, errs.ErrValidation)

	require.Zero(t, e.count(t, &model.Detection{}))
	require.Zero(t, e.count(t, &model.DetectionCount{}))
	live, err := dao.GetByID[model.DetectionSession](ctx, e.g, s.Id)
	require.NoError(t, err)
	require.Zero(t, live.TotalObjectsDetected)
	require.False(t, live.ProcessingTimeMs.Valid)
}

func TestRecordDetectionsMissingSession(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.RecordDetections(context.Background(), "00000000-0000-0000-0000-000000000000", []model.Prediction{pred("cat", 0.9)})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Zero(t, e.count(t, &model.Detection{}))
}

func TestDeleteSessionHidesRows(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 8), 0.5, "")
	require.NoError(t, err)
	_, err = e.svc.RecordDetections(ctx, s.Id, []model.Prediction{pred("cat", 0.9), pred("dog", 0.6)})
	require.NoError(t, err)
	_, err = e.svc.GetSession(ctx, s.Id, false)
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteSession(ctx, s.Id))

	_, err = e.svc.GetDetections(ctx, s.Id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.svc.GetSessionThreshold(ctx, s.Id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.svc.GetCounts(ctx, s.Id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = e.svc.GetSession(ctx, s.Id, false)
	require.ErrorIs(t, err, errs.ErrNotFound, "cached summary is invalidated")
	require.ErrorIs(t, e.svc.DeleteSession(ctx, s.Id), errs.ErrNotFound)

	history, err := e.svc.GetSession(ctx, s.Id, true)
	require.NoError(t, err)
	require.NotNil(t, history.ExpiredAt)
	require.Len(t, history.Detections, 2)
	require.Equal(t, map[string]int{"cat": 1, "dog": 1}, history.Counts)
	require.NotNil(t, history.Image)

	require.Equal(t, int64(1), e.count(t, &model.DetectionSession{}), "row stays in storage")
	require.Equal(t, int64(2), e.count(t, &model.Detection{}))
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 6), 0.5, "")
	require.NoError(t, err)
	_, err = e.svc.RecordDetections(ctx, s.Id, []model.Prediction{pred("cat", 0.9)})
	require.NoError(t, err)

	got, err := e.svc.GetSession(ctx, s.Id, false)
	require.NoError(t, err)
	require.Equal(t, s.Id, got.ID)
	require.Equal(t, "ssd", got.ModelID)
	require.Equal(t, 0.5, got.Threshold)
	require.Equal(t, [2]int{8, 6}, got.ImageDimensions)
	require.Equal(t, 1, got.TotalObjectsDetected)
	require.NotNil(t, got.ProcessingTimeMs)
	require.Nil(t, got.ExpiredAt)
	require.Equal(t, map[string]int{"cat": 1}, got.Counts)
	require.Equal(t, "street.png", got.Image.OriginalFilename)

	require.NoError(t, e.svc.UpdateSessionDimensions(ctx, s.Id, 800, 600))
	got, err = e.svc.GetSession(ctx, s.Id, false)
	require.NoError(t, err)
	require.Equal(t, [2]int{800, 600}, got.ImageDimensions)
}

func TestGetSessionSummaryCache(t *testing.T) {
	ctx := context.Background()
	// another replica deletes the session behind this process's back
	deleteElsewhere := func(t *testing.T, e *env, id string) {
		_, err := dao.SoftDeleteWhere[model.DetectionSession](ctx, e.g, "id", id)
		require.NoError(t, err)
	}

	t.Run("disabled", func(t *testing.T) {
		e := newEnv(t)
		s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 6), 0.5, "")
		require.NoError(t, err)
		_, err = e.svc.GetSession(ctx, s.Id, false)
		require.NoError(t, err)

		deleteElsewhere(t, e, s.Id)
		_, err = e.svc.GetSession(ctx, s.Id, false)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("stale until ttl", func(t *testing.T) {
		e := newEnv(t, func(o *Options) { o.SummaryTTL = 100 * time.Millisecond })
		s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 6), 0.5, "")
		require.NoError(t, err)
		_, err = e.svc.GetSession(ctx, s.Id, false)
		require.NoError(t, err)

		deleteElsewhere(t, e, s.Id)
		_, err = e.svc.GetSession(ctx, s.Id, false)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, err := e.svc.GetSession(ctx, s.Id, false)
			return errors.Is(err, errs.ErrNotFound)
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("local delete invalidates", func(t *testing.T) {
		e := newEnv(t, func(o *Options) { o.SummaryTTL = time.Hour })
		s, err := e.svc.CreateSession(ctx, pngUpload(t, 8, 6), 0.5, "")
		require.NoError(t, err)
		_, err = e.svc.GetSession(ctx, s.Id, false)
		require.NoError(t, err)

		require.NoError(t, e.svc.DeleteSession(ctx, s.Id))
		_, err = e.svc.GetSession(ctx, s.Id, false)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestUpdateSessionDimensions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s, err := e.svc.CreateSession(ctx, Upload{Data: []byte("raw"), Filename: "x"}, 0.5, "")
	require.NoError(t, err)

	require.ErrorIs(t, e.svc.UpdateSessionDimensions(ctx, s.Id, -1, 10), errs.ErrValidation)
	require.NoError(t, e.svc.UpdateSessionDimensions(ctx, s.Id, 1920, 1080))
	live, err := dao.GetByID[model.DetectionSession](ctx, e.g, s.Id)
	require.NoError(t, err)
	require.Equal(t, 1920, live.ImageWidth)
	require.Equal(t, 1080, live.ImageHeight)
	require.False(t, live.UpdatedAt.Before(live.CreatedAt))

	require.ErrorIs(t, e.svc.UpdateSessionDimensions(ctx, "missing", 1, 1), errs.ErrNotFound)
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.fake.Predictions = []model.Prediction{pred("person", 0.95), pred("person", 0.6), pred("car", 0.2)}

	sum, err := e.svc.Detect(ctx, DetectRequest{Upload: pngUpload(t, 16, 9), Threshold: 0.5})
	require.NoError(t, err)
	require.Equal(t, "ssd", sum.ModelID)
	require.Equal(t, map[string]int{"person": 2}, sum.Counts)
	require.Equal(t, 2, sum.TotalCount)
	require.Equal(t, [2]int{16, 9}, sum.ImageDimensions)
	require.Equal(t, 1, e.fake.Calls())
	require.Equal(t, []observer.Event{observer.EventSessionCreated, observer.EventDetectionCompleted}, e.events)
}

func TestDetectInferenceFailureLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	e.fake.Err = errors.New("connection refused")

	_, err := e.svc.Detect(context.Background(), DetectRequest{Upload: pngUpload(t, 4, 4), Threshold: 0.5})
	require.ErrorIs(t, err, errs.ErrInference)

	require.Zero(t, e.count(t, &model.DetectionSession{}))
	require.Zero(t, e.count(t, &model.DetectionImage{}))
	require.Empty(t, e.files(t))
	require.Equal(t, []observer.Event{observer.EventSessionCreated, observer.EventDetectionFailed}, e.events)
}

func TestDetectDetectorPanicLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	e.fake.Panic = "makeslice: cap out of range"

	_, err := e.svc.Detect(context.Background(), DetectRequest{Upload: pngUpload(t, 4, 4), Threshold: 0.5})
	require.ErrorIs(t, err, errs.ErrInference)
	require.Zero(t, e.count(t, &model.DetectionSession{}))
	require.Zero(t, e.count(t, &model.DetectionImage{}))
	require.Empty(t, e.files(t))
}

func TestDetectRecordFailureLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	e.fake.Predictions = []model.Prediction{{ClassName: "cat", Confidence: 0.9, Box: model.BBox{X1: 1, Y1: 1, X2: 0, Y2: 0}}}

	_, err := e.svc.Detect(context.Background(), DetectRequest{Upload: pngUpload(t, 4, 4), Threshold: 0.5})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Zero(t, e.count(t, &model.DetectionSession{}))
	require.Empty(t, e.files(t))
}

func TestDetectValidatesBeforeSideEffects(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Detect(context.Background(), DetectRequest{Upload: pngUpload(t, 4, 4), Threshold: 0.5, ModelID: "yolo"})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = e.svc.Detect(context.Background(), DetectRequest{Upload: pngUpload(t, 4, 4), Threshold: 2})
	require.ErrorIs(t, err, errs.ErrValidation)

	require.Zero(t, e.fake.Calls())
	require.Zero(t, e.count(t, &model.DetectionSession{}))
	require.Empty(t, e.files(t))
}

func TestDetectQueuesThumbnail(t *testing.T) {
	q := queue.New(10)
	e := newEnv(t, func(o *Options) {
		o.Tasks = q
		o.Thumbnail = config.Thumbnail{Enabled: true, Ratio: 0.5}
	})
	e.fake.Predictions = []model.Prediction{pred("cat", 0.9)}

	sum, err := e.svc.Detect(context.Background(), DetectRequest{Upload: pngUpload(t, 20, 10), Threshold: 0.5})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	q.Start(ctx, &wg)
	cancel()
	wg.Wait()

	got, err := e.svc.GetSession(context.Background(), sum.SessionID, false)
	require.NoError(t, err)
	require.NotEmpty(t, got.Image.ThumbnailPath)
	require.FileExists(t, got.Image.ThumbnailPath)
}

func TestListModels(t *testing.T) {
	e := newEnv(t)
	list := e.svc.ListModels()
	require.Equal(t, "ssd", list.DefaultModel)
	require.Equal(t, 0.5, list.Models["ssd"].DefaultThreshold)
	require.Equal(t, list, e.svc.ListModels())
}
