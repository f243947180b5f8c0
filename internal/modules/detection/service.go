package detection

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/cache"
	"github.com/reusedev/detect-hub/internal/modules/counter"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/detector"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/filter"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/internal/modules/observer"
	"github.com/reusedev/detect-hub/internal/modules/queue"
	"github.com/reusedev/detect-hub/internal/modules/storage"
	"github.com/reusedev/detect-hub/tools"
)

const (
	modelsCacheKey = "models"
	modelsTTL      = 5 * time.Minute
)

type Options struct {
	Gateway   *dao.Gateway
	Counter   counter.Repository
	Blob      storage.Blob
	Detectors *detector.Registry
	// optional
	Events    observer.Subject
	Tasks     *queue.Queue
	Thumbnail config.Thumbnail
	// SummaryTTL bounds how long a summary cached by this process may lag a
	// delete made by another replica. Zero disables the summary cache.
	SummaryTTL time.Duration
}

type Service struct {
	gateway   *dao.Gateway
	counter   counter.Repository
	blob      storage.Blob
	detectors *detector.Registry
	events    observer.Subject
	tasks     *queue.Queue
	thumbnail config.Thumbnail
	summaries *cache.Manager[SessionSummary]
	models    *cache.Manager[ModelList]
}

func NewService(opts Options) *Service {
	events := opts.Events
	if events == nil {
		events = observer.NewBroadcaster()
	}
	var summaries *cache.Manager[SessionSummary]
	if opts.SummaryTTL > 0 {
		summaries = cache.New[SessionSummary](opts.SummaryTTL)
	}
	return &Service{
		gateway:   opts.Gateway,
		counter:   opts.Counter,
		blob:      opts.Blob,
		detectors: opts.Detectors,
		events:    events,
		tasks:     opts.Tasks,
		thumbnail: opts.Thumbnail,
		summaries: summaries,
		models:    cache.New[ModelList](modelsTTL),
	}
}

func validThreshold(t float64) bool {
	return !math.IsNaN(t) && t >= 0 && t <= 1
}

func storedName(id, filename string, data []byte) string {
	name := tools.BaseName(filename)
	if name == "" {
		name = "image" + tools.Extension(data)
	}
	return id + "_" + name
}

// CreateSession stores the image and inserts the session and image rows. On
// failure the stored image is removed again and no row survives.
func (s *Service) CreateSession(ctx context.Context, upload Upload, threshold float64, modelID string) (*model.DetectionSession, error) {
	if !validThreshold(threshold) {
		return nil, errs.Validation("threshold must be between 0.0 and 1.0, got %v", threshold)
	}
	if len(upload.Data) == 0 {
		return nil, errs.Validation("image is required")
	}
	if modelID == "" {
		modelID = consts.DefaultModelID
		if s.detectors != nil {
			modelID = s.detectors.DefaultID()
		}
	}

	id := uuid.NewString()
	path, meta, err := s.blob.Write(ctx, storedName(id, upload.Filename, upload.Data), upload.Data)
	if err != nil {
		return nil, errs.Persistence(err, "failed to store image")
	}
	size, err := s.blob.Size(ctx, path)
	if err != nil {
		size = int64(len(upload.Data))
	}
	width, height := tools.ImageSize(upload.Data)

	session := &model.DetectionSession{
		Id:          id,
		Threshold:   threshold,
		ImageHash:   tools.SHA256Hex(upload.Data),
		ImageWidth:  width,
		ImageHeight: height,
		ModelId:     modelID,
	}
	image := &model.DetectionImage{
		SessionId:        id,
		StorageType:      s.blob.Supplier().String(),
		ImagePath:        path,
		OriginalFilename: sql.NullString{String: upload.Filename, Valid: upload.Filename != ""},
		MimeType:         tools.MimeType(upload.Data, upload.ContentType),
		FileSizeBytes:    sql.NullInt64{Int64: size, Valid: true},
		StorageMetadata:  meta,
	}
	err = s.gateway.Transaction(ctx, func(ctx context.Context) error {
		if _, err := dao.Add(ctx, s.gateway, session); err != nil {
			return err
		}
		_, err := dao.Add(ctx, s.gateway, image)
		return err
	})
	if err != nil {
		if delErr := s.blob.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			logs.Logger.Err(delErr).Str("session_id", id).Str("path", path).Msg("remove image after failed session create")
		}
		return nil, errs.Persistence(err, "failed to create detection session")
	}
	s.events.Notify(observer.EventSessionCreated, observer.DetectionData{SessionID: id, ModelID: modelID})
	return session, nil
}

// RecordDetections persists the predictions at or above the session's own
// threshold, accumulates their counts and stamps the session totals, all in
// one transaction.
func (s *Service) RecordDetections(ctx context.Context, sessionID string, predictions []model.Prediction) (*Summary, error) {
	start := time.Now()
	var summary *Summary
	err := s.gateway.Transaction(ctx, func(ctx context.Context) error {
		session, err := dao.GetByID[model.DetectionSession](ctx, s.gateway, sessionID)
		if err != nil {
			return err
		}
		kept, counts := filter.FilterAndCount(predictions, session.Threshold)
		rows := make([]model.Detection, 0, len(kept))
		results := make([]model.DetectionResult, 0, len(kept))
		for _, p := range kept {
			if !p.Box.Valid() {
				return errs.Validation("invalid bbox %v for class %s", p.Box.Slice(), p.ClassName)
			}
			rows = append(rows, model.Detection{
				SessionId:  sessionID,
				ClassName:  p.ClassName,
				Confidence: p.Confidence,
				BboxX1:     p.Box.X1,
				BboxY1:     p.Box.Y1,
				BboxX2:     p.Box.X2,
				BboxY2:     p.Box.Y2,
			})
			results = append(results, p.Result())
		}
		if _, err := dao.AddAll(ctx, s.gateway, rows); err != nil {
			return err
		}
		if err := s.counter.SaveCounts(ctx, sessionID, counts); err != nil {
			return err
		}
		total, err := s.counter.GetTotalCount(ctx, sessionID)
		if err != nil {
			return err
		}
		elapsed := time.Since(start).Milliseconds()
		err = dao.Update[model.DetectionSession](ctx, s.gateway, sessionID, map[string]any{
			"total_objects_detected": total,
			"processing_time_ms":     elapsed,
		})
		if err != nil {
			return err
		}
		summary = &Summary{
			SessionID:        sessionID,
			ModelID:          session.ModelId,
			Results:          results,
			Counts:           counts,
			TotalCount:       total,
			ProcessingTimeMs: elapsed,
			ThresholdApplied: session.Threshold,
			ImageDimensions:  [2]int{session.ImageWidth, session.ImageHeight},
		}
		return nil
	})
	if err != nil {
		return nil, errs.Persistence(err, "failed to record detections")
	}
	s.invalidate(sessionID)
	return summary, nil
}

func (s *Service) GetSessionThreshold(ctx context.Context, sessionID string) (float64, error) {
	session, err := dao.GetByID[model.DetectionSession](ctx, s.gateway, sessionID)
	if err != nil {
		return 0, err
	}
	return session.Threshold, nil
}

func (s *Service) GetDetections(ctx context.Context, sessionID string) ([]model.DetectionResult, error) {
	if _, err := dao.GetByID[model.DetectionSession](ctx, s.gateway, sessionID); err != nil {
		return nil, err
	}
	var rows []model.Detection
	err := dao.QueryLive[model.Detection](ctx, s.gateway).
		Where("session_id = ?", sessionID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, dao.Translate(err, "get detections")
	}
	ret := make([]model.DetectionResult, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, r.Result())
	}
	return ret, nil
}

func (s *Service) UpdateSessionDimensions(ctx context.Context, sessionID string, width, height int) error {
	if width < 0 || height < 0 {
		return errs.Validation("image dimensions must not be negative, got %dx%d", width, height)
	}
	err := dao.Update[model.DetectionSession](ctx, s.gateway, sessionID, map[string]any{
		"image_width":  width,
		"image_height": height,
	})
	if err != nil {
		return err
	}
	s.invalidate(sessionID)
	return nil
}

func (s *Service) GetCounts(ctx context.Context, sessionID string) (map[string]int, error) {
	if _, err := dao.GetByID[model.DetectionSession](ctx, s.gateway, sessionID); err != nil {
		return nil, err
	}
	return s.counter.GetCounts(ctx, sessionID)
}

func (s *Service) GetClassCountsByDateRange(ctx context.Context, start, end time.Time) (map[string]int, error) {
	return s.counter.GetClassCountsByDateRange(ctx, start, end)
}

// GetSession reads a session with its detections, counts and image. With
// includeExpired a soft deleted session is returned with its expired rows.
func (s *Service) GetSession(ctx context.Context, sessionID string, includeExpired bool) (*SessionSummary, error) {
	if !includeExpired && s.summaries != nil {
		if v, ok := s.summaries.Get(sessionID); ok {
			return &v, nil
		}
	}

	var (
		session *model.DetectionSession
		err     error
	)
	if includeExpired {
		session, err = dao.GetByIDWithExpired[model.DetectionSession](ctx, s.gateway, sessionID)
	} else {
		session, err = dao.GetByID[model.DetectionSession](ctx, s.gateway, sessionID)
	}
	if err != nil {
		return nil, err
	}
	query := dao.QueryLive[model.Detection]
	countQuery := dao.QueryLive[model.DetectionCount]
	if includeExpired {
		query = dao.QueryWithExpired[model.Detection]
		countQuery = dao.QueryWithExpired[model.DetectionCount]
	}

	var detections []model.Detection
	if err := query(ctx, s.gateway).Where("session_id = ?", sessionID).Order("id").Find(&detections).Error; err != nil {
		return nil, dao.Translate(err, "get session detections")
	}
	var counts []model.DetectionCount
	if err := countQuery(ctx, s.gateway).Where("session_id = ?", sessionID).Find(&counts).Error; err != nil {
		return nil, dao.Translate(err, "get session counts")
	}
	var image *model.DetectionImage
	if includeExpired {
		image, err = dao.GetByIDWithExpired[model.DetectionImage](ctx, s.gateway, sessionID)
	} else {
		image, err = dao.GetByID[model.DetectionImage](ctx, s.gateway, sessionID)
	}
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	summary := SessionSummary{}
	if err := copier.Copy(&summary, session); err != nil {
		return nil, errs.Persistence(err, "project session")
	}
	summary.ImageDimensions = [2]int{session.ImageWidth, session.ImageHeight}
	if session.ExpiredAt.Valid {
		t := session.ExpiredAt.Time
		summary.ExpiredAt = &t
	}
	if session.ProcessingTimeMs.Valid {
		ms := session.ProcessingTimeMs.Int64
		summary.ProcessingTimeMs = &ms
	}
	summary.Counts = make(map[string]int, len(counts))
	for _, c := range counts {
		summary.Counts[c.ClassName] = c.Count
	}
	summary.Detections = make([]model.DetectionResult, 0, len(detections))
	for _, d := range detections {
		summary.Detections = append(summary.Detections, d.Result())
	}
	if image != nil {
		summary.Image = &ImageInfo{
			StorageType:      image.StorageType,
			ImagePath:        image.ImagePath,
			OriginalFilename: image.OriginalFilename.String,
			MimeType:         image.MimeType,
			FileSizeBytes:    image.FileSizeBytes.Int64,
			ThumbnailPath:    image.StorageMetadata[consts.MetaThumbnailPath],
		}
	}

	if !includeExpired && s.summaries != nil {
		if err := s.summaries.Set(sessionID, summary); err != nil {
			logs.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("cache session summary")
		}
	}
	return &summary, nil
}

// DeleteSession soft deletes the session and every row it owns.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.gateway.Transaction(ctx, func(ctx context.Context) error {
		session, err := dao.GetByID[model.DetectionSession](ctx, s.gateway, sessionID)
		if err != nil {
			return err
		}
		if _, err := dao.SoftDeleteWhere[model.Detection](ctx, s.gateway, "session_id", sessionID); err != nil {
			return err
		}
		if _, err := dao.SoftDeleteWhere[model.DetectionCount](ctx, s.gateway, "session_id", sessionID); err != nil {
			return err
		}
		if _, err := dao.SoftDeleteWhere[model.DetectionImage](ctx, s.gateway, "session_id", sessionID); err != nil {
			return err
		}
		return dao.SoftDelete(ctx, s.gateway, session)
	})
	if err != nil {
		return errs.Persistence(err, "failed to delete session")
	}
	s.invalidate(sessionID)
	s.events.Notify(observer.EventSessionDeleted, observer.DetectionData{SessionID: sessionID})
	return nil
}

// ListModels describes the configured detectors.
func (s *Service) ListModels() ModelList {
	if v, ok := s.models.Get(modelsCacheKey); ok {
		return v
	}
	ret := ModelList{Models: map[string]detector.ModelInfo{}, DefaultModel: s.detectors.DefaultID()}
	for _, info := range s.detectors.List() {
		ret.Models[info.ID] = info
	}
	_ = s.models.Set(modelsCacheKey, ret)
	return ret
}

func (s *Service) invalidate(sessionID string) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.Delete(sessionID); err != nil {
		logs.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("invalidate session summary")
	}
}
