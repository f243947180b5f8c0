package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/detector"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/reusedev/detect-hub/internal/modules/observer"
	"github.com/reusedev/detect-hub/internal/modules/queue"
)

// Detect runs one full request: create the session, run inference, record the
// kept detections. A session whose inference or recording fails is discarded,
// leaving neither rows nor the stored image behind.
func (s *Service) Detect(ctx context.Context, req DetectRequest) (*Summary, error) {
	if !validThreshold(req.Threshold) {
		return nil, errs.Validation("threshold must be between 0.0 and 1.0, got %v", req.Threshold)
	}
	modelID, det, err := s.detectors.Get(req.ModelID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	session, err := s.CreateSession(ctx, req.Upload, req.Threshold, modelID)
	if err != nil {
		return nil, err
	}

	predictions, err := predict(ctx, det, req.Data)
	if err != nil {
		s.fail(ctx, session.Id, modelID, err)
		return nil, errs.Inference(err, "model "+modelID)
	}

	summary, err := s.RecordDetections(ctx, session.Id, predictions)
	if err != nil {
		s.fail(ctx, session.Id, modelID, err)
		return nil, err
	}

	s.enqueueThumbnail(session.Id)
	s.events.Notify(observer.EventDetectionCompleted, observer.DetectionData{
		SessionID: session.Id,
		ModelID:   modelID,
		Counts:    summary.Counts,
		Total:     summary.TotalCount,
		Duration:  time.Since(start),
	})
	logs.Logger.Info().
		Str("session_id", session.Id).
		Str("model", modelID).
		Int("predictions", len(predictions)).
		Int("total", summary.TotalCount).
		Dur("consume_ms", time.Since(start)).
		Msg("detection done")
	return summary, nil
}

// predict turns a detector panic into an error so the session is still discarded.
func predict(ctx context.Context, det detector.Detector, data []byte) (preds []model.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return det.Predict(ctx, data)
}

func (s *Service) fail(ctx context.Context, sessionID, modelID string, cause error) {
	logs.Logger.Err(cause).Str("session_id", sessionID).Str("model", modelID).Msg("detection failed")
	if err := s.discard(context.WithoutCancel(ctx), sessionID); err != nil {
		logs.Logger.Err(err).Str("session_id", sessionID).Msg("discard session")
	}
	s.events.Notify(observer.EventDetectionFailed, observer.DetectionData{SessionID: sessionID, ModelID: modelID, Err: cause})
}

// discard physically removes a session that never reached a result.
func (s *Service) discard(ctx context.Context, sessionID string) error {
	var imagePath string
	err := s.gateway.Transaction(ctx, func(ctx context.Context) error {
		img, err := dao.GetByIDWithExpired[model.DetectionImage](ctx, s.gateway, sessionID)
		if err == nil {
			imagePath = img.ImagePath
		}
		if err := dao.PurgeWhere[model.Detection](ctx, s.gateway, "session_id", sessionID); err != nil {
			return err
		}
		if err := dao.PurgeWhere[model.DetectionCount](ctx, s.gateway, "session_id", sessionID); err != nil {
			return err
		}
		if err := dao.PurgeWhere[model.DetectionImage](ctx, s.gateway, "session_id", sessionID); err != nil {
			return err
		}
		return dao.PurgeWhere[model.DetectionSession](ctx, s.gateway, "id", sessionID)
	})
	if err != nil {
		return err
	}
	s.invalidate(sessionID)
	if imagePath == "" {
		return nil
	}
	return s.blob.Delete(ctx, imagePath)
}

func (s *Service) enqueueThumbnail(sessionID string) {
	if s.tasks == nil || !s.thumbnail.Enabled {
		return
	}
	s.tasks.Enqueue(&queue.ThumbnailTask{
		Gateway:   s.gateway,
		Blob:      s.blob,
		SessionID: sessionID,
		Ratio:     s.thumbnail.Ratio,
		OnDone:    s.invalidate,
	})
}
