package counter

import (
	"context"
	"errors"

	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"gorm.io/gorm"
)

// ReadWriteRepository looks the row up and then updates or inserts it. Two
// writers on the same (session, class) can lose an update; use it only with a
// single writer per session.
type ReadWriteRepository struct {
	base
}

func NewReadWriteRepository(g *dao.Gateway) Repository {
	return &ReadWriteRepository{base{gateway: g, name: consts.CountBackendReadWrite.String()}}
}

func (r *ReadWriteRepository) SaveCounts(ctx context.Context, sessionID string, counts map[string]int) error {
	return r.save(ctx, sessionID, counts, r.accumulate)
}

func (r *ReadWriteRepository) accumulate(ctx context.Context, sessionID, className string, n int) error {
	var existing model.DetectionCount
	err := dao.QueryLive[model.DetectionCount](ctx, r.gateway).
		Where("session_id = ? AND class_name = ?", sessionID, className).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, err = dao.Add(ctx, r.gateway, &model.DetectionCount{SessionId: sessionID, ClassName: className, Count: n})
		return err
	}
	if err != nil {
		return dao.Translate(err, "lookup count")
	}
	return dao.Update[model.DetectionCount](ctx, r.gateway, existing.Id, map[string]any{"count": existing.Count + n})
}
