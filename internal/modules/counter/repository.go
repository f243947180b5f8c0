package counter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/logs"
	"github.com/reusedev/detect-hub/internal/modules/model"
)

// Repository is the durable per class tally of detection sessions.
//
// SaveCounts is additive: counts for classes that already have a row are added
// to it, so a retried call counts twice. After every call the session's
// total_objects_detected equals the sum of its live count rows.
type Repository interface {
	SaveCounts(ctx context.Context, sessionID string, counts map[string]int) error
	GetCounts(ctx context.Context, sessionID string) (map[string]int, error)
	GetTotalCount(ctx context.Context, sessionID string) (int, error)
	GetClassCountsByDateRange(ctx context.Context, start, end time.Time) (map[string]int, error)
}

type Constructor func(g *dao.Gateway) Repository

// Backends maps count_backend config keys to repository constructors.
func Backends() map[consts.CountBackend]Constructor {
	return map[consts.CountBackend]Constructor{
		consts.CountBackendUpsert:    NewUpsertRepository,
		consts.CountBackendReadWrite: NewReadWriteRepository,
	}
}

func New(backend string, g *dao.Gateway) (Repository, error) {
	c, ok := Backends()[consts.CountBackend(backend)]
	if !ok {
		return nil, fmt.Errorf("unknown count backend %q", backend)
	}
	return c(g), nil
}

// accumulator adds n to the (session, class) row, creating it when missing.
type accumulator func(ctx context.Context, sessionID, className string, n int) error

type base struct {
	gateway *dao.Gateway
	name    string
}

func (b *base) save(ctx context.Context, sessionID string, counts map[string]int, accumulate accumulator) error {
	err := b.gateway.Transaction(ctx, func(ctx context.Context) error {
		if _, err := dao.GetByID[model.DetectionSession](ctx, b.gateway, sessionID); err != nil {
			return err
		}
		// fixed order so concurrent writers lock rows the same way
		classes := make([]string, 0, len(counts))
		for c := range counts {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, c := range classes {
			if counts[c] <= 0 {
				return errs.Validation("count for class %s must be positive, got %d", c, counts[c])
			}
			if err := accumulate(ctx, sessionID, c, counts[c]); err != nil {
				return err
			}
		}
		total, err := b.sumCounts(ctx, sessionID)
		if err != nil {
			return err
		}
		return dao.Update[model.DetectionSession](ctx, b.gateway, sessionID, map[string]any{"total_objects_detected": total})
	})
	if err != nil {
		logs.Logger.Error().Err(err).Str("backend", b.name).Str("session_id", sessionID).Msg("save counts")
		return errs.Persistence(err, "failed to save counts")
	}
	return nil
}

func (b *base) sumCounts(ctx context.Context, sessionID string) (int, error) {
	var total int
	err := dao.QueryLive[model.DetectionCount](ctx, b.gateway).
		Select("COALESCE(SUM(detection_counts.count), 0)").
		Where("detection_counts.session_id = ?", sessionID).
		Scan(&total).Error
	if err != nil {
		return 0, dao.Translate(err, "sum counts")
	}
	return total, nil
}

func (b *base) GetCounts(ctx context.Context, sessionID string) (map[string]int, error) {
	var rows []model.DetectionCount
	err := dao.QueryLive[model.DetectionCount](ctx, b.gateway).Where("session_id = ?", sessionID).Find(&rows).Error
	if err != nil {
		return nil, errs.Persistence(dao.Translate(err, "get counts"), "failed to retrieve counts")
	}
	ret := make(map[string]int, len(rows))
	for _, r := range rows {
		ret[r.ClassName] = r.Count
	}
	return ret, nil
}

// GetTotalCount reads the cached total on the session row.
func (b *base) GetTotalCount(ctx context.Context, sessionID string) (int, error) {
	s, err := dao.GetByID[model.DetectionSession](ctx, b.gateway, sessionID)
	if err != nil {
		return 0, err
	}
	return s.TotalObjectsDetected, nil
}

// GetClassCountsByDateRange sums counts per class over live sessions created in [start, end].
func (b *base) GetClassCountsByDateRange(ctx context.Context, start, end time.Time) (map[string]int, error) {
	if end.Before(start) {
		return nil, errs.Validation("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	var rows []struct {
		ClassName string
		Total     int
	}
	err := dao.QueryLive[model.DetectionCount](ctx, b.gateway).
		Select("detection_counts.class_name AS class_name, SUM(detection_counts.count) AS total").
		Joins("JOIN detection_sessions ON detection_sessions.id = detection_counts.session_id AND detection_sessions.expired_at IS NULL").
		Where("detection_sessions.created_at >= ? AND detection_sessions.created_at <= ?", start, end).
		Group("detection_counts.class_name").
		Scan(&rows).Error
	if err != nil {
		return nil, errs.Persistence(dao.Translate(err, "counts by date range"), "failed to retrieve counts by date range")
	}
	ret := make(map[string]int, len(rows))
	for _, r := range rows {
		ret[r.ClassName] = r.Total
	}
	return ret, nil
}
