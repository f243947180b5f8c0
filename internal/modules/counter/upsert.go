package counter

import (
	"context"
	"time"

	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/dao"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertRepository increments counts with a single insert-or-update statement
// keyed by the (session_id, class_name) unique index. Safe with concurrent writers.
type UpsertRepository struct {
	base
}

func NewUpsertRepository(g *dao.Gateway) Repository {
	return &UpsertRepository{base{gateway: g, name: consts.CountBackendUpsert.String()}}
}

func (r *UpsertRepository) SaveCounts(ctx context.Context, sessionID string, counts map[string]int) error {
	return r.save(ctx, sessionID, counts, r.accumulate)
}

func (r *UpsertRepository) accumulate(ctx context.Context, sessionID, className string, n int) error {
	row := model.DetectionCount{SessionId: sessionID, ClassName: className, Count: n}
	countColumn := clause.Column{Table: row.TableName(), Name: "count"}
	err := r.gateway.Conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "class_name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":      gorm.Expr("? + ?", countColumn, n),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	return dao.Translate(err, "upsert count")
}
