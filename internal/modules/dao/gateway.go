package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reusedev/detect-hub/internal/modules/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entity is implemented by every model the gateway can look up by key.
type Entity interface {
	KeyColumn() string
}

type txKey struct{}

// Gateway is the single entry point to the relational store. Every read built
// through it goes through gorm's soft delete scope on expired_at, unless the
// caller asks for history explicitly with QueryWithExpired.
type Gateway struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// Conn returns the transaction carried by ctx, or the base handle.
func (g *Gateway) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return g.db.WithContext(ctx)
}

// InTransaction reports whether ctx already carries a unit of work.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// Transaction runs fn in one all-or-nothing unit of work. Gateway calls made
// with the ctx handed to fn join it; a nested Transaction becomes a savepoint
// of the outer one, so the outermost rollback still undoes everything.
func (g *Gateway) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := g.Conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		return Translate(err, "transaction")
	}
	return nil
}

// Translate maps storage errors onto the error taxonomy.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errs.Classified(err) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFound("%s", what)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s: %w", errs.ErrValidation, what, err)
	case strings.Contains(strings.ToLower(err.Error()), "check constraint"):
		return fmt.Errorf("%w: %s: %w", errs.ErrValidation, what, err)
	default:
		return errs.Persistence(err, what)
	}
}

func QueryLive[T any](ctx context.Context, g *Gateway) *gorm.DB {
	return g.Conn(ctx).Model(new(T))
}

func QueryWithExpired[T any](ctx context.Context, g *Gateway) *gorm.DB {
	return g.Conn(ctx).Unscoped().Model(new(T))
}

func keyEq[T Entity](id any) clause.Eq {
	var zero T
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: zero.KeyColumn()}, Value: id}
}

func GetByID[T Entity](ctx context.Context, g *Gateway, id any) (*T, error) {
	var out T
	err := QueryLive[T](ctx, g).Where(keyEq[T](id)).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("no %T found with id [%v]", out, id)
	}
	if err != nil {
		return nil, Translate(err, fmt.Sprintf("get %T", out))
	}
	return &out, nil
}

// GetByIDWithExpired reads a row regardless of its expired_at.
func GetByIDWithExpired[T Entity](ctx context.Context, g *Gateway, id any) (*T, error) {
	var out T
	err := QueryWithExpired[T](ctx, g).Where(keyEq[T](id)).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("no %T found with id [%v]", out, id)
	}
	if err != nil {
		return nil, Translate(err, fmt.Sprintf("get %T", out))
	}
	return &out, nil
}

// Add inserts entity and returns it with generated fields (id, timestamps) populated.
func Add[T any](ctx context.Context, g *Gateway, entity *T) (*T, error) {
	if err := g.Conn(ctx).Create(entity).Error; err != nil {
		return nil, Translate(err, fmt.Sprintf("add %T", *entity))
	}
	return entity, nil
}

func AddAll[T any](ctx context.Context, g *Gateway, entities []T) ([]T, error) {
	if len(entities) == 0 {
		return entities, nil
	}
	if err := g.Conn(ctx).Create(&entities).Error; err != nil {
		return nil, Translate(err, fmt.Sprintf("add %d %T", len(entities), entities[0]))
	}
	return entities, nil
}

// Update applies values to a live row. A missing or expired row is NotFound.
func Update[T Entity](ctx context.Context, g *Gateway, id any, values map[string]any) error {
	var zero T
	if _, ok := values["updated_at"]; !ok {
		values["updated_at"] = time.Now()
	}
	// values are validated by the caller; model hooks would only see a zero value here
	ret := QueryLive[T](ctx, g).Where(keyEq[T](id)).Session(&gorm.Session{SkipHooks: true}).Updates(values)
	if ret.Error != nil {
		return Translate(ret.Error, fmt.Sprintf("update %T", zero))
	}
	if ret.RowsAffected == 0 {
		return errs.NotFound("no %T found with id [%v]", zero, id)
	}
	return nil
}

// SoftDelete sets expired_at on entity; the row stays in storage.
func SoftDelete[T any](ctx context.Context, g *Gateway, entity *T) error {
	if err := g.Conn(ctx).Delete(entity).Error; err != nil {
		return Translate(err, fmt.Sprintf("soft delete %T", *entity))
	}
	return nil
}

func SoftDeleteAll[T any](ctx context.Context, g *Gateway, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	return g.Transaction(ctx, func(ctx context.Context) error {
		if err := g.Conn(ctx).Delete(&entities).Error; err != nil {
			return Translate(err, fmt.Sprintf("soft delete %d %T", len(entities), entities[0]))
		}
		return nil
	})
}

// SoftDeleteWhere expires every live row of T matching column = value.
func SoftDeleteWhere[T any](ctx context.Context, g *Gateway, column string, value any) (int64, error) {
	ret := QueryLive[T](ctx, g).Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).Delete(new(T))
	if ret.Error != nil {
		return 0, Translate(ret.Error, fmt.Sprintf("soft delete %T", *new(T)))
	}
	return ret.RowsAffected, nil
}

// PurgeWhere physically removes rows of T matching column = value, expired or not.
func PurgeWhere[T any](ctx context.Context, g *Gateway, column string, value any) error {
	err := g.Conn(ctx).Unscoped().Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).Delete(new(T)).Error
	return Translate(err, fmt.Sprintf("purge %T", *new(T)))
}
