package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rchan/rchan-web/models"
)

// GormStore keeps sessions in a SQL table (MySQL in production, SQLite for single-node setups).
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (g *GormStore) Load(ctx context.Context, id string) (*Session, error) {
	var rec models.SessionRecord
	err := g.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, g.now()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return decode([]byte(rec.Data))
}

func (g *GormStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	rec := models.SessionRecord{ID: s.ID, Data: string(b), ExpiresAt: g.now().Add(ttl)}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (g *GormStore) Delete(ctx context.Context, id string) error {
	if err := g.db.WithContext(ctx).Delete(&models.SessionRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows and returns how many were deleted.
func (g *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", g.now()).Delete(&models.SessionRecord{})
	return res.RowsAffected, res.Error
}
