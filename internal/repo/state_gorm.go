package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/session"
)

type PersistedState struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PersistedState) TableName() string {
	return "persisted_states"
}

// GormRepo keeps client state rows in sqlite or postgres.
type GormRepo struct {
	DB *gorm.DB
}

func NewGormRepo(ctx context.Context, db *gorm.DB) (*GormRepo, error) {
	if err := db.WithContext(ctx).AutoMigrate(&PersistedState{}); err != nil {
		return nil, err
	}
	return &GormRepo{DB: db}, nil
}

func (r *GormRepo) Load(ctx context.Context, key string) ([]byte, error) {
	var row PersistedState
	if err := r.DB.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return row.Value, nil
}

func (r *GormRepo) Save(ctx context.Context, key string, value []byte) error {
	row := PersistedState{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (r *GormRepo) Delete(ctx context.Context, key string) error {
	return r.DB.WithContext(ctx).Where("key = ?", key).Delete(&PersistedState{}).Error
}
