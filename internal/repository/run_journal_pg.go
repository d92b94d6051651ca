package repository

import (
	"context"

	"github.com/GoPolymarket/safeboard/internal/model"
	"gorm.io/gorm"
)

type PostgresRunJournal struct {
	db *gorm.DB
}

func NewPostgresRunJournal(db *gorm.DB) (*PostgresRunJournal, error) {
	if err := db.AutoMigrate(&model.RunRecord{}); err != nil {
		return nil, err
	}
	return &PostgresRunJournal{db: db}, nil
}

func (r *PostgresRunJournal) Record(ctx context.Context, rec *model.RunRecord) error {
	if rec == nil {
		return nil
	}
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *PostgresRunJournal) List(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	var records []*model.RunRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&records).Error
	return records, err
}
