package repository

import (
	"context"

	"clubpos/internal/model"

	"gorm.io/gorm"
)

// AuditoriaRepository is append-only.
type AuditoriaRepository interface {
	Create(ctx context.Context, e *model.EventoAuditoria) error
	CreateTx(tx *gorm.DB, e *model.EventoAuditoria) error
}

type auditoriaRepo struct{ db *gorm.DB }

func NewAuditoriaRepository(db *gorm.DB) AuditoriaRepository { return &auditoriaRepo{db: db} }

func (r *auditoriaRepo) Create(ctx context.Context, e *model.EventoAuditoria) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *auditoriaRepo) CreateTx(tx *gorm.DB, e *model.EventoAuditoria) error {
	return tx.Create(e).Error
}
