package repository

import (
	"context"
	"time"

	"clubpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VentaPendienteFilter narrows the operator listing of the retry ledger.
type VentaPendienteFilter struct {
	DispositivoID *uuid.UUID
	Sincronizada  *bool
	Page          int
	Limit         int
}

// Fallo is the retry-ledger update applied when an ingestion attempt fails.
type Fallo struct {
	UUID          string
	DispositivoID uuid.UUID
	Payload       datatypes.JSON
	Error         string
	IntentoEn     time.Time
	ProximoEn     time.Time
}

type VentaPendienteRepository interface {
	FindByUUID(ctx context.Context, uuidCliente string) (*model.VentaPendiente, error)
	// LockOrCreateTx inserts the pending row if missing and returns it locked
	// FOR UPDATE. Concurrent submissions of the same UUID queue on that lock.
	LockOrCreateTx(tx *gorm.DB, p *model.VentaPendiente) (*model.VentaPendiente, error)
	MarcarSincronizadaTx(tx *gorm.DB, id uuid.UUID, ventaID uuid.UUID, en time.Time) error
	// RegistrarFallo upserts the failure bookkeeping. A row that is already
	// synchronized is left untouched.
	RegistrarFallo(ctx context.Context, f Fallo) (*model.VentaPendiente, error)
	// ListElegibles returns unsynchronized rows due for another attempt.
	ListElegibles(ctx context.Context, ahora time.Time, dispositivoID *uuid.UUID, maxIntentos, limite int) ([]model.VentaPendiente, error)
	// ListAgotadas returns unsynchronized rows that reached maxIntentos and are
	// still scheduled.
	ListAgotadas(ctx context.Context, maxIntentos, limite int) ([]model.VentaPendiente, error)
	// Descartar clears the schedule so the cron stops picking the row up. The
	// device may still resubmit it.
	Descartar(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter VentaPendienteFilter) ([]model.VentaPendiente, int64, error)
}

type ventaPendienteRepo struct{ db *gorm.DB }

func NewVentaPendienteRepository(db *gorm.DB) VentaPendienteRepository {
	return &ventaPendienteRepo{db: db}
}

func (r *ventaPendienteRepo) FindByUUID(ctx context.Context, uuidCliente string) (*model.VentaPendiente, error) {
	var p model.VentaPendiente
	err := r.db.WithContext(ctx).Where("uuid = ?", uuidCliente).First(&p).Error
	return &p, err
}

func (r *ventaPendienteRepo) LockOrCreateTx(tx *gorm.DB, p *model.VentaPendiente) (*model.VentaPendiente, error) {
	nuevo := *p
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoNothing: true,
	}).Create(&nuevo).Error; err != nil {
		return nil, err
	}
	var locked model.VentaPendiente
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("uuid = ?", p.UUID).First(&locked).Error
	return &locked, err
}

func (r *ventaPendienteRepo) MarcarSincronizadaTx(tx *gorm.DB, id uuid.UUID, ventaID uuid.UUID, en time.Time) error {
	return tx.Model(&model.VentaPendiente{}).Where("id = ?", id).Updates(map[string]interface{}{
		"sincronizada":       true,
		"venta_id":           ventaID,
		"ultimo_intento_en":  en,
		"proximo_intento_en": nil,
		"ultimo_error":       nil,
	}).Error
}

func (r *ventaPendienteRepo) RegistrarFallo(ctx context.Context, f Fallo) (*model.VentaPendiente, error) {
	row := model.VentaPendiente{
		UUID:             f.UUID,
		DispositivoID:    f.DispositivoID,
		Payload:          f.Payload,
		Intentos:         1,
		UltimoIntentoEn:  &f.IntentoEn,
		ProximoIntentoEn: &f.ProximoEn,
		UltimoError:      &f.Error,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uuid"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "ventas_pendientes.sincronizada = false"},
		}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"intentos":           gorm.Expr("ventas_pendientes.intentos + 1"),
			"payload":            f.Payload,
			"ultimo_intento_en":  f.IntentoEn,
			"proximo_intento_en": f.ProximoEn,
			"ultimo_error":       f.Error,
			"updated_at":         f.IntentoEn,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUUID(ctx, f.UUID)
}

func (r *ventaPendienteRepo) ListElegibles(ctx context.Context, ahora time.Time, dispositivoID *uuid.UUID, maxIntentos, limite int) ([]model.VentaPendiente, error) {
	q := r.db.WithContext(ctx).
		Where("sincronizada = false AND proximo_intento_en IS NOT NULL AND proximo_intento_en <= ?", ahora)
	if maxIntentos > 0 {
		q = q.Where("intentos < ?", maxIntentos)
	}
	if dispositivoID != nil {
		q = q.Where("dispositivo_id = ?", *dispositivoID)
	}
	var rows []model.VentaPendiente
	err := q.Order("proximo_intento_en ASC").Limit(limite).Find(&rows).Error
	return rows, err
}

func (r *ventaPendienteRepo) ListAgotadas(ctx context.Context, maxIntentos, limite int) ([]model.VentaPendiente, error) {
	var rows []model.VentaPendiente
	err := r.db.WithContext(ctx).
		Where("sincronizada = false AND proximo_intento_en IS NOT NULL AND intentos >= ?", maxIntentos).
		Order("ultimo_intento_en ASC").Limit(limite).Find(&rows).Error
	return rows, err
}

func (r *ventaPendienteRepo) Descartar(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.VentaPendiente{}).
		Where("id = ? AND sincronizada = false", id).
		Update("proximo_intento_en", nil).Error
}

func (r *ventaPendienteRepo) List(ctx context.Context, filter VentaPendienteFilter) ([]model.VentaPendiente, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.VentaPendiente{})
	if filter.DispositivoID != nil {
		q = q.Where("dispositivo_id = ?", *filter.DispositivoID)
	}
	if filter.Sincronizada != nil {
		q = q.Where("sincronizada = ?", *filter.Sincronizada)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var rows []model.VentaPendiente
	err := q.Order("updated_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&rows).Error
	return rows, total, err
}
