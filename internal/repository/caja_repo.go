package repository

import (
	"context"

	"clubpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CajaRepository interface {
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionAbiertaPorNombre(ctx context.Context, nombreCaja string) (*model.SesionCaja, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// FindSesionByIDForUpdateTx locks the session row until the tx ends. Sale
	// attachment and closing both go through it, so a sale can never land on a
	// session that is being closed.
	FindSesionByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error)
	// ListSesionesAbiertasTx returns open sessions; when dispositivoID is set
	// only sessions owned by that device.
	ListSesionesAbiertasTx(tx *gorm.DB, dispositivoID *uuid.UUID) ([]model.SesionCaja, error)
	ListSesionesAbiertas(ctx context.Context) ([]model.SesionCaja, error)
	UpdateSesionTx(tx *gorm.DB, s *model.SesionCaja) error
	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error
	SumVentasTx(tx *gorm.DB, sesionCajaID uuid.UUID) (decimal.Decimal, error)
	SumMovimientosByMetodo(ctx context.Context, sesionCajaID uuid.UUID) (map[string]decimal.Decimal, error)
	ListSesiones(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error)
	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	// uniq_sesion_abierta_por_caja rejects a second open session for the same register
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *cajaRepo) FindSesionAbiertaPorNombre(ctx context.Context, nombreCaja string) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Where("nombre_caja = ? AND estado = ?", nombreCaja, model.EstadoCajaAbierta).First(&s).Error
	return &s, err
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Preload("Movimientos").First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) FindSesionByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) ListSesionesAbiertasTx(tx *gorm.DB, dispositivoID *uuid.UUID) ([]model.SesionCaja, error) {
	q := tx.Where("estado = ?", model.EstadoCajaAbierta)
	if dispositivoID != nil {
		q = q.Where("dispositivo_id = ?", *dispositivoID)
	}
	var sesiones []model.SesionCaja
	err := q.Order("opened_at ASC").Find(&sesiones).Error
	return sesiones, err
}

func (r *cajaRepo) ListSesionesAbiertas(ctx context.Context) ([]model.SesionCaja, error) {
	return r.ListSesionesAbiertasTx(r.db.WithContext(ctx), nil)
}

func (r *cajaRepo) UpdateSesionTx(tx *gorm.DB, s *model.SesionCaja) error {
	return tx.Omit(clause.Associations).Save(s).Error
}

func (r *cajaRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.Create(m).Error
}

func (r *cajaRepo) SumVentasTx(tx *gorm.DB, sesionCajaID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.Model(&model.Venta{}).
		Select("COALESCE(SUM(total), 0)").
		Where("sesion_caja_id = ? AND estado = 'completada'", sesionCajaID).
		Scan(&total).Error
	return total, err
}

func (r *cajaRepo) SumMovimientosByMetodo(ctx context.Context, sesionCajaID uuid.UUID) (map[string]decimal.Decimal, error) {
	var rows []struct {
		MetodoPago string
		Total      decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).
		Select("metodo_pago, COALESCE(SUM(monto), 0) AS total").
		Where("sesion_caja_id = ?", sesionCajaID).
		Group("metodo_pago").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.MetodoPago] = row.Total
	}
	return sums, nil
}

func (r *cajaRepo) ListSesiones(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	var sesiones []model.SesionCaja
	var total int64
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{}).Where("estado = ?", model.EstadoCajaCerrada)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("closed_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&sesiones).Error
	return sesiones, total, err
}
