package repository

import (
	"context"
	"strings"

	"clubpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VentaRepository interface {
	CreateTx(tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	FindByUUIDCliente(ctx context.Context, uuidCliente string) (*model.Venta, error)
	// LockTicketsTx takes a transaction-scoped advisory lock on a ticket
	// prefix. Registers whose names reduce to the same prefix share it.
	LockTicketsTx(tx *gorm.DB, prefijo string) error
	// CountTicketsTx counts tickets sharing a prefix; callers hold LockTicketsTx.
	CountTicketsTx(tx *gorm.DB, prefijo string) (int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	err := tx.Create(v).Error
	if strings.Contains(violatedConstraint(err), "numero_ticket") {
		return ErrTicketDuplicado
	}
	return translate(err)
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items.Producto").First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) FindByUUIDCliente(ctx context.Context, uuidCliente string) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Where("uuid_cliente = ?", uuidCliente).First(&v).Error
	return &v, err
}

func (r *ventaRepo) LockTicketsTx(tx *gorm.DB, prefijo string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefijo).Error
}

func (r *ventaRepo) CountTicketsTx(tx *gorm.DB, prefijo string) (int64, error) {
	var n int64
	err := tx.Model(&model.Venta{}).Where("numero_ticket LIKE ?", prefijo+"%").Count(&n).Error
	return n, err
}
