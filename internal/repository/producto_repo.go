package repository

import (
	"context"
	"errors"

	"clubpos/internal/dto"
	"clubpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStockNoDisponible is returned by the conditional decrement when the
// product is missing, inactive or has fewer units than requested.
var ErrStockNoDisponible = errors.New("stock no disponible")

// ProductoRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory stubs.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	List(ctx context.Context, filter dto.ProductoFilter) ([]model.Producto, int64, error)

	// DescontarStockTx decrements stock_actual only if enough units remain.
	// The UPDATE takes the row lock, so concurrent sales of the same product
	// serialize on it and the second one re-evaluates the guard.
	DescontarStockTx(tx *gorm.DB, id uuid.UUID, cantidad int) (anterior, nuevo int, err error)

	// AjustarStockTx applies a signed delta, refusing to go below zero.
	AjustarStockTx(tx *gorm.DB, id uuid.UUID, delta int) (anterior, nuevo int, err error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) DB() *gorm.DB { return r.db }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productoRepo) List(ctx context.Context, filter dto.ProductoFilter) ([]model.Producto, int64, error) {
	var productos []model.Producto
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Producto{})

	// Activo filter: "false" = inactivos, "all" = todos, anything else = activos (default)
	switch filter.Activo {
	case "false":
		q = q.Where("activo = false")
	case "all":
		// no filter
	default:
		q = q.Where("activo = true")
	}
	if filter.Nombre != "" {
		q = q.Where("nombre ILIKE ?", "%"+filter.Nombre+"%")
	}
	if filter.Categoria != "" {
		q = q.Where("categoria = ?", filter.Categoria)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("nombre ASC").Limit(filter.Limit).Offset(offset).Find(&productos).Error
	return productos, total, err
}

func (r *productoRepo) DescontarStockTx(tx *gorm.DB, id uuid.UUID, cantidad int) (int, int, error) {
	var rows []model.Producto
	res := tx.Model(&rows).Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock_actual"}}}).
		Where("id = ? AND activo = true AND stock_actual >= ?", id, cantidad).
		Update("stock_actual", gorm.Expr("stock_actual - ?", cantidad))
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return 0, 0, ErrStockNoDisponible
	}
	nuevo := rows[0].StockActual
	return nuevo + cantidad, nuevo, nil
}

func (r *productoRepo) AjustarStockTx(tx *gorm.DB, id uuid.UUID, delta int) (int, int, error) {
	var rows []model.Producto
	res := tx.Model(&rows).Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock_actual"}}}).
		Where("id = ? AND stock_actual + ? >= 0", id, delta).
		Update("stock_actual", gorm.Expr("stock_actual + ?", delta))
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return 0, 0, ErrStockNoDisponible
	}
	nuevo := rows[0].StockActual
	return nuevo - delta, nuevo, nil
}
