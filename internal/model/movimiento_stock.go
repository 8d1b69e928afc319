package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MovimientoVenta  = "venta"
	MovimientoAjuste = "ajuste_manual"
)

// MovimientoStock is the stock ledger: one row per change of stock_actual,
// written in the same transaction as the change.
type MovimientoStock struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID    uuid.UUID `gorm:"type:uuid;not null;index:idx_movimientos_stock_producto,priority:1"`
	Tipo          string    `gorm:"type:varchar(20);not null"`
	Cantidad      int       `gorm:"not null"` // signed, sales are negative
	StockAnterior int       `gorm:"not null"`
	StockNuevo    int       `gorm:"not null"`
	Motivo        string
	VentaID       *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt     time.Time  `gorm:"index:idx_movimientos_stock_producto,priority:2"`
}

func (MovimientoStock) TableName() string { return "movimientos_stock" }
