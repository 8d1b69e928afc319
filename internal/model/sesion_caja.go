package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de sesion de caja
const (
	EstadoCajaAbierta = "abierta"
	EstadoCajaCerrada = "cerrada"
)

// SesionCaja represents the lifecycle of a cash register session.
// abierta -> cerrada is one-way; sales attach only while abierta.
type SesionCaja struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NombreCaja         string          `gorm:"not null;index"`
	DispositivoID      *uuid.UUID      `gorm:"type:uuid;index"`
	EmpleadoAperturaID uuid.UUID       `gorm:"type:uuid;not null"`
	EmpleadoCierreID   *uuid.UUID      `gorm:"type:uuid"`
	MontoInicial       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// MontoEsperado is computed on close: MontoInicial + SUM(ventas.total)
	MontoEsperado  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MontoDeclarado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Desvio         *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DesvioPct      *decimal.Decimal `gorm:"type:decimal(7,2)"`
	Estado         string           `gorm:"type:varchar(20);not null;default:'abierta'"`
	// ClasificacionDesvio: "normal" | "advertencia" | "critico"
	ClasificacionDesvio *string `gorm:"type:varchar(20)"`
	Observaciones       *string
	OpenedAt            time.Time
	ClosedAt            *time.Time

	Ventas      []Venta          `gorm:"foreignKey:SesionCajaID"`
	Movimientos []MovimientoCaja `gorm:"foreignKey:SesionCajaID"`
}

// TableName overrides GORM's default pluralization (sesion_cajas → sesiones_caja).
func (SesionCaja) TableName() string { return "sesiones_caja" }

// Abierta reports whether sales may still attach to the session.
func (s *SesionCaja) Abierta() bool { return s.Estado == EstadoCajaAbierta }

// MovimientoCaja is an immutable event in the cash register ledger, one per
// payment method of each sale.
// Tipo: "venta"
type MovimientoCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Tipo         string          `gorm:"type:varchar(20);not null"`
	MetodoPago   string          `gorm:"type:varchar(20);not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descripcion  string          `gorm:"not null"`
	// ReferenciaID links to the originating Venta
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
}

// TableName overrides GORM's default pluralization.
func (MovimientoCaja) TableName() string { return "movimientos_caja" }
