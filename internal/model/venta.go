package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metodos de pago
const (
	MetodoEfectivo = "efectivo"
	MetodoTarjeta  = "tarjeta"
	MetodoMixto    = "mixto"
)

// Venta is a completed sale attached to a cash session.
// FechaVenta keeps the moment the sale happened on the device, which for
// offline sales is earlier than CreatedAt.
type Venta struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroTicket  string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	SesionCajaID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	EmpleadoID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	DispositivoID *uuid.UUID `gorm:"type:uuid;index"`
	// UUIDCliente is the device idempotency key; unique as a backstop to
	// ventas_pendientes.uuid
	UUIDCliente   *string         `gorm:"column:uuid_cliente;type:varchar(64);uniqueIndex"`
	MetodoPago    string          `gorm:"type:varchar(20);not null"`
	MontoEfectivo decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontoTarjeta  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado        string          `gorm:"type:varchar(20);not null;default:'completada'"`
	FechaVenta    time.Time       `gorm:"not null;index"`
	CreatedAt     time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID;constraint:OnDelete:CASCADE"`
}

// VentaItem is a sale line. PrecioUnitario is the server-side price at the
// time the sale was ingested.
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}
