package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// VentaPendiente is the server-side record of a sale a device recorded offline.
// UUID is generated by the device and is the idempotency key: once Sincronizada
// is true the row is never processed into a second Venta.
type VentaPendiente struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UUID          string         `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	DispositivoID uuid.UUID      `gorm:"type:uuid;index;not null"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	Sincronizada  bool           `gorm:"not null;default:false"`

	// Retry ledger
	Intentos         int `gorm:"not null;default:0"`
	UltimoIntentoEn  *time.Time
	ProximoIntentoEn *time.Time
	UltimoError      *string

	// VentaID is a lookup link to the sale produced, not ownership
	VentaID   *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (VentaPendiente) TableName() string { return "ventas_pendientes" }
