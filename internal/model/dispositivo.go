package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tipos de dispositivo
const (
	TipoDispositivoCaja  = "caja"  // fixed register
	TipoDispositivoBarra = "barra" // bar terminal
	TipoDispositivoMovil = "movil" // handheld / waiter tablet
)

// Dispositivo is a physical or virtual POS terminal.
// Pairing fields are single-use: they are written on token generation and
// cleared when a terminal redeems them.
type Dispositivo struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre string    `gorm:"not null"`
	Tipo   string    `gorm:"type:varchar(20);not null"`

	// EmpleadoAsignadoID is the employee bound to the device. When
	// AsignacionPermanente is false the binding is a quick start session.
	EmpleadoAsignadoID   *uuid.UUID `gorm:"type:uuid;index"`
	AsignacionPermanente bool       `gorm:"not null;default:false"`
	ModoTabletCompartida bool       `gorm:"not null;default:false"`

	PINHash *string `gorm:"column:pin_hash"`

	PairingToken    *string    `gorm:"type:varchar(64)"`
	PairingCodigo   *string    `gorm:"type:varchar(6)"`
	PairingExpiraEn *time.Time

	// Config snapshot handed to the terminal on pairing
	Categorias      datatypes.JSON `gorm:"type:jsonb"`
	ConfigImpresora datatypes.JSON `gorm:"type:jsonb"`
	Permisos        datatypes.JSON `gorm:"type:jsonb"`

	UltimoAcceso         *time.Time
	UltimaSincronizacion *time.Time
	Activo               bool `gorm:"not null;default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	EmpleadoAsignado *Empleado `gorm:"foreignKey:EmpleadoAsignadoID"`
}

// Disponible reports whether quick start may bind an employee to the device.
func (d *Dispositivo) Disponible() bool {
	return d.Activo && !d.AsignacionPermanente && d.EmpleadoAsignadoID == nil
}
