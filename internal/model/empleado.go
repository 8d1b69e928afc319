package model

import (
	"time"

	"github.com/google/uuid"
)

// Empleado stores staff members with role-based access.
// Rol: "cajero" | "barra" | "supervisor" | "administrador"
// Payroll and HR data live in other systems; this row only carries what
// authentication and sale attribution need.
type Empleado struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username string    `gorm:"uniqueIndex;not null"`
	Nombre   string    `gorm:"not null"`
	Email    *string   `gorm:"uniqueIndex"`
	// DNI is the national identity number, accepted by the quick start login
	DNI          *string `gorm:"column:dni;uniqueIndex"`
	PasswordHash string  `gorm:"not null"`
	Rol          string  `gorm:"type:varchar(20);not null"`
	Activo       bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides GORM's default pluralization (empleados is already plural).
func (Empleado) TableName() string { return "empleados" }
