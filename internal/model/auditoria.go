package model

import (
	"time"

	"github.com/google/uuid"
)

// Tipos de evento de auditoria
const (
	EventoLogin        = "LOGIN"
	EventoLoginFallido = "LOGIN_FAILED"
	EventoSync         = "SYNC"
	EventoError        = "ERROR"
	EventoLogout       = "LOGOUT"
)

// EventoAuditoria is an append-only record of device and employee activity.
type EventoAuditoria struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Tipo          string     `gorm:"type:varchar(20);not null;index"`
	DispositivoID *uuid.UUID `gorm:"type:uuid;index"`
	EmpleadoID    *uuid.UUID `gorm:"type:uuid;index"`
	Detalle       string     `gorm:"not null"`
	// Referencia holds a ticket number or client UUID when relevant
	Referencia *string
	CreatedAt  time.Time
}

// TableName overrides GORM's default pluralization.
func (EventoAuditoria) TableName() string { return "eventos_auditoria" }
