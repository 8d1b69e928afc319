package dto

import "encoding/json"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearDispositivoRequest struct {
	Nombre               string          `json:"nombre"                 validate:"required,min=2,max=80"`
	Tipo                 string          `json:"tipo"                   validate:"required,oneof=caja barra movil"`
	ModoTabletCompartida bool            `json:"modo_tablet_compartida"`
	Categorias           json.RawMessage `json:"categorias"             swaggertype:"object"`
	ConfigImpresora      json.RawMessage `json:"config_impresora"       swaggertype:"object"`
	Permisos             json.RawMessage `json:"permisos"               swaggertype:"object"`
}

type ActualizarDispositivoRequest struct {
	Nombre               *string         `json:"nombre"                 validate:"omitempty,min=2,max=80"`
	Tipo                 *string         `json:"tipo"                   validate:"omitempty,oneof=caja barra movil"`
	ModoTabletCompartida *bool           `json:"modo_tablet_compartida"`
	Categorias           json.RawMessage `json:"categorias"             swaggertype:"object"`
	ConfigImpresora      json.RawMessage `json:"config_impresora"       swaggertype:"object"`
	Permisos             json.RawMessage `json:"permisos"               swaggertype:"object"`
}

type EstablecerPINRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

type AsignarEmpleadoRequest struct {
	EmpleadoID string `json:"empleado_id" validate:"required,uuid"`
	Permanente bool   `json:"permanente"`
}

// CanjearPairingRequest carries either the long token (direct link) or the
// 6-digit code typed on the terminal.
type CanjearPairingRequest struct {
	Token  string `json:"token"  validate:"required_without=Codigo,omitempty,min=16,max=64"`
	Codigo string `json:"codigo" validate:"required_without=Token,omitempty,len=6,numeric"`
}

type LoginPINRequest struct {
	DispositivoID string `json:"dispositivo_id" validate:"required,uuid"`
	PIN           string `json:"pin"            validate:"required,min=1,max=8"`
}

type QuickStartRequest struct {
	// Identificador is the employee email or DNI.
	Identificador string `json:"identificador" validate:"required,min=3,max=150"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DispositivoResponse struct {
	ID                   string  `json:"id"`
	Nombre               string  `json:"nombre"`
	Tipo                 string  `json:"tipo"`
	EmpleadoAsignadoID   *string `json:"empleado_asignado_id"`
	EmpleadoAsignado     *string `json:"empleado_asignado"`
	AsignacionPermanente bool    `json:"asignacion_permanente"`
	ModoTabletCompartida bool    `json:"modo_tablet_compartida"`
	TienePIN             bool    `json:"tiene_pin"`
	PairingPendiente     bool    `json:"pairing_pendiente"`
	UltimoAcceso         *string `json:"ultimo_acceso"`
	UltimaSincronizacion *string `json:"ultima_sincronizacion"`
	Activo               bool    `json:"activo"`
}

type PairingResponse struct {
	Token         string `json:"token"`
	Codigo        string `json:"codigo"`
	ExpiraEn      string `json:"expira_en"`
	EnlaceDirecto string `json:"enlace_directo"`
}

// ConfigDispositivo is the snapshot a terminal needs to operate offline.
type ConfigDispositivo struct {
	Categorias      json.RawMessage `json:"categorias"       swaggertype:"object"`
	ConfigImpresora json.RawMessage `json:"config_impresora" swaggertype:"object"`
	Permisos        json.RawMessage `json:"permisos"         swaggertype:"object"`
}

type DeviceLoginResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresIn   int                 `json:"expires_in"` // seconds
	Dispositivo DispositivoResponse `json:"dispositivo"`
	Config      ConfigDispositivo   `json:"config"`
}
