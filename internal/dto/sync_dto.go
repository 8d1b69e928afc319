package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Resultados de sincronizacion por venta
const (
	ResultadoSuccess   = "SUCCESS"
	ResultadoDuplicate = "DUPLICATE"
	ResultadoError     = "ERROR"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaOffline struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
	// PrecioUnitario is what the terminal showed; the server price wins.
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
}

// VentaOffline is one sale recorded by a terminal while disconnected. It is
// stored verbatim as the pending-sale payload.
type VentaOffline struct {
	UUIDCliente   string             `json:"uuid_cliente"   validate:"required,min=8,max=64"`
	SesionCajaID  *string            `json:"sesion_caja_id" validate:"omitempty,uuid"`
	EmpleadoID    *string            `json:"empleado_id"    validate:"omitempty,uuid"`
	MetodoPago    string             `json:"metodo_pago"    validate:"required,oneof=efectivo tarjeta mixto"`
	MontoEfectivo decimal.Decimal    `json:"monto_efectivo"`
	MontoTarjeta  decimal.Decimal    `json:"monto_tarjeta"`
	Total         decimal.Decimal    `json:"total"`
	FechaVenta    time.Time          `json:"fecha_venta"    validate:"required"`
	Items         []ItemVentaOffline `json:"items"          validate:"required,min=1,dive"`
}

type SyncRequest struct {
	Ventas []VentaOffline `json:"ventas" validate:"required,min=1"`
}

type ReintentarRequest struct {
	DispositivoID *string `json:"dispositivo_id" validate:"omitempty,uuid"`
	Limite        int     `json:"limite"         validate:"omitempty,min=1,max=500"`
}

type VentaPendienteFilter struct {
	DispositivoID string `form:"dispositivo_id"`
	Estado        string `form:"estado"` // pendiente | sincronizada | "" = todas
	Page          int    `form:"page,default=1"   validate:"min=1"`
	Limit         int    `form:"limit,default=50" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ResultadoSync struct {
	UUIDCliente  string  `json:"uuid_cliente"`
	Resultado    string  `json:"resultado"` // SUCCESS | DUPLICATE | ERROR
	VentaID      *string `json:"venta_id,omitempty"`
	NumeroTicket *string `json:"numero_ticket,omitempty"`
	Error        *string `json:"error,omitempty"`
}

type SyncResponse struct {
	Resultados []ResultadoSync `json:"resultados"`
}

type VentaPendienteResponse struct {
	ID               string  `json:"id"`
	UUIDCliente      string  `json:"uuid_cliente"`
	DispositivoID    string  `json:"dispositivo_id"`
	Sincronizada     bool    `json:"sincronizada"`
	Intentos         int     `json:"intentos"`
	UltimoIntentoEn  *string `json:"ultimo_intento_en"`
	ProximoIntentoEn *string `json:"proximo_intento_en"`
	UltimoError      *string `json:"ultimo_error"`
	VentaID          *string `json:"venta_id"`
	CreatedAt        string  `json:"created_at"`
}

type VentaPendienteListResponse struct {
	Data  []VentaPendienteResponse `json:"data"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

// ReintentoResponse reports either a queued job or the inline replay results.
type ReintentoResponse struct {
	Encolado   bool            `json:"encolado"`
	JobID      string          `json:"job_id,omitempty"`
	Procesadas int             `json:"procesadas"`
	Resultados []ResultadoSync `json:"resultados,omitempty"`
}

type DLQEntryResponse struct {
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload" swaggertype:"object"`
	Reason   string          `json:"reason"`
	FailedAt string          `json:"failed_at"`
	Attempts int             `json:"attempts"`
}

type DLQResponse struct {
	Data  []DLQEntryResponse `json:"data"`
	Total int64              `json:"total"`
}
