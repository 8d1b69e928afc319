package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	NombreCaja    string          `json:"nombre_caja"    validate:"required,min=1,max=40"`
	DispositivoID *string         `json:"dispositivo_id" validate:"omitempty,uuid"`
	MontoInicial  decimal.Decimal `json:"monto_inicial"`
}

type CerrarCajaRequest struct {
	SesionCajaID   string          `json:"sesion_caja_id"  validate:"required,uuid"`
	MontoDeclarado decimal.Decimal `json:"monto_declarado"`
	Observaciones  *string         `json:"observaciones"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type MontosPorMetodo struct {
	Efectivo decimal.Decimal `json:"efectivo"`
	Tarjeta  decimal.Decimal `json:"tarjeta"`
	Total    decimal.Decimal `json:"total"`
}

type SesionCajaResponse struct {
	ID            string          `json:"id"`
	NombreCaja    string          `json:"nombre_caja"`
	DispositivoID *string         `json:"dispositivo_id"`
	MontoInicial  decimal.Decimal `json:"monto_inicial"`
	Estado        string          `json:"estado"`
	OpenedAt      string          `json:"opened_at"`
	ClosedAt      *string         `json:"closed_at"`
}

type CierreCajaResponse struct {
	SesionCajaID   string          `json:"sesion_caja_id"`
	MontoEsperado  decimal.Decimal `json:"monto_esperado"`
	MontoDeclarado decimal.Decimal `json:"monto_declarado"`
	Desvio         DesvioResponse  `json:"desvio"`
	Estado         string          `json:"estado"`
}

type ReporteCajaResponse struct {
	SesionCajaID   string           `json:"sesion_caja_id"`
	NombreCaja     string           `json:"nombre_caja"`
	MontoInicial   decimal.Decimal  `json:"monto_inicial"`
	Cobrado        MontosPorMetodo  `json:"cobrado"`
	MontoEsperado  decimal.Decimal  `json:"monto_esperado"`
	MontoDeclarado *decimal.Decimal `json:"monto_declarado"`
	Desvio         *DesvioResponse  `json:"desvio"`
	Estado         string           `json:"estado"`
	Observaciones  *string          `json:"observaciones"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at"`
}

type HistorialCajaResponse struct {
	Data  []ReporteCajaResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
