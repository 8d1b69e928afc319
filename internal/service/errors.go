package service

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Sentinel errors. Handlers map them to HTTP statuses; callers compare with errors.Is.
var (
	// Device authentication
	ErrPairingInvalidoOExpirado = errors.New("codigo de vinculacion invalido o expirado")
	ErrDispositivoNoEncontrado  = errors.New("dispositivo no encontrado")
	ErrDispositivoDesactivado   = errors.New("dispositivo desactivado")
	ErrPINInvalido              = errors.New("PIN invalido")
	ErrEmpleadoNoEncontrado     = errors.New("empleado no encontrado o inactivo")
	ErrSinDispositivoDisponible = errors.New("no hay dispositivos disponibles")
	ErrEmpleadoYaAsignado       = errors.New("el empleado ya tiene un dispositivo asignado de forma permanente")
	ErrAsignacionPermanente     = errors.New("el dispositivo tiene una asignacion permanente")
	ErrCredencialesInvalidas    = errors.New("credenciales invalidas")

	// Offline sale ingestion
	ErrSinSesionAbierta     = errors.New("no hay sesion de caja abierta")
	ErrEmpleadoNoResuelto   = errors.New("no se pudo determinar el empleado de la venta")
	ErrProductoNoEncontrado = errors.New("producto no encontrado o inactivo")
	ErrStockInsuficiente    = errors.New("stock insuficiente")
	ErrPagoInsuficiente     = errors.New("el monto total de pagos es insuficiente")
	ErrPayloadInvalido      = errors.New("venta offline invalida")
	ErrLoteExcedido         = errors.New("el lote supera la cantidad maxima de ventas")

	// Cash sessions
	ErrCajaYaAbierta           = errors.New("ya existe una caja abierta con ese nombre")
	ErrSesionNoEncontrada      = errors.New("sesion de caja no encontrada")
	ErrSesionCerrada           = errors.New("la sesion ya esta cerrada")
	ErrObservacionesRequeridas = errors.New("desvio critico: se requieren observaciones del supervisor")

	// Stock
	ErrAjusteDejaStockNegativo = errors.New("el ajuste dejaria el stock en negativo")
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
