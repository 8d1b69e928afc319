package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"clubpos/internal/config"
	"clubpos/internal/dto"
	"clubpos/internal/model"
	"clubpos/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var validarVenta = validator.New()

func init() {
	validarVenta.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// SyncService ingests sales that devices recorded while offline.
//
// Each sale is processed in its own transaction and reports its own result,
// so one bad sale never blocks the rest of the batch. The client UUID is the
// idempotency key: once a pending row is synchronized the same UUID always
// answers DUPLICATE and never produces a second Venta.
type SyncService interface {
	SyncBatch(ctx context.Context, dispositivoID uuid.UUID, req dto.SyncRequest) (*dto.SyncResponse, error)
	// ReintentarPendientes replays stored payloads that are due for another
	// attempt. dispositivoID nil means every device.
	ReintentarPendientes(ctx context.Context, dispositivoID *uuid.UUID, limite int) ([]dto.ResultadoSync, error)
	// DescartarAgotadas unschedules rows that used up their attempts and
	// returns them so the caller can park them for inspection.
	DescartarAgotadas(ctx context.Context, limite int) ([]model.VentaPendiente, error)
	ListarPendientes(ctx context.Context, filter dto.VentaPendienteFilter) (*dto.VentaPendienteListResponse, error)
}

type syncService struct {
	ventaRepo     repository.VentaRepository
	pendienteRepo repository.VentaPendienteRepository
	productoRepo  repository.ProductoRepository
	empleadoRepo  repository.EmpleadoRepository
	dispRepo      repository.DispositivoRepository
	caja          CajaService
	inventario    InventarioService
	auditoria     AuditoriaService
	cfg           *config.Config
}

func NewSyncService(
	ventaRepo repository.VentaRepository,
	pendienteRepo repository.VentaPendienteRepository,
	productoRepo repository.ProductoRepository,
	empleadoRepo repository.EmpleadoRepository,
	dispRepo repository.DispositivoRepository,
	caja CajaService,
	inventario InventarioService,
	auditoria AuditoriaService,
	cfg *config.Config,
) SyncService {
	return &syncService{
		ventaRepo:     ventaRepo,
		pendienteRepo: pendienteRepo,
		productoRepo:  productoRepo,
		empleadoRepo:  empleadoRepo,
		dispRepo:      dispRepo,
		caja:          caja,
		inventario:    inventario,
		auditoria:     auditoria,
		cfg:           cfg,
	}
}

// ── SyncBatch ─────────────────────────────────────────────────────────────────

func (s *syncService) SyncBatch(ctx context.Context, dispositivoID uuid.UUID, req dto.SyncRequest) (*dto.SyncResponse, error) {
	if s.cfg.SyncMaxBatch > 0 && len(req.Ventas) > s.cfg.SyncMaxBatch {
		return nil, fmt.Errorf("%w (%d > %d)", ErrLoteExcedido, len(req.Ventas), s.cfg.SyncMaxBatch)
	}
	d, err := s.dispositivoActivo(ctx, dispositivoID)
	if err != nil {
		return nil, err
	}

	resultados := make([]dto.ResultadoSync, 0, len(req.Ventas))
	for _, v := range req.Ventas {
		resultados = append(resultados, s.procesar(ctx, d, v))
	}

	if err := s.dispRepo.MarcarSincronizacion(ctx, d.ID, time.Now()); err != nil {
		log.Warn().Err(err).Str("dispositivo_id", d.ID.String()).Msg("sync: no se pudo actualizar ultima_sincronizacion")
	}
	return &dto.SyncResponse{Resultados: resultados}, nil
}

func (s *syncService) dispositivoActivo(ctx context.Context, id uuid.UUID) (*model.Dispositivo, error) {
	d, err := s.dispRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDispositivoNoEncontrado
		}
		return nil, err
	}
	if !d.Activo {
		return nil, ErrDispositivoDesactivado
	}
	return d, nil
}

// procesar runs the full ingestion of one sale and never returns an error:
// every outcome is folded into the result.
func (s *syncService) procesar(ctx context.Context, d *model.Dispositivo, v dto.VentaOffline) dto.ResultadoSync {
	res := dto.ResultadoSync{UUIDCliente: v.UUIDCliente}
	logger := log.With().Str("dispositivo_id", d.ID.String()).Str("uuid_cliente", v.UUIDCliente).Logger()

	if strings.TrimSpace(v.UUIDCliente) == "" {
		// nothing to key the retry ledger on
		msg := ErrPayloadInvalido.Error() + ": uuid_cliente requerido"
		res.Resultado, res.Error = dto.ResultadoError, &msg
		ventasSincronizadas.WithLabelValues(dto.ResultadoError).Inc()
		return res
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return s.fallo(ctx, d, v, nil, err)
	}

	// Fast path: already synchronized
	if p, err := s.pendienteRepo.FindByUUID(ctx, v.UUIDCliente); err == nil && p.Sincronizada {
		return s.duplicado(ctx, v.UUIDCliente, p.VentaID)
	}

	if err := validarVenta.Struct(v); err != nil {
		return s.fallo(ctx, d, v, payload, fmt.Errorf("%w: %s", ErrPayloadInvalido, resumirValidacion(err)))
	}

	var (
		venta        model.Venta
		yaSincroniza *model.VentaPendiente
	)
	txErr := runTx(ctx, s.ventaRepo.DB(), func(tx *gorm.DB) error {
		pend, err := s.pendienteRepo.LockOrCreateTx(tx, &model.VentaPendiente{
			UUID:          v.UUIDCliente,
			DispositivoID: d.ID,
			Payload:       datatypes.JSON(payload),
		})
		if err != nil {
			return err
		}
		// a concurrent submission of this UUID committed while we waited on the lock
		if pend.Sincronizada {
			yaSincroniza = pend
			return nil
		}

		venta, err = s.ingresar(ctx, tx, d, v, &logger)
		if err != nil {
			return err
		}

		if err := s.pendienteRepo.MarcarSincronizadaTx(tx, pend.ID, venta.ID, time.Now()); err != nil {
			return err
		}
		return s.auditoria.RegistrarTx(tx, Evento{
			Tipo:          model.EventoSync,
			DispositivoID: &d.ID,
			EmpleadoID:    &venta.EmpleadoID,
			Detalle:       fmt.Sprintf("venta offline sincronizada (%s)", v.UUIDCliente),
			Referencia:    venta.NumeroTicket,
		})
	})

	if txErr != nil {
		if errors.Is(txErr, repository.ErrDuplicado) {
			// ventas.uuid_cliente backstop: the sale exists even though no pending row said so
			if existente, err := s.ventaRepo.FindByUUIDCliente(ctx, v.UUIDCliente); err == nil {
				return s.duplicado(ctx, v.UUIDCliente, &existente.ID)
			}
		}
		return s.fallo(ctx, d, v, payload, txErr)
	}
	if yaSincroniza != nil {
		return s.duplicado(ctx, v.UUIDCliente, yaSincroniza.VentaID)
	}

	ventaID := venta.ID.String()
	ticket := venta.NumeroTicket
	res.Resultado, res.VentaID, res.NumeroTicket = dto.ResultadoSuccess, &ventaID, &ticket
	ventasSincronizadas.WithLabelValues(dto.ResultadoSuccess).Inc()
	logger.Info().Str("resultado", dto.ResultadoSuccess).Str("numero_ticket", ticket).Msg("sync: venta registrada")
	return res
}

// ingresar performs steps that must commit together: session, employee,
// lines, payment, stock, sale and cash movements.
func (s *syncService) ingresar(ctx context.Context, tx *gorm.DB, d *model.Dispositivo, v dto.VentaOffline, logger *zerolog.Logger) (model.Venta, error) {
	var sesionID *uuid.UUID
	if v.SesionCajaID != nil && *v.SesionCajaID != "" {
		id, err := uuid.Parse(*v.SesionCajaID)
		if err != nil {
			return model.Venta{}, fmt.Errorf("%w: sesion_caja_id invalido", ErrPayloadInvalido)
		}
		sesionID = &id
	}
	sesion, err := s.caja.ResolverSesionTx(tx, sesionID, d.ID)
	if err != nil {
		return model.Venta{}, err
	}

	empleadoID, err := s.resolverEmpleado(ctx, d, v.EmpleadoID, logger)
	if err != nil {
		return model.Venta{}, err
	}

	ventaID := uuid.New()
	items := make([]model.VentaItem, 0, len(v.Items))
	lineas := make([]LineaStock, 0, len(v.Items))
	subtotal := decimal.Zero
	for _, it := range v.Items {
		pid, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return model.Venta{}, fmt.Errorf("%w: producto_id %q", ErrProductoNoEncontrado, it.ProductoID)
		}
		p, err := s.productoRepo.FindByID(ctx, pid)
		if err != nil || !p.Activo {
			return model.Venta{}, fmt.Errorf("%w: %s", ErrProductoNoEncontrado, pid)
		}
		// server price wins over what the terminal displayed
		lineSubtotal := p.PrecioVenta.Mul(decimal.NewFromInt(int64(it.Cantidad)))
		subtotal = subtotal.Add(lineSubtotal)
		items = append(items, model.VentaItem{
			VentaID:        ventaID,
			ProductoID:     pid,
			Cantidad:       it.Cantidad,
			PrecioUnitario: p.PrecioVenta,
			Subtotal:       lineSubtotal,
		})
		lineas = append(lineas, LineaStock{ProductoID: pid, Cantidad: it.Cantidad})
	}
	total := subtotal
	if !v.Total.IsZero() && !v.Total.Equal(total) {
		logger.Warn().Str("total_cliente", v.Total.String()).Str("total_servidor", total.String()).
			Msg("sync: total del dispositivo difiere del calculado, se usa el del servidor")
	}

	pago, err := normalizarPago(v.MetodoPago, v.MontoEfectivo, v.MontoTarjeta, total)
	if err != nil {
		return model.Venta{}, err
	}
	if pago.degradado {
		logger.Warn().Str("metodo_pago", v.MetodoPago).Str("total", total.String()).
			Msg("sync: pago mixto sin montos, se divide en partes iguales")
	}

	ticket, err := s.numeroTicket(tx, sesion, v.FechaVenta)
	if err != nil {
		return model.Venta{}, err
	}

	if err := s.inventario.DescontarStockTx(tx, lineas, ventaID, "Venta "+ticket); err != nil {
		return model.Venta{}, err
	}

	uuidCliente := v.UUIDCliente
	dispID := d.ID
	venta := model.Venta{
		ID:            ventaID,
		NumeroTicket:  ticket,
		SesionCajaID:  sesion.ID,
		EmpleadoID:    empleadoID,
		DispositivoID: &dispID,
		UUIDCliente:   &uuidCliente,
		MetodoPago:    v.MetodoPago,
		MontoEfectivo: pago.efectivo,
		MontoTarjeta:  pago.tarjeta,
		Subtotal:      subtotal,
		Total:         total,
		Estado:        "completada",
		FechaVenta:    v.FechaVenta,
		Items:         items,
	}
	if err := s.ventaRepo.CreateTx(tx, &venta); err != nil {
		return model.Venta{}, err
	}

	// one cash movement per method actually collected
	for _, m := range pago.movimientos(total) {
		ref := venta.ID
		if err := s.caja.RegistrarMovimientoVentaTx(tx, &model.MovimientoCaja{
			SesionCajaID: sesion.ID,
			Tipo:         "venta",
			MetodoPago:   m.metodo,
			Monto:        m.monto,
			Descripcion:  "Venta " + ticket,
			ReferenciaID: &ref,
		}); err != nil {
			return model.Venta{}, err
		}
	}
	return venta, nil
}

// resolverEmpleado prefers the employee in the payload and falls back to
// the one bound to the device.
func (s *syncService) resolverEmpleado(ctx context.Context, d *model.Dispositivo, payloadID *string, logger *zerolog.Logger) (uuid.UUID, error) {
	if payloadID != nil && *payloadID != "" {
		if id, err := uuid.Parse(*payloadID); err == nil {
			if emp, err := s.empleadoRepo.FindByID(ctx, id); err == nil && emp.Activo {
				return emp.ID, nil
			}
		}
		logger.Warn().Str("empleado_id", *payloadID).Msg("sync: empleado del payload no valido, se usa el del dispositivo")
	}
	if d.EmpleadoAsignadoID != nil {
		if emp, err := s.empleadoRepo.FindByID(ctx, *d.EmpleadoAsignadoID); err == nil && emp.Activo {
			return emp.ID, nil
		}
	}
	return uuid.Nil, ErrEmpleadoNoResuelto
}

// numeroTicket builds <CAJA>-<YYYYMMDD>-<NNNN> with the sale date in UTC.
// The session row lock is per register, but different register names can
// reduce to the same prefix, so the count runs under a lock on the prefix.
func (s *syncService) numeroTicket(tx *gorm.DB, sesion *model.SesionCaja, fecha time.Time) (string, error) {
	prefijo := fmt.Sprintf("%s-%s-", prefijoCaja(sesion.NombreCaja), fecha.UTC().Format("20060102"))
	if err := s.ventaRepo.LockTicketsTx(tx, prefijo); err != nil {
		return "", err
	}
	n, err := s.ventaRepo.CountTicketsTx(tx, prefijo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefijo, n+1), nil
}

func prefijoCaja(nombre string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(nombre) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "CAJA"
	}
	return b.String()
}

// ── Payment normalization ────────────────────────────────────────────────────

type pagoNormalizado struct {
	efectivo  decimal.Decimal
	tarjeta   decimal.Decimal
	degradado bool
}

type movimientoPago struct {
	metodo string
	monto  decimal.Decimal
}

// normalizarPago resolves the amounts per method. Explicit amounts are used
// as sent. When both are zero the method decides: efectivo and tarjeta take
// the whole total, mixto splits it in half with the cash side rounded to cents.
func normalizarPago(metodo string, efectivo, tarjeta, total decimal.Decimal) (pagoNormalizado, error) {
	if efectivo.IsNegative() || tarjeta.IsNegative() {
		return pagoNormalizado{}, fmt.Errorf("%w: montos negativos", ErrPayloadInvalido)
	}
	p := pagoNormalizado{efectivo: efectivo, tarjeta: tarjeta}
	if efectivo.IsZero() && tarjeta.IsZero() {
		switch metodo {
		case model.MetodoEfectivo:
			p.efectivo = total
		case model.MetodoTarjeta:
			p.tarjeta = total
		case model.MetodoMixto:
			p.efectivo = total.Div(decimal.NewFromInt(2)).Round(2)
			p.tarjeta = total.Sub(p.efectivo)
			p.degradado = !total.IsZero()
		default:
			return pagoNormalizado{}, fmt.Errorf("%w: metodo_pago %q", ErrPayloadInvalido, metodo)
		}
	}
	if p.efectivo.Add(p.tarjeta).LessThan(total) {
		return pagoNormalizado{}, ErrPagoInsuficiente
	}
	return p, nil
}

// movimientos returns the amount each method contributes to total. Card is
// applied first; change is always given in cash.
func (p pagoNormalizado) movimientos(total decimal.Decimal) []movimientoPago {
	tarjeta := decimal.Min(p.tarjeta, total)
	efectivo := total.Sub(tarjeta)
	var out []movimientoPago
	if efectivo.IsPositive() {
		out = append(out, movimientoPago{metodo: model.MetodoEfectivo, monto: efectivo})
	}
	if tarjeta.IsPositive() {
		out = append(out, movimientoPago{metodo: model.MetodoTarjeta, monto: tarjeta})
	}
	return out
}

// ── Outcomes ──────────────────────────────────────────────────────────────────

func (s *syncService) duplicado(ctx context.Context, uuidCliente string, ventaID *uuid.UUID) dto.ResultadoSync {
	res := dto.ResultadoSync{UUIDCliente: uuidCliente, Resultado: dto.ResultadoDuplicate}
	if ventaID != nil {
		id := ventaID.String()
		res.VentaID = &id
		if v, err := s.ventaRepo.FindByID(ctx, *ventaID); err == nil {
			ticket := v.NumeroTicket
			res.NumeroTicket = &ticket
		}
	}
	ventasSincronizadas.WithLabelValues(dto.ResultadoDuplicate).Inc()
	log.Info().Str("uuid_cliente", uuidCliente).Str("resultado", dto.ResultadoDuplicate).Msg("sync: venta ya sincronizada")
	return res
}

// fallo books the failure on the retry ledger after the transaction rolled
// back, so the bookkeeping survives.
func (s *syncService) fallo(ctx context.Context, d *model.Dispositivo, v dto.VentaOffline, payload []byte, causa error) dto.ResultadoSync {
	now := time.Now()
	delay := retryDelay(s.cfg.SyncRetryDelayMinutes)
	if payload == nil {
		payload = []byte("{}")
	}
	if _, err := s.pendienteRepo.RegistrarFallo(ctx, repository.Fallo{
		UUID:          v.UUIDCliente,
		DispositivoID: d.ID,
		Payload:       datatypes.JSON(payload),
		Error:         causa.Error(),
		IntentoEn:     now,
		ProximoEn:     now.Add(delay),
	}); err != nil {
		log.Error().Err(err).Str("uuid_cliente", v.UUIDCliente).Msg("sync: no se pudo registrar el fallo en ventas_pendientes")
	}

	s.auditoria.Registrar(ctx, Evento{
		Tipo:          model.EventoError,
		DispositivoID: &d.ID,
		Detalle:       "sync fallido: " + causa.Error(),
		Referencia:    v.UUIDCliente,
	})

	ventasSincronizadas.WithLabelValues(dto.ResultadoError).Inc()
	log.Warn().Err(causa).
		Str("dispositivo_id", d.ID.String()).
		Str("uuid_cliente", v.UUIDCliente).
		Str("resultado", dto.ResultadoError).
		Msg("sync: venta rechazada")

	msg := mensajeCliente(causa)
	return dto.ResultadoSync{UUIDCliente: v.UUIDCliente, Resultado: dto.ResultadoError, Error: &msg}
}

// retryDelay keeps the next attempt strictly after the current one.
func retryDelay(minutos int) time.Duration {
	if minutos < 1 {
		minutos = 1
	}
	return time.Duration(minutos) * time.Minute
}

var erroresDeNegocio = []error{
	ErrSinSesionAbierta, ErrEmpleadoNoResuelto, ErrProductoNoEncontrado,
	ErrStockInsuficiente, ErrPagoInsuficiente, ErrPayloadInvalido,
	ErrDispositivoDesactivado, ErrDispositivoNoEncontrado,
}

// mensajeCliente keeps internal errors out of the device response.
func mensajeCliente(err error) string {
	for _, e := range erroresDeNegocio {
		if errors.Is(err, e) {
			return err.Error()
		}
	}
	return "error interno al sincronizar la venta"
}

func resumirValidacion(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	campos := make([]string, 0, len(ve))
	for _, fe := range ve {
		campos = append(campos, fe.Namespace()+":"+fe.Tag())
	}
	return strings.Join(campos, ", ")
}

// ── Retry ledger ──────────────────────────────────────────────────────────────

func (s *syncService) ReintentarPendientes(ctx context.Context, dispositivoID *uuid.UUID, limite int) ([]dto.ResultadoSync, error) {
	if limite < 1 {
		limite = 100
	}
	filas, err := s.pendienteRepo.ListElegibles(ctx, time.Now(), dispositivoID, s.cfg.SyncRetryMaxAttempts, limite)
	if err != nil {
		return nil, err
	}

	dispositivos := make(map[uuid.UUID]*model.Dispositivo)
	resultados := make([]dto.ResultadoSync, 0, len(filas))
	for _, fila := range filas {
		var v dto.VentaOffline
		if err := json.Unmarshal(fila.Payload, &v); err != nil {
			v = dto.VentaOffline{}
		}
		// the stored key is authoritative
		v.UUIDCliente = fila.UUID

		d, ok := dispositivos[fila.DispositivoID]
		if !ok {
			d, err = s.dispositivoActivo(ctx, fila.DispositivoID)
			if err != nil {
				resultados = append(resultados, s.fallo(ctx, &model.Dispositivo{ID: fila.DispositivoID}, v, fila.Payload, err))
				continue
			}
			dispositivos[fila.DispositivoID] = d
		}
		resultados = append(resultados, s.procesar(ctx, d, v))
	}
	return resultados, nil
}

func (s *syncService) DescartarAgotadas(ctx context.Context, limite int) ([]model.VentaPendiente, error) {
	if s.cfg.SyncRetryMaxAttempts <= 0 {
		return nil, nil
	}
	filas, err := s.pendienteRepo.ListAgotadas(ctx, s.cfg.SyncRetryMaxAttempts, limite)
	if err != nil {
		return nil, err
	}
	for _, f := range filas {
		if err := s.pendienteRepo.Descartar(ctx, f.ID); err != nil {
			return nil, err
		}
	}
	return filas, nil
}

func (s *syncService) ListarPendientes(ctx context.Context, filter dto.VentaPendienteFilter) (*dto.VentaPendienteListResponse, error) {
	f := repository.VentaPendienteFilter{Page: filter.Page, Limit: filter.Limit}
	if filter.DispositivoID != "" {
		id, err := uuid.Parse(filter.DispositivoID)
		if err != nil {
			return nil, fmt.Errorf("dispositivo_id invalido: %w", err)
		}
		f.DispositivoID = &id
	}
	switch filter.Estado {
	case "pendiente":
		no := false
		f.Sincronizada = &no
	case "sincronizada":
		si := true
		f.Sincronizada = &si
	}

	filas, total, err := s.pendienteRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.VentaPendienteResponse, 0, len(filas))
	for i := range filas {
		data = append(data, pendienteToResponse(&filas[i]))
	}
	return &dto.VentaPendienteListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func pendienteToResponse(p *model.VentaPendiente) dto.VentaPendienteResponse {
	resp := dto.VentaPendienteResponse{
		ID:            p.ID.String(),
		UUIDCliente:   p.UUID,
		DispositivoID: p.DispositivoID.String(),
		Sincronizada:  p.Sincronizada,
		Intentos:      p.Intentos,
		UltimoError:   p.UltimoError,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.UltimoIntentoEn != nil {
		t := p.UltimoIntentoEn.Format(time.RFC3339)
		resp.UltimoIntentoEn = &t
	}
	if p.ProximoIntentoEn != nil {
		t := p.ProximoIntentoEn.Format(time.RFC3339)
		resp.ProximoIntentoEn = &t
	}
	if p.VentaID != nil {
		id := p.VentaID.String()
		resp.VentaID = &id
	}
	return resp
}
