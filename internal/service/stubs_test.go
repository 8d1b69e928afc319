package service_test

// In-memory repositories for service tests. Every stub passes a nil *gorm.DB
// through DB(), so runTx calls the closure directly. Each stub guards its maps
// with a mutex so concurrent sync tests stay race-free.

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clubpos/internal/config"
	"clubpos/internal/dto"
	"clubpos/internal/model"
	"clubpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             "test-secret",
		JWTExpirationHours:    8,
		JWTRefreshHours:       24,
		DeviceTokenDays:       30,
		PairingTTLMinutes:     60,
		PairingBaseURL:        "https://pos.example.com/",
		SyncRetryDelayMinutes: 5,
		SyncRetryMaxAttempts:  3,
		SyncMaxBatch:          50,
	}
}

// ── Empleados ────────────────────────────────────────────────────────────────

type stubEmpleadoRepo struct {
	mu        sync.Mutex
	empleados map[uuid.UUID]*model.Empleado
}

func newStubEmpleadoRepo() *stubEmpleadoRepo {
	return &stubEmpleadoRepo{empleados: make(map[uuid.UUID]*model.Empleado)}
}

func (r *stubEmpleadoRepo) add(nombre, email, dni string) *model.Empleado {
	e := &model.Empleado{ID: uuid.New(), Username: email, Nombre: nombre, Rol: "barra", Activo: true}
	if email != "" {
		e.Email = &email
	}
	if dni != "" {
		e.DNI = &dni
	}
	r.mu.Lock()
	r.empleados[e.ID] = e
	r.mu.Unlock()
	return e
}

func (r *stubEmpleadoRepo) Create(_ context.Context, e *model.Empleado) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.empleados[e.ID] = e
	return nil
}

func (r *stubEmpleadoRepo) FindByUsername(_ context.Context, username string) (*model.Empleado, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.empleados {
		if e.Username == username && e.Activo {
			return e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubEmpleadoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Empleado, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.empleados[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *stubEmpleadoRepo) FindActivoByIdentificador(_ context.Context, ident string) (*model.Empleado, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.empleados {
		if !e.Activo {
			continue
		}
		if (e.Email != nil && strings.EqualFold(*e.Email, ident)) || (e.DNI != nil && *e.DNI == ident) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubEmpleadoRepo) List(_ context.Context) ([]model.Empleado, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Empleado, 0, len(r.empleados))
	for _, e := range r.empleados {
		out = append(out, *e)
	}
	return out, nil
}

// ── Dispositivos ─────────────────────────────────────────────────────────────

type stubDispositivoRepo struct {
	mu           sync.Mutex
	dispositivos map[uuid.UUID]*model.Dispositivo
}

func newStubDispositivoRepo() *stubDispositivoRepo {
	return &stubDispositivoRepo{dispositivos: make(map[uuid.UUID]*model.Dispositivo)}
}

func (r *stubDispositivoRepo) add(nombre string) *model.Dispositivo {
	d := &model.Dispositivo{ID: uuid.New(), Nombre: nombre, Tipo: model.TipoDispositivoBarra, Activo: true}
	r.mu.Lock()
	r.dispositivos[d.ID] = d
	r.mu.Unlock()
	return d
}

func (r *stubDispositivoRepo) get(id uuid.UUID) model.Dispositivo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.dispositivos[id]
}

func (r *stubDispositivoRepo) Create(_ context.Context, d *model.Dispositivo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.dispositivos[d.ID] = &cp
	return nil
}

func (r *stubDispositivoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Dispositivo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dispositivos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *stubDispositivoRepo) List(_ context.Context, soloActivos bool) ([]model.Dispositivo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Dispositivo
	for _, d := range r.dispositivos {
		if soloActivos && !d.Activo {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *stubDispositivoRepo) Update(_ context.Context, d *model.Dispositivo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.AsignacionPermanente && d.EmpleadoAsignadoID != nil {
		for _, o := range r.dispositivos {
			if o.ID != d.ID && o.AsignacionPermanente && o.EmpleadoAsignadoID != nil && *o.EmpleadoAsignadoID == *d.EmpleadoAsignadoID {
				return repository.ErrDuplicado
			}
		}
	}
	cp := *d
	cp.EmpleadoAsignado = nil
	r.dispositivos[d.ID] = &cp
	return nil
}

func (r *stubDispositivoRepo) AsignarPairing(_ context.Context, id uuid.UUID, token, codigo string, expira time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.dispositivos {
		if o.ID != id && o.PairingCodigo != nil && *o.PairingCodigo == codigo {
			return repository.ErrDuplicado
		}
	}
	d, ok := r.dispositivos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.PairingToken, d.PairingCodigo, d.PairingExpiraEn = &token, &codigo, &expira
	return nil
}

func (r *stubDispositivoRepo) LimpiarPairingsVencidos(_ context.Context, ahora time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.dispositivos {
		if d.PairingExpiraEn != nil && !d.PairingExpiraEn.After(ahora) {
			d.PairingToken, d.PairingCodigo, d.PairingExpiraEn = nil, nil, nil
			n++
		}
	}
	return n, nil
}

func (r *stubDispositivoRepo) CanjearPairing(_ context.Context, columna, valor string, ahora time.Time) (*model.Dispositivo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.dispositivos {
		campo := d.PairingToken
		if columna == "pairing_codigo" {
			campo = d.PairingCodigo
		}
		if campo == nil || *campo != valor || !d.Activo || d.PairingExpiraEn == nil || !d.PairingExpiraEn.After(ahora) {
			continue
		}
		d.PairingToken, d.PairingCodigo, d.PairingExpiraEn = nil, nil, nil
		d.UltimoAcceso = &ahora
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubDispositivoRepo) FindPermanentePorEmpleado(_ context.Context, empleadoID uuid.UUID) (*model.Dispositivo, error) {
	return r.findPorEmpleado(empleadoID, true)
}

func (r *stubDispositivoRepo) FindTemporalPorEmpleado(_ context.Context, empleadoID uuid.UUID) (*model.Dispositivo, error) {
	return r.findPorEmpleado(empleadoID, false)
}

func (r *stubDispositivoRepo) findPorEmpleado(empleadoID uuid.UUID, permanente bool) (*model.Dispositivo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.dispositivos {
		if d.Activo && d.AsignacionPermanente == permanente && d.EmpleadoAsignadoID != nil && *d.EmpleadoAsignadoID == empleadoID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubDispositivoRepo) ClaimDisponible(_ context.Context, empleadoID uuid.UUID, ahora time.Time) (*model.Dispositivo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var libres []*model.Dispositivo
	for _, d := range r.dispositivos {
		if d.Disponible() {
			libres = append(libres, d)
		}
	}
	if len(libres) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(libres, func(i, j int) bool {
		a, b := libres[i], libres[j]
		if a.ModoTabletCompartida != b.ModoTabletCompartida {
			return a.ModoTabletCompartida
		}
		if a.UltimoAcceso == nil || b.UltimoAcceso == nil {
			return a.UltimoAcceso == nil && b.UltimoAcceso != nil
		}
		return a.UltimoAcceso.Before(*b.UltimoAcceso)
	})
	d := libres[0]
	d.EmpleadoAsignadoID = &empleadoID
	d.UltimoAcceso = &ahora
	cp := *d
	return &cp, nil
}

func (r *stubDispositivoRepo) Desvincular(_ context.Context, id uuid.UUID, forzar bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dispositivos[id]
	if !ok || (d.AsignacionPermanente && !forzar) {
		return gorm.ErrRecordNotFound
	}
	d.EmpleadoAsignadoID = nil
	d.AsignacionPermanente = false
	return nil
}

func (r *stubDispositivoRepo) TouchUltimoAcceso(_ context.Context, id uuid.UUID, en time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dispositivos[id]; ok {
		d.UltimoAcceso = &en
	}
	return nil
}

func (r *stubDispositivoRepo) MarcarSincronizacion(_ context.Context, id uuid.UUID, en time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dispositivos[id]; ok {
		d.UltimaSincronizacion = &en
	}
	return nil
}

// ── Productos / stock ────────────────────────────────────────────────────────

type stubProductoRepo struct {
	mu        sync.Mutex
	productos map[uuid.UUID]*model.Producto
}

func newStubProductoRepo() *stubProductoRepo {
	return &stubProductoRepo{productos: make(map[uuid.UUID]*model.Producto)}
}

func (r *stubProductoRepo) add(nombre, precio string, stock int) *model.Producto {
	p := &model.Producto{
		ID:          uuid.New(),
		Nombre:      nombre,
		Categoria:   "bebidas",
		PrecioVenta: decimal.RequireFromString(precio),
		StockActual: stock,
		Activo:      true,
	}
	r.mu.Lock()
	r.productos[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *stubProductoRepo) stock(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.productos[id].StockActual
}

func (r *stubProductoRepo) Create(_ context.Context, p *model.Producto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.productos[p.ID] = p
	return nil
}

func (r *stubProductoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.productos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductoRepo) List(_ context.Context, _ dto.ProductoFilter) ([]model.Producto, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Producto
	for _, p := range r.productos {
		if p.Activo {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubProductoRepo) DescontarStockTx(_ *gorm.DB, id uuid.UUID, cantidad int) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.productos[id]
	if !ok || p.StockActual < cantidad {
		return 0, 0, repository.ErrStockNoDisponible
	}
	anterior := p.StockActual
	p.StockActual -= cantidad
	return anterior, p.StockActual, nil
}

func (r *stubProductoRepo) AjustarStockTx(_ *gorm.DB, id uuid.UUID, delta int) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.productos[id]
	if !ok || p.StockActual+delta < 0 {
		return 0, 0, repository.ErrStockNoDisponible
	}
	anterior := p.StockActual
	p.StockActual += delta
	return anterior, p.StockActual, nil
}

func (r *stubProductoRepo) DB() *gorm.DB { return nil }

type stubMovimientoStockRepo struct {
	mu          sync.Mutex
	movimientos []model.MovimientoStock
}

func (r *stubMovimientoStockRepo) CreateTx(_ *gorm.DB, m *model.MovimientoStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *stubMovimientoStockRepo) ListByProducto(_ context.Context, productoID uuid.UUID, tipo string, _, _ int) ([]model.MovimientoStock, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MovimientoStock
	for i := len(r.movimientos) - 1; i >= 0; i-- {
		m := r.movimientos[i]
		if m.ProductoID == productoID && (tipo == "" || m.Tipo == tipo) {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

// ── Ventas ───────────────────────────────────────────────────────────────────

type stubVentaRepo struct {
	mu     sync.Mutex
	ventas map[uuid.UUID]*model.Venta
	// bloqueos records every ticket prefix locked, in order.
	bloqueos []string
	// cuentaFija, when set, is returned by CountTicketsTx regardless of the
	// stored tickets, as a count taken without the prefix lock would be.
	cuentaFija *int64
}

func newStubVentaRepo() *stubVentaRepo {
	return &stubVentaRepo{ventas: make(map[uuid.UUID]*model.Venta)}
}

func (r *stubVentaRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ventas)
}

func (r *stubVentaRepo) CreateTx(_ *gorm.DB, v *model.Venta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.ventas {
		if v.UUIDCliente != nil && o.UUIDCliente != nil && *o.UUIDCliente == *v.UUIDCliente {
			return repository.ErrDuplicado
		}
		if o.NumeroTicket == v.NumeroTicket {
			return repository.ErrTicketDuplicado
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	cp := *v
	r.ventas[v.ID] = &cp
	return nil
}

func (r *stubVentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.ventas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *stubVentaRepo) FindByUUIDCliente(_ context.Context, uuidCliente string) (*model.Venta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.ventas {
		if v.UUIDCliente != nil && *v.UUIDCliente == uuidCliente {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubVentaRepo) LockTicketsTx(_ *gorm.DB, prefijo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bloqueos = append(r.bloqueos, prefijo)
	return nil
}

func (r *stubVentaRepo) CountTicketsTx(_ *gorm.DB, prefijo string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cuentaFija != nil {
		return *r.cuentaFija, nil
	}
	var n int64
	for _, v := range r.ventas {
		if strings.HasPrefix(v.NumeroTicket, prefijo) {
			n++
		}
	}
	return n, nil
}

func (r *stubVentaRepo) DB() *gorm.DB { return nil }

// ── Ventas pendientes ────────────────────────────────────────────────────────

type stubPendienteRepo struct {
	mu    sync.Mutex
	filas map[string]*model.VentaPendiente
}

func newStubPendienteRepo() *stubPendienteRepo {
	return &stubPendienteRepo{filas: make(map[string]*model.VentaPendiente)}
}

func (r *stubPendienteRepo) get(uuidCliente string) (model.VentaPendiente, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.filas[uuidCliente]
	if !ok {
		return model.VentaPendiente{}, false
	}
	return *p, true
}

// vencer moves every scheduled retry into the past.
func (r *stubPendienteRepo) vencer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	pasado := time.Now().Add(-time.Minute)
	for _, p := range r.filas {
		if p.ProximoIntentoEn != nil {
			p.ProximoIntentoEn = &pasado
		}
	}
}

func (r *stubPendienteRepo) FindByUUID(_ context.Context, uuidCliente string) (*model.VentaPendiente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.filas[uuidCliente]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubPendienteRepo) LockOrCreateTx(_ *gorm.DB, p *model.VentaPendiente) (*model.VentaPendiente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fila, ok := r.filas[p.UUID]
	if !ok {
		cp := *p
		cp.ID = uuid.New()
		cp.CreatedAt = time.Now()
		r.filas[p.UUID] = &cp
		fila = &cp
	}
	out := *fila
	return &out, nil
}

func (r *stubPendienteRepo) MarcarSincronizadaTx(_ *gorm.DB, id uuid.UUID, ventaID uuid.UUID, en time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.filas {
		if p.ID == id {
			p.Sincronizada = true
			p.VentaID = &ventaID
			p.UltimoIntentoEn = &en
			p.ProximoIntentoEn = nil
			p.UltimoError = nil
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubPendienteRepo) RegistrarFallo(_ context.Context, f repository.Fallo) (*model.VentaPendiente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.filas[f.UUID]
	if !ok {
		p = &model.VentaPendiente{ID: uuid.New(), UUID: f.UUID, DispositivoID: f.DispositivoID, CreatedAt: f.IntentoEn}
		r.filas[f.UUID] = p
	}
	if p.Sincronizada {
		cp := *p
		return &cp, nil
	}
	intento, proximo, msg := f.IntentoEn, f.ProximoEn, f.Error
	p.Intentos++
	p.Payload = f.Payload
	p.UltimoIntentoEn = &intento
	p.ProximoIntentoEn = &proximo
	p.UltimoError = &msg
	cp := *p
	return &cp, nil
}

func (r *stubPendienteRepo) ListElegibles(_ context.Context, ahora time.Time, dispositivoID *uuid.UUID, maxIntentos, limite int) ([]model.VentaPendiente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.VentaPendiente
	for _, p := range r.filas {
		if p.Sincronizada || p.ProximoIntentoEn == nil || p.ProximoIntentoEn.After(ahora) {
			continue
		}
		if maxIntentos > 0 && p.Intentos >= maxIntentos {
			continue
		}
		if dispositivoID != nil && p.DispositivoID != *dispositivoID {
			continue
		}
		out = append(out, *p)
		if len(out) == limite {
			break
		}
	}
	return out, nil
}

func (r *stubPendienteRepo) ListAgotadas(_ context.Context, maxIntentos, limite int) ([]model.VentaPendiente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.VentaPendiente
	for _, p := range r.filas {
		if !p.Sincronizada && p.ProximoIntentoEn != nil && p.Intentos >= maxIntentos {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubPendienteRepo) Descartar(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.filas {
		if p.ID == id && !p.Sincronizada {
			p.ProximoIntentoEn = nil
		}
	}
	return nil
}

func (r *stubPendienteRepo) List(_ context.Context, f repository.VentaPendienteFilter) ([]model.VentaPendiente, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.VentaPendiente
	for _, p := range r.filas {
		if f.DispositivoID != nil && p.DispositivoID != *f.DispositivoID {
			continue
		}
		if f.Sincronizada != nil && p.Sincronizada != *f.Sincronizada {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

// ── Caja ─────────────────────────────────────────────────────────────────────

type stubCajaRepo struct {
	mu          sync.Mutex
	sesiones    map[uuid.UUID]*model.SesionCaja
	movimientos []model.MovimientoCaja
	// ventas feeds SumVentasTx; tests set it directly or let the sync
	// service drive it through the movements.
	ventas map[uuid.UUID]decimal.Decimal
}

func newStubCajaRepo() *stubCajaRepo {
	return &stubCajaRepo{
		sesiones: make(map[uuid.UUID]*model.SesionCaja),
		ventas:   make(map[uuid.UUID]decimal.Decimal),
	}
}

func (r *stubCajaRepo) abrir(nombre string, dispositivoID *uuid.UUID, inicial string) *model.SesionCaja {
	s := &model.SesionCaja{
		ID:                 uuid.New(),
		NombreCaja:         nombre,
		DispositivoID:      dispositivoID,
		EmpleadoAperturaID: uuid.New(),
		MontoInicial:       decimal.RequireFromString(inicial),
		Estado:             model.EstadoCajaAbierta,
		OpenedAt:           time.Now(),
	}
	r.mu.Lock()
	r.sesiones[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *stubCajaRepo) movimientosDe(sesionID uuid.UUID) []model.MovimientoCaja {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MovimientoCaja
	for _, m := range r.movimientos {
		if m.SesionCajaID == sesionID {
			out = append(out, m)
		}
	}
	return out
}

func (r *stubCajaRepo) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.sesiones {
		if o.NombreCaja == s.NombreCaja && o.Abierta() {
			return repository.ErrDuplicado
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

func (r *stubCajaRepo) FindSesionAbiertaPorNombre(_ context.Context, nombre string) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sesiones {
		if s.NombreCaja == nombre && s.Abierta() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	return r.FindSesionByIDForUpdateTx(nil, id)
}

func (r *stubCajaRepo) FindSesionByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubCajaRepo) ListSesionesAbiertasTx(_ *gorm.DB, dispositivoID *uuid.UUID) ([]model.SesionCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SesionCaja
	for _, s := range r.sesiones {
		if !s.Abierta() {
			continue
		}
		if dispositivoID != nil && (s.DispositivoID == nil || *s.DispositivoID != *dispositivoID) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubCajaRepo) ListSesionesAbiertas(_ context.Context) ([]model.SesionCaja, error) {
	return r.ListSesionesAbiertasTx(nil, nil)
}

func (r *stubCajaRepo) UpdateSesionTx(_ *gorm.DB, s *model.SesionCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sesiones[s.ID] = &cp
	return nil
}

func (r *stubCajaRepo) CreateMovimientoTx(_ *gorm.DB, m *model.MovimientoCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movimientos = append(r.movimientos, *m)
	r.ventas[m.SesionCajaID] = r.ventas[m.SesionCajaID].Add(m.Monto)
	return nil
}

func (r *stubCajaRepo) SumVentasTx(_ *gorm.DB, sesionID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ventas[sesionID], nil
}

func (r *stubCajaRepo) SumMovimientosByMetodo(_ context.Context, sesionID uuid.UUID) (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sums := map[string]decimal.Decimal{model.MetodoEfectivo: decimal.Zero, model.MetodoTarjeta: decimal.Zero}
	for _, m := range r.movimientos {
		if m.SesionCajaID == sesionID {
			sums[m.MetodoPago] = sums[m.MetodoPago].Add(m.Monto)
		}
	}
	return sums, nil
}

func (r *stubCajaRepo) ListSesiones(_ context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SesionCaja
	for _, s := range r.sesiones {
		if !s.Abierta() {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubCajaRepo) DB() *gorm.DB { return nil }

// ── Auditoria ────────────────────────────────────────────────────────────────

type stubAuditoriaRepo struct {
	mu      sync.Mutex
	eventos []model.EventoAuditoria
}

func (r *stubAuditoriaRepo) Create(_ context.Context, e *model.EventoAuditoria) error {
	return r.CreateTx(nil, e)
}

func (r *stubAuditoriaRepo) CreateTx(_ *gorm.DB, e *model.EventoAuditoria) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventos = append(r.eventos, *e)
	return nil
}

func (r *stubAuditoriaRepo) tipos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.eventos))
	for _, e := range r.eventos {
		out = append(out, e.Tipo)
	}
	return out
}
