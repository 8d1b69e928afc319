package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clubpos/internal/dto"
	"clubpos/internal/model"
	"clubpos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fechaVenta = time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)

type syncFixture struct {
	svc        service.SyncService
	inventario service.InventarioService
	ventas     *stubVentaRepo
	pendientes *stubPendienteRepo
	productos  *stubProductoRepo
	cajas      *stubCajaRepo
	disps      *stubDispositivoRepo
	empleados  *stubEmpleadoRepo
	auditoria  *stubAuditoriaRepo

	disp   *model.Dispositivo
	emp    *model.Empleado
	sesion *model.SesionCaja
}

// newSyncFixture builds a bar terminal bound to an employee, with one open
// session owned by the terminal.
func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		ventas:     newStubVentaRepo(),
		pendientes: newStubPendienteRepo(),
		productos:  newStubProductoRepo(),
		cajas:      newStubCajaRepo(),
		disps:      newStubDispositivoRepo(),
		empleados:  newStubEmpleadoRepo(),
		auditoria:  &stubAuditoriaRepo{},
	}
	f.emp = f.empleados.add("Lucia", "lucia@club.test", "30111222")
	f.disp = f.disps.add("Barra 1")
	f.disp.EmpleadoAsignadoID = &f.emp.ID
	require.NoError(t, f.disps.Update(context.Background(), f.disp))
	f.sesion = f.cajas.abrir("Barra 1", &f.disp.ID, "0")

	caja := service.NewCajaService(f.cajas)
	f.inventario = service.NewInventarioService(f.productos, &stubMovimientoStockRepo{})
	audit := service.NewAuditoriaService(f.auditoria)
	f.svc = service.NewSyncService(f.ventas, f.pendientes, f.productos, f.empleados, f.disps,
		caja, f.inventario, audit, testConfig())
	return f
}

func ventaOffline(metodo string, items ...dto.ItemVentaOffline) dto.VentaOffline {
	return dto.VentaOffline{
		UUIDCliente: uuid.NewString(),
		MetodoPago:  metodo,
		FechaVenta:  fechaVenta,
		Items:       items,
	}
}

func item(p *model.Producto, cantidad int) dto.ItemVentaOffline {
	return dto.ItemVentaOffline{ProductoID: p.ID.String(), Cantidad: cantidad}
}

func (f *syncFixture) sync(t *testing.T, ventas ...dto.VentaOffline) []dto.ResultadoSync {
	t.Helper()
	resp, err := f.svc.SyncBatch(context.Background(), f.disp.ID, dto.SyncRequest{Ventas: ventas})
	require.NoError(t, err)
	require.Len(t, resp.Resultados, len(ventas))
	return resp.Resultados
}

func (f *syncFixture) venta(t *testing.T, r dto.ResultadoSync) *model.Venta {
	t.Helper()
	require.NotNil(t, r.VentaID)
	v, err := f.ventas.FindByID(context.Background(), uuid.MustParse(*r.VentaID))
	require.NoError(t, err)
	return v
}

func TestSync_VentaExitosa(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)

	res := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 2)))

	assert.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	require.NotNil(t, res[0].NumeroTicket)
	assert.Equal(t, "BARRA1-20261014-0001", *res[0].NumeroTicket)
	assert.Equal(t, 3, f.productos.stock(p.ID))

	v := f.venta(t, res[0])
	assert.True(t, v.Total.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, f.sesion.ID, v.SesionCajaID)
	assert.Equal(t, f.emp.ID, v.EmpleadoID)

	movs := f.cajas.movimientosDe(f.sesion.ID)
	require.Len(t, movs, 1)
	assert.Equal(t, model.MetodoEfectivo, movs[0].MetodoPago)
	assert.True(t, movs[0].Monto.Equal(decimal.RequireFromString("20.00")))

	pend, ok := f.pendientes.get(res[0].UUIDCliente)
	require.True(t, ok)
	assert.True(t, pend.Sincronizada)
	assert.Nil(t, pend.ProximoIntentoEn)
	assert.Contains(t, f.auditoria.tipos(), model.EventoSync)

	d := f.disps.get(f.disp.ID)
	assert.NotNil(t, d.UltimaSincronizacion)
}

func TestSync_NumeroTicketCorrelativo(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Agua", "2.00", 10)

	res := f.sync(t,
		ventaOffline(model.MetodoEfectivo, item(p, 1)),
		ventaOffline(model.MetodoEfectivo, item(p, 1)),
	)

	assert.Equal(t, "BARRA1-20261014-0001", *res[0].NumeroTicket)
	assert.Equal(t, "BARRA1-20261014-0002", *res[1].NumeroTicket)
}

func TestSync_NumeroTicketCompartidoEntreCajas(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Agua", "2.00", 10)
	// both names reduce to the fallback prefix
	f.sesion.NombreCaja = "Бар"
	require.NoError(t, f.cajas.UpdateSesionTx(nil, f.sesion))
	cocina := f.disps.add("Кухня")
	cocina.EmpleadoAsignadoID = &f.emp.ID
	require.NoError(t, f.disps.Update(context.Background(), cocina))
	f.cajas.abrir("Кухня", &cocina.ID, "0")

	a := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 1)))
	resp, err := f.svc.SyncBatch(context.Background(), cocina.ID, dto.SyncRequest{
		Ventas: []dto.VentaOffline{ventaOffline(model.MetodoEfectivo, item(p, 1))},
	})
	require.NoError(t, err)
	b := resp.Resultados

	require.Equal(t, dto.ResultadoSuccess, a[0].Resultado)
	require.Equal(t, dto.ResultadoSuccess, b[0].Resultado)
	assert.Equal(t, "CAJA-20261014-0001", *a[0].NumeroTicket)
	assert.Equal(t, "CAJA-20261014-0002", *b[0].NumeroTicket)
	assert.Equal(t, []string{"CAJA-20261014-", "CAJA-20261014-"}, f.ventas.bloqueos)
}

func TestSync_FechaDelTicketEnUTC(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Agua", "2.00", 10)
	v := ventaOffline(model.MetodoEfectivo, item(p, 1))
	v.FechaVenta = time.Date(2026, 10, 14, 23, 30, 0, 0, time.FixedZone("ART", -3*3600))

	res := f.sync(t, v)

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, "BARRA1-20261015-0001", *res[0].NumeroTicket)
}

func TestSync_TicketRepetidoNoSeTomaComoDuplicado(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Agua", "2.00", 10)
	otro := uuid.NewString()
	previa := &model.Venta{ID: uuid.New(), NumeroTicket: "BARRA1-20261014-0001", UUIDCliente: &otro}
	f.ventas.ventas[previa.ID] = previa
	cero := int64(0)
	f.ventas.cuentaFija = &cero

	res := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 1)))

	assert.Equal(t, dto.ResultadoError, res[0].Resultado)
	assert.Nil(t, res[0].VentaID)
	require.NotNil(t, res[0].Error)
	assert.Equal(t, "error interno al sincronizar la venta", *res[0].Error)

	pend, ok := f.pendientes.get(res[0].UUIDCliente)
	require.True(t, ok)
	assert.False(t, pend.Sincronizada)
	assert.Equal(t, 1, pend.Intentos)
	require.NotNil(t, pend.UltimoError)
	assert.Contains(t, *pend.UltimoError, "numero de ticket duplicado")
}

func TestSync_DemoraDeReintentoMinima(t *testing.T) {
	f := newSyncFixture(t)
	cfg := testConfig()
	cfg.SyncRetryDelayMinutes = 0
	f.svc = service.NewSyncService(f.ventas, f.pendientes, f.productos, f.empleados, f.disps,
		service.NewCajaService(f.cajas), f.inventario, service.NewAuditoriaService(f.auditoria), cfg)
	p := f.productos.add("Fernet", "6.00", 0)

	res := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 1)))

	require.Equal(t, dto.ResultadoError, res[0].Resultado)
	pend, ok := f.pendientes.get(res[0].UUIDCliente)
	require.True(t, ok)
	require.NotNil(t, pend.UltimoIntentoEn)
	require.NotNil(t, pend.ProximoIntentoEn)
	assert.True(t, pend.ProximoIntentoEn.After(*pend.UltimoIntentoEn))
	assert.Equal(t, time.Minute, pend.ProximoIntentoEn.Sub(*pend.UltimoIntentoEn))
}

func TestSync_Idempotencia(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	v := ventaOffline(model.MetodoEfectivo, item(p, 1))

	first := f.sync(t, v)
	second := f.sync(t, v)

	require.Equal(t, dto.ResultadoSuccess, first[0].Resultado)
	assert.Equal(t, dto.ResultadoDuplicate, second[0].Resultado)
	assert.Equal(t, *first[0].VentaID, *second[0].VentaID)
	assert.Equal(t, *first[0].NumeroTicket, *second[0].NumeroTicket)
	assert.Equal(t, 1, f.ventas.count())
	assert.Equal(t, 4, f.productos.stock(p.ID))
}

func TestSync_DuplicadoDentroDelMismoLote(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	v := ventaOffline(model.MetodoEfectivo, item(p, 1))

	res := f.sync(t, v, v)

	assert.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, dto.ResultadoDuplicate, res[1].Resultado)
	assert.Equal(t, 4, f.productos.stock(p.ID))
}

func TestSync_SinSobreventa(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Fernet", "6.00", 5)

	res := f.sync(t,
		ventaOffline(model.MetodoEfectivo, item(p, 3)),
		ventaOffline(model.MetodoEfectivo, item(p, 3)),
	)

	assert.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, dto.ResultadoError, res[1].Resultado)
	require.NotNil(t, res[1].Error)
	assert.Contains(t, *res[1].Error, service.ErrStockInsuficiente.Error())
	assert.Equal(t, 2, f.productos.stock(p.ID))

	pend, ok := f.pendientes.get(res[1].UUIDCliente)
	require.True(t, ok)
	assert.False(t, pend.Sincronizada)
	assert.Equal(t, 1, pend.Intentos)
	require.NotNil(t, pend.ProximoIntentoEn)
	assert.True(t, pend.ProximoIntentoEn.After(time.Now()))
	assert.Contains(t, f.auditoria.tipos(), model.EventoError)
}

func TestSync_ConcurrenteAgotaStock(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Shot", "3.00", 10)

	const terminales = 25
	var wg sync.WaitGroup
	resultados := make(chan dto.ResultadoSync, terminales)
	for i := 0; i < terminales; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.SyncBatch(context.Background(), f.disp.ID, dto.SyncRequest{
				Ventas: []dto.VentaOffline{ventaOffline(model.MetodoEfectivo, item(p, 1))},
			})
			if err == nil {
				resultados <- resp.Resultados[0]
			}
		}()
	}
	wg.Wait()
	close(resultados)

	exitos, fallos := 0, 0
	for r := range resultados {
		switch r.Resultado {
		case dto.ResultadoSuccess:
			exitos++
		case dto.ResultadoError:
			fallos++
			assert.Contains(t, *r.Error, service.ErrStockInsuficiente.Error())
		}
	}
	assert.Equal(t, 10, exitos)
	assert.Equal(t, terminales-10, fallos)
	assert.Equal(t, 0, f.productos.stock(p.ID))
	assert.Equal(t, 10, f.ventas.count())
}

func TestSync_SesionCerrada(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	cerrada := f.cajas.abrir("Barra 2", nil, "0")
	cerrada.Estado = model.EstadoCajaCerrada
	require.NoError(t, f.cajas.UpdateSesionTx(nil, cerrada))

	v := ventaOffline(model.MetodoEfectivo, item(p, 1))
	id := cerrada.ID.String()
	v.SesionCajaID = &id
	res := f.sync(t, v)

	assert.Equal(t, dto.ResultadoError, res[0].Resultado)
	assert.Contains(t, *res[0].Error, service.ErrSinSesionAbierta.Error())
	assert.Equal(t, 5, f.productos.stock(p.ID))
	assert.Equal(t, 0, f.ventas.count())
}

func TestSync_SinSesionDelDispositivoUsaLaUnicaAbierta(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	f.sesion.Estado = model.EstadoCajaCerrada
	require.NoError(t, f.cajas.UpdateSesionTx(nil, f.sesion))
	general := f.cajas.abrir("Caja Principal", nil, "0")

	res := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 1)))

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, general.ID, f.venta(t, res[0]).SesionCajaID)
	assert.Equal(t, "CAJAPRINCIPAL-20261014-0001", *res[0].NumeroTicket)
}

func TestSync_VariasSesionesAbiertasSinIndicarCual(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	f.sesion.Estado = model.EstadoCajaCerrada
	require.NoError(t, f.cajas.UpdateSesionTx(nil, f.sesion))
	f.cajas.abrir("Caja 1", nil, "0")
	f.cajas.abrir("Caja 2", nil, "0")

	res := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 1)))

	assert.Equal(t, dto.ResultadoError, res[0].Resultado)
	assert.Contains(t, *res[0].Error, service.ErrSinSesionAbierta.Error())
}

func TestSync_PagoMixtoSinMontosSeDivide(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Trago", "10.00", 5)

	res := f.sync(t, ventaOffline(model.MetodoMixto, item(p, 2)))

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	v := f.venta(t, res[0])
	assert.True(t, v.MontoEfectivo.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, v.MontoTarjeta.Equal(decimal.RequireFromString("10.00")))

	movs := f.cajas.movimientosDe(f.sesion.ID)
	require.Len(t, movs, 2)
	for _, m := range movs {
		assert.True(t, m.Monto.Equal(decimal.RequireFromString("10.00")), m.MetodoPago)
	}
}

func TestSync_VueltoSeDevuelveEnEfectivo(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Trago", "10.00", 5)
	v := ventaOffline(model.MetodoMixto, item(p, 2))
	v.MontoEfectivo = decimal.RequireFromString("15.00")
	v.MontoTarjeta = decimal.RequireFromString("10.00")

	res := f.sync(t, v)

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	porMetodo := map[string]decimal.Decimal{}
	for _, m := range f.cajas.movimientosDe(f.sesion.ID) {
		porMetodo[m.MetodoPago] = m.Monto
	}
	assert.True(t, porMetodo[model.MetodoTarjeta].Equal(decimal.RequireFromString("10.00")))
	assert.True(t, porMetodo[model.MetodoEfectivo].Equal(decimal.RequireFromString("10.00")))
}

func TestSync_PagoInsuficiente(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Trago", "10.00", 5)
	v := ventaOffline(model.MetodoEfectivo, item(p, 2))
	v.MontoEfectivo = decimal.RequireFromString("5.00")

	res := f.sync(t, v)

	assert.Equal(t, dto.ResultadoError, res[0].Resultado)
	assert.Contains(t, *res[0].Error, service.ErrPagoInsuficiente.Error())
	assert.Equal(t, 5, f.productos.stock(p.ID))
}

func TestSync_PrecioDelServidor(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	it := item(p, 2)
	it.PrecioUnitario = decimal.RequireFromString("1.00")
	v := ventaOffline(model.MetodoEfectivo, it)
	v.Total = decimal.RequireFromString("2.00")

	res := f.sync(t, v)

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	venta := f.venta(t, res[0])
	assert.True(t, venta.Total.Equal(decimal.RequireFromString("20.00")))
	require.Len(t, venta.Items, 1)
	assert.True(t, venta.Items[0].PrecioUnitario.Equal(decimal.RequireFromString("10.00")))
}

func TestSync_AislamientoDelLote(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	inexistente := &model.Producto{ID: uuid.New()}

	res := f.sync(t,
		ventaOffline(model.MetodoEfectivo, item(p, 1)),
		ventaOffline(model.MetodoEfectivo, item(inexistente, 1)),
		ventaOffline(model.MetodoTarjeta, item(p, 1)),
	)

	assert.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, dto.ResultadoError, res[1].Resultado)
	assert.Contains(t, *res[1].Error, service.ErrProductoNoEncontrado.Error())
	assert.Equal(t, dto.ResultadoSuccess, res[2].Resultado)
	assert.Equal(t, 3, f.productos.stock(p.ID))
}

func TestSync_PayloadInvalidoQuedaEnElLedger(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)

	res := f.sync(t, ventaOffline("cripto", item(p, 1)))

	assert.Equal(t, dto.ResultadoError, res[0].Resultado)
	assert.Contains(t, *res[0].Error, service.ErrPayloadInvalido.Error())
	pend, ok := f.pendientes.get(res[0].UUIDCliente)
	require.True(t, ok)
	assert.Equal(t, 1, pend.Intentos)
}

func TestSync_EmpleadoDelPayloadInvalidoUsaElDelDispositivo(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	v := ventaOffline(model.MetodoEfectivo, item(p, 1))
	otro := uuid.NewString()
	v.EmpleadoID = &otro

	res := f.sync(t, v)

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, f.emp.ID, f.venta(t, res[0]).EmpleadoID)
}

func TestSync_EmpleadoDelPayloadValidoTienePrioridad(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	mozo := f.empleados.add("Tomas", "tomas@club.test", "")
	v := ventaOffline(model.MetodoEfectivo, item(p, 1))
	id := mozo.ID.String()
	v.EmpleadoID = &id

	res := f.sync(t, v)

	require.Equal(t, dto.ResultadoSuccess, res[0].Resultado)
	assert.Equal(t, mozo.ID, f.venta(t, res[0]).EmpleadoID)
}

func TestSync_SinEmpleadoResoluble(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	f.disp.EmpleadoAsignadoID = nil
	require.NoError(t, f.disps.Update(context.Background(), f.disp))

	res := f.sync(t, ventaOffline(model.MetodoEfectivo, item(p, 1)))

	assert.Equal(t, dto.ResultadoError, res[0].Resultado)
	assert.Contains(t, *res[0].Error, service.ErrEmpleadoNoResuelto.Error())
}

func TestSync_LoteExcedido(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 100)
	ventas := make([]dto.VentaOffline, 51)
	for i := range ventas {
		ventas[i] = ventaOffline(model.MetodoEfectivo, item(p, 1))
	}

	_, err := f.svc.SyncBatch(context.Background(), f.disp.ID, dto.SyncRequest{Ventas: ventas})

	assert.ErrorIs(t, err, service.ErrLoteExcedido)
	assert.Equal(t, 100, f.productos.stock(p.ID))
}

func TestSync_DispositivoDesactivado(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Cerveza", "10.00", 5)
	f.disp.Activo = false
	require.NoError(t, f.disps.Update(context.Background(), f.disp))

	_, err := f.svc.SyncBatch(context.Background(), f.disp.ID, dto.SyncRequest{
		Ventas: []dto.VentaOffline{ventaOffline(model.MetodoEfectivo, item(p, 1))},
	})

	assert.ErrorIs(t, err, service.ErrDispositivoDesactivado)
}

// ── Retry ledger ─────────────────────────────────────────────────────────────

func TestReintentar_IntentosMonotonosHastaExito(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	p := f.productos.add("Fernet", "6.00", 1)
	v := ventaOffline(model.MetodoEfectivo, item(p, 3))

	res := f.sync(t, v)
	require.Equal(t, dto.ResultadoError, res[0].Resultado)

	// not due yet
	reintentos, err := f.svc.ReintentarPendientes(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, reintentos)

	f.pendientes.vencer()
	reintentos, err = f.svc.ReintentarPendientes(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, reintentos, 1)
	assert.Equal(t, dto.ResultadoError, reintentos[0].Resultado)
	pend, _ := f.pendientes.get(v.UUIDCliente)
	assert.Equal(t, 2, pend.Intentos)

	_, err = f.inventario.AjustarStock(ctx, p.ID, dto.AjustarStockRequest{Delta: 5, Motivo: "reposicion"})
	require.NoError(t, err)

	f.pendientes.vencer()
	reintentos, err = f.svc.ReintentarPendientes(ctx, &f.disp.ID, 10)
	require.NoError(t, err)
	require.Len(t, reintentos, 1)
	assert.Equal(t, dto.ResultadoSuccess, reintentos[0].Resultado)

	pend, _ = f.pendientes.get(v.UUIDCliente)
	assert.True(t, pend.Sincronizada)
	assert.Equal(t, 2, pend.Intentos)
	assert.Nil(t, pend.UltimoError)
	assert.Equal(t, 3, f.productos.stock(p.ID))

	// the device resubmits after reconnecting
	again := f.sync(t, v)
	assert.Equal(t, dto.ResultadoDuplicate, again[0].Resultado)
	pend, _ = f.pendientes.get(v.UUIDCliente)
	assert.Equal(t, 2, pend.Intentos)
}

func TestDescartarAgotadas(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	p := f.productos.add("Fernet", "6.00", 0)
	v := ventaOffline(model.MetodoEfectivo, item(p, 1))

	f.sync(t, v)
	for i := 0; i < 2; i++ {
		f.pendientes.vencer()
		_, err := f.svc.ReintentarPendientes(ctx, nil, 10)
		require.NoError(t, err)
	}
	pend, _ := f.pendientes.get(v.UUIDCliente)
	require.Equal(t, 3, pend.Intentos)

	agotadas, err := f.svc.DescartarAgotadas(ctx, 10)
	require.NoError(t, err)
	require.Len(t, agotadas, 1)
	assert.Equal(t, v.UUIDCliente, agotadas[0].UUID)

	pend, _ = f.pendientes.get(v.UUIDCliente)
	assert.Nil(t, pend.ProximoIntentoEn)

	f.pendientes.vencer()
	reintentos, err := f.svc.ReintentarPendientes(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, reintentos)
}

func TestListarPendientes_FiltraPorEstado(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Fernet", "6.00", 1)
	f.sync(t,
		ventaOffline(model.MetodoEfectivo, item(p, 1)),
		ventaOffline(model.MetodoEfectivo, item(p, 1)),
	)

	resp, err := f.svc.ListarPendientes(context.Background(), dto.VentaPendienteFilter{Estado: "pendiente", Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.False(t, resp.Data[0].Sincronizada)
	assert.Equal(t, 1, resp.Data[0].Intentos)

	resp, err = f.svc.ListarPendientes(context.Background(), dto.VentaPendienteFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2)
}

func TestSync_ResultadosConservanElOrden(t *testing.T) {
	f := newSyncFixture(t)
	p := f.productos.add("Agua", "2.00", 50)
	ventas := make([]dto.VentaOffline, 5)
	for i := range ventas {
		ventas[i] = ventaOffline(model.MetodoEfectivo, item(p, 1))
	}

	res := f.sync(t, ventas...)

	for i, r := range res {
		assert.Equal(t, ventas[i].UUIDCliente, r.UUIDCliente, fmt.Sprintf("posicion %d", i))
	}
}
