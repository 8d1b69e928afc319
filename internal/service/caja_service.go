package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubpos/internal/dto"
	"clubpos/internal/model"
	"clubpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CajaService interface {
	Abrir(ctx context.Context, empleadoID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	Cerrar(ctx context.Context, empleadoID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error)
	// ValidarAbiertaTx locks the session and fails unless it is open.
	ValidarAbiertaTx(tx *gorm.DB, sesionID uuid.UUID) (*model.SesionCaja, error)
	// ResolverSesionTx picks the session an offline sale attaches to: the
	// explicit id when given, otherwise the only open session owned by the
	// device, otherwise the only open session overall. The result is locked.
	ResolverSesionTx(tx *gorm.DB, sesionID *uuid.UUID, dispositivoID uuid.UUID) (*model.SesionCaja, error)
	// RegistrarMovimientoVentaTx appends a sale payment to the session ledger.
	RegistrarMovimientoVentaTx(tx *gorm.DB, m *model.MovimientoCaja) error
	ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error)
	ListarAbiertas(ctx context.Context) ([]dto.SesionCajaResponse, error)
	Historial(ctx context.Context, page, limit int) (*dto.HistorialCajaResponse, error)
}

type cajaService struct {
	repo repository.CajaRepository
}

func NewCajaService(repo repository.CajaRepository) CajaService {
	return &cajaService{repo: repo}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, empleadoID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	nombre := strings.TrimSpace(req.NombreCaja)
	if req.MontoInicial.IsNegative() {
		return nil, errors.New("el monto inicial no puede ser negativo")
	}

	// Guard: one open session per register name
	if existing, err := s.repo.FindSesionAbiertaPorNombre(ctx, nombre); err == nil && existing != nil {
		return nil, ErrCajaYaAbierta
	}

	sesion := &model.SesionCaja{
		NombreCaja:         nombre,
		EmpleadoAperturaID: empleadoID,
		MontoInicial:       req.MontoInicial,
		Estado:             model.EstadoCajaAbierta,
		OpenedAt:           time.Now(),
	}
	if req.DispositivoID != nil {
		did, err := uuid.Parse(*req.DispositivoID)
		if err != nil {
			return nil, fmt.Errorf("dispositivo_id invalido: %w", err)
		}
		sesion.DispositivoID = &did
	}
	if err := s.repo.CreateSesion(ctx, sesion); err != nil {
		if errors.Is(err, repository.ErrDuplicado) {
			// lost the race against a concurrent open
			return nil, ErrCajaYaAbierta
		}
		return nil, err
	}
	resp := sesionToResponse(sesion)
	return &resp, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Blind count: the expected amount is computed after the declaration arrives,
// under the session lock so no sale can attach mid-close.

func (s *cajaService) Cerrar(ctx context.Context, empleadoID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error) {
	sesionID, err := uuid.Parse(req.SesionCajaID)
	if err != nil {
		return nil, fmt.Errorf("sesion_caja_id invalido: %w", err)
	}

	var resp dto.CierreCajaResponse
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionByIDForUpdateTx(tx, sesionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrSesionNoEncontrada
			}
			return err
		}
		if !sesion.Abierta() {
			return ErrSesionCerrada
		}

		ventas, err := s.repo.SumVentasTx(tx, sesionID)
		if err != nil {
			return err
		}
		cierre := calcularCierre(sesion.MontoInicial, ventas, req.MontoDeclarado)

		// critico requires supervisor observations
		if cierre.clasificacion == "critico" && (req.Observaciones == nil || strings.TrimSpace(*req.Observaciones) == "") {
			return ErrObservacionesRequeridas
		}

		now := time.Now()
		declarado := req.MontoDeclarado
		sesion.MontoEsperado = &cierre.esperado
		sesion.MontoDeclarado = &declarado
		sesion.Desvio = &cierre.desvio
		sesion.DesvioPct = &cierre.pct
		sesion.ClasificacionDesvio = &cierre.clasificacion
		sesion.Observaciones = req.Observaciones
		sesion.EmpleadoCierreID = &empleadoID
		sesion.Estado = model.EstadoCajaCerrada
		sesion.ClosedAt = &now
		if err := s.repo.UpdateSesionTx(tx, sesion); err != nil {
			return err
		}

		resp = dto.CierreCajaResponse{
			SesionCajaID:   sesionID.String(),
			MontoEsperado:  cierre.esperado,
			MontoDeclarado: declarado,
			Desvio: dto.DesvioResponse{
				Monto:         cierre.desvio,
				Porcentaje:    cierre.pct,
				Clasificacion: cierre.clasificacion,
			},
			Estado: model.EstadoCajaCerrada,
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &resp, nil
}

type cierreCaja struct {
	esperado      decimal.Decimal
	desvio        decimal.Decimal
	pct           decimal.Decimal
	clasificacion string
}

// calcularCierre: esperado = inicial + ventas, desvio = declarado - esperado.
func calcularCierre(inicial, ventas, declarado decimal.Decimal) cierreCaja {
	esperado := inicial.Add(ventas)
	desvio := declarado.Sub(esperado)
	pct := decimal.Zero
	if !esperado.IsZero() {
		pct = desvio.Div(esperado).Mul(decimal.NewFromInt(100)).Round(2)
	} else if !desvio.IsZero() {
		pct = decimal.NewFromInt(100)
	}
	return cierreCaja{esperado: esperado, desvio: desvio, pct: pct, clasificacion: clasificarDesvio(pct)}
}

// ── ValidarAbiertaTx / ResolverSesionTx ──────────────────────────────────────

func (s *cajaService) ValidarAbiertaTx(tx *gorm.DB, sesionID uuid.UUID) (*model.SesionCaja, error) {
	sesion, err := s.repo.FindSesionByIDForUpdateTx(tx, sesionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSinSesionAbierta
		}
		return nil, err
	}
	if !sesion.Abierta() {
		return nil, ErrSinSesionAbierta
	}
	return sesion, nil
}

func (s *cajaService) ResolverSesionTx(tx *gorm.DB, sesionID *uuid.UUID, dispositivoID uuid.UUID) (*model.SesionCaja, error) {
	if sesionID != nil {
		return s.ValidarAbiertaTx(tx, *sesionID)
	}

	propias, err := s.repo.ListSesionesAbiertasTx(tx, &dispositivoID)
	if err != nil {
		return nil, err
	}
	if len(propias) == 1 {
		return s.ValidarAbiertaTx(tx, propias[0].ID)
	}
	if len(propias) > 1 {
		return nil, fmt.Errorf("%w: el dispositivo tiene %d cajas abiertas", ErrSinSesionAbierta, len(propias))
	}

	abiertas, err := s.repo.ListSesionesAbiertasTx(tx, nil)
	if err != nil {
		return nil, err
	}
	if len(abiertas) != 1 {
		if len(abiertas) > 1 {
			return nil, fmt.Errorf("%w: hay %d cajas abiertas, indique sesion_caja_id", ErrSinSesionAbierta, len(abiertas))
		}
		return nil, ErrSinSesionAbierta
	}
	return s.ValidarAbiertaTx(tx, abiertas[0].ID)
}

func (s *cajaService) RegistrarMovimientoVentaTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return s.repo.CreateMovimientoTx(tx, m)
}

// ── Reporte / listados ────────────────────────────────────────────────────────

func (s *cajaService) ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, sesionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSesionNoEncontrada
		}
		return nil, err
	}
	return s.buildReporte(ctx, sesion)
}

func (s *cajaService) ListarAbiertas(ctx context.Context) ([]dto.SesionCajaResponse, error) {
	sesiones, err := s.repo.ListSesionesAbiertas(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SesionCajaResponse, 0, len(sesiones))
	for i := range sesiones {
		out = append(out, sesionToResponse(&sesiones[i]))
	}
	return out, nil
}

func (s *cajaService) Historial(ctx context.Context, page, limit int) (*dto.HistorialCajaResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	sesiones, total, err := s.repo.ListSesiones(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ReporteCajaResponse, 0, len(sesiones))
	for i := range sesiones {
		r, err := s.buildReporte(ctx, &sesiones[i])
		if err != nil {
			return nil, err
		}
		data = append(data, *r)
	}
	return &dto.HistorialCajaResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	one := decimal.NewFromInt(1)
	five := decimal.NewFromInt(5)
	switch {
	case abs.LessThanOrEqual(one):
		return "normal"
	case abs.LessThanOrEqual(five):
		return "advertencia"
	default:
		return "critico"
	}
}

func (s *cajaService) buildReporte(ctx context.Context, sesion *model.SesionCaja) (*dto.ReporteCajaResponse, error) {
	sums, err := s.repo.SumMovimientosByMetodo(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}

	cobrado := dto.MontosPorMetodo{
		Efectivo: sums[model.MetodoEfectivo],
		Tarjeta:  sums[model.MetodoTarjeta],
	}
	cobrado.Total = cobrado.Efectivo.Add(cobrado.Tarjeta)

	esperado := sesion.MontoInicial.Add(cobrado.Total)
	if sesion.MontoEsperado != nil {
		esperado = *sesion.MontoEsperado
	}

	reporte := &dto.ReporteCajaResponse{
		SesionCajaID:   sesion.ID.String(),
		NombreCaja:     sesion.NombreCaja,
		MontoInicial:   sesion.MontoInicial,
		Cobrado:        cobrado,
		MontoEsperado:  esperado,
		MontoDeclarado: sesion.MontoDeclarado,
		Estado:         sesion.Estado,
		Observaciones:  sesion.Observaciones,
		OpenedAt:       sesion.OpenedAt.Format(time.RFC3339),
	}

	if sesion.Desvio != nil && sesion.DesvioPct != nil && sesion.ClasificacionDesvio != nil {
		reporte.Desvio = &dto.DesvioResponse{
			Monto:         *sesion.Desvio,
			Porcentaje:    *sesion.DesvioPct,
			Clasificacion: *sesion.ClasificacionDesvio,
		}
	}

	if sesion.ClosedAt != nil {
		t := sesion.ClosedAt.Format(time.RFC3339)
		reporte.ClosedAt = &t
	}

	return reporte, nil
}

func sesionToResponse(s *model.SesionCaja) dto.SesionCajaResponse {
	resp := dto.SesionCajaResponse{
		ID:           s.ID.String(),
		NombreCaja:   s.NombreCaja,
		MontoInicial: s.MontoInicial,
		Estado:       s.Estado,
		OpenedAt:     s.OpenedAt.Format(time.RFC3339),
	}
	if s.DispositivoID != nil {
		id := s.DispositivoID.String()
		resp.DispositivoID = &id
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}
