package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"clubpos/internal/config"
	"clubpos/internal/dto"
	"clubpos/internal/model"
	"clubpos/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

const (
	pairingCodigoIntentos = 5
	pinBcryptCost         = 10
)

// DispositivoService is both the device registry (admin side) and the device
// authenticator (public side). Every successful authentication ends with a
// device credential: an HS256 JWT carrying typ=device.
type DispositivoService interface {
	// Registry
	Crear(ctx context.Context, req dto.CrearDispositivoRequest) (*dto.DispositivoResponse, error)
	Listar(ctx context.Context, incluirInactivos bool) ([]dto.DispositivoResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.DispositivoResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarDispositivoRequest) (*dto.DispositivoResponse, error)
	EstablecerPIN(ctx context.Context, id uuid.UUID, pin string) error
	AsignarEmpleado(ctx context.Context, id, empleadoID uuid.UUID, permanente bool) (*dto.DispositivoResponse, error)
	Desvincular(ctx context.Context, id uuid.UUID, forzar bool) error
	Desactivar(ctx context.Context, id uuid.UUID) error
	Reactivar(ctx context.Context, id uuid.UUID) error
	GenerarPairingToken(ctx context.Context, id uuid.UUID) (*dto.PairingResponse, error)

	// Authenticator
	CanjearPairing(ctx context.Context, req dto.CanjearPairingRequest) (*dto.DeviceLoginResponse, error)
	LoginConPIN(ctx context.Context, dispositivoID uuid.UUID, pin string) (*dto.DeviceLoginResponse, error)
	QuickStart(ctx context.Context, identificador string) (*dto.DeviceLoginResponse, error)
	Heartbeat(ctx context.Context, dispositivoID uuid.UUID) error
}

type dispositivoService struct {
	repo         repository.DispositivoRepository
	empleadoRepo repository.EmpleadoRepository
	auditoria    AuditoriaService
	cfg          *config.Config
}

func NewDispositivoService(
	repo repository.DispositivoRepository,
	empleadoRepo repository.EmpleadoRepository,
	auditoria AuditoriaService,
	cfg *config.Config,
) DispositivoService {
	return &dispositivoService{repo: repo, empleadoRepo: empleadoRepo, auditoria: auditoria, cfg: cfg}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func (s *dispositivoService) Crear(ctx context.Context, req dto.CrearDispositivoRequest) (*dto.DispositivoResponse, error) {
	d := &model.Dispositivo{
		Nombre:               strings.TrimSpace(req.Nombre),
		Tipo:                 req.Tipo,
		ModoTabletCompartida: req.ModoTabletCompartida,
		Categorias:           jsonOrEmpty(req.Categorias),
		ConfigImpresora:      jsonOrEmpty(req.ConfigImpresora),
		Permisos:             jsonOrEmpty(req.Permisos),
		Activo:               true,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	resp := dispositivoToResponse(d)
	return &resp, nil
}

func (s *dispositivoService) Listar(ctx context.Context, incluirInactivos bool) ([]dto.DispositivoResponse, error) {
	dispositivos, err := s.repo.List(ctx, !incluirInactivos)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DispositivoResponse, 0, len(dispositivos))
	for i := range dispositivos {
		out = append(out, dispositivoToResponse(&dispositivos[i]))
	}
	return out, nil
}

func (s *dispositivoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.DispositivoResponse, error) {
	d, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dispositivoToResponse(d)
	return &resp, nil
}

func (s *dispositivoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarDispositivoRequest) (*dto.DispositivoResponse, error) {
	d, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Nombre != nil {
		d.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Tipo != nil {
		d.Tipo = *req.Tipo
	}
	if req.ModoTabletCompartida != nil {
		d.ModoTabletCompartida = *req.ModoTabletCompartida
	}
	if len(req.Categorias) > 0 {
		d.Categorias = datatypes.JSON(req.Categorias)
	}
	if len(req.ConfigImpresora) > 0 {
		d.ConfigImpresora = datatypes.JSON(req.ConfigImpresora)
	}
	if len(req.Permisos) > 0 {
		d.Permisos = datatypes.JSON(req.Permisos)
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	resp := dispositivoToResponse(d)
	return &resp, nil
}

func (s *dispositivoService) EstablecerPIN(ctx context.Context, id uuid.UUID, pin string) error {
	d, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), pinBcryptCost)
	if err != nil {
		return err
	}
	h := string(hash)
	d.PINHash = &h
	return s.repo.Update(ctx, d)
}

func (s *dispositivoService) AsignarEmpleado(ctx context.Context, id, empleadoID uuid.UUID, permanente bool) (*dto.DispositivoResponse, error) {
	d, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	emp, err := s.empleadoRepo.FindByID(ctx, empleadoID)
	if err != nil || !emp.Activo {
		return nil, ErrEmpleadoNoEncontrado
	}
	if permanente {
		if otro, err := s.repo.FindPermanentePorEmpleado(ctx, empleadoID); err == nil && otro.ID != d.ID {
			return nil, ErrEmpleadoYaAsignado
		}
	}

	d.EmpleadoAsignadoID = &empleadoID
	d.AsignacionPermanente = permanente
	d.EmpleadoAsignado = nil
	if err := s.repo.Update(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicado) {
			// uniq_empleado_asignacion_permanente caught a concurrent assignment
			return nil, ErrEmpleadoYaAsignado
		}
		return nil, err
	}
	d.EmpleadoAsignado = emp
	resp := dispositivoToResponse(d)
	return &resp, nil
}

func (s *dispositivoService) Desvincular(ctx context.Context, id uuid.UUID, forzar bool) error {
	d, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if d.AsignacionPermanente && !forzar {
		return ErrAsignacionPermanente
	}
	if err := s.repo.Desvincular(ctx, id, forzar); err != nil {
		if repository.IsNotFound(err) {
			return ErrAsignacionPermanente
		}
		return err
	}
	if d.EmpleadoAsignadoID != nil {
		s.auditoria.Registrar(ctx, Evento{
			Tipo:          model.EventoLogout,
			DispositivoID: &d.ID,
			EmpleadoID:    d.EmpleadoAsignadoID,
			Detalle:       "empleado desvinculado del dispositivo",
		})
	}
	return nil
}

func (s *dispositivoService) Desactivar(ctx context.Context, id uuid.UUID) error {
	return s.setActivo(ctx, id, false)
}

func (s *dispositivoService) Reactivar(ctx context.Context, id uuid.UUID) error {
	return s.setActivo(ctx, id, true)
}

func (s *dispositivoService) setActivo(ctx context.Context, id uuid.UUID, activo bool) error {
	d, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	d.Activo = activo
	if !activo {
		// a deactivated device cannot be paired
		d.PairingToken, d.PairingCodigo, d.PairingExpiraEn = nil, nil, nil
	}
	return s.repo.Update(ctx, d)
}

// GenerarPairingToken replaces any previous pairing material on the device.
func (s *dispositivoService) GenerarPairingToken(ctx context.Context, id uuid.UUID) (*dto.PairingResponse, error) {
	d, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Activo {
		return nil, ErrDispositivoDesactivado
	}

	now := time.Now()
	expira := now.Add(time.Duration(s.cfg.PairingTTLMinutes) * time.Minute)
	if _, err := s.repo.LimpiarPairingsVencidos(ctx, now); err != nil {
		return nil, err
	}

	token, err := generarToken()
	if err != nil {
		return nil, err
	}
	var codigo string
	for intento := 0; intento < pairingCodigoIntentos; intento++ {
		codigo, err = generarCodigo()
		if err != nil {
			return nil, err
		}
		err = s.repo.AsignarPairing(ctx, id, token, codigo, expira)
		if !errors.Is(err, repository.ErrDuplicado) {
			break
		}
		log.Debug().Str("dispositivo_id", id.String()).Int("intento", intento+1).Msg("pairing: codigo en uso, regenerando")
	}
	if err != nil {
		return nil, fmt.Errorf("generando codigo de vinculacion: %w", err)
	}

	return &dto.PairingResponse{
		Token:         token,
		Codigo:        codigo,
		ExpiraEn:      expira.Format(time.RFC3339),
		EnlaceDirecto: s.enlaceDirecto(token),
	}, nil
}

func (s *dispositivoService) enlaceDirecto(token string) string {
	base := strings.TrimRight(s.cfg.PairingBaseURL, "/")
	return base + "/vincular?token=" + url.QueryEscape(token)
}

// ── Authenticator ─────────────────────────────────────────────────────────────

func (s *dispositivoService) CanjearPairing(ctx context.Context, req dto.CanjearPairingRequest) (*dto.DeviceLoginResponse, error) {
	columna, valor, metodo := "pairing_token", strings.TrimSpace(req.Token), "pairing_token"
	if valor == "" {
		columna, valor, metodo = "pairing_codigo", strings.TrimSpace(req.Codigo), "pairing_codigo"
	}
	if valor == "" {
		return nil, ErrPairingInvalidoOExpirado
	}

	d, err := s.repo.CanjearPairing(ctx, columna, valor, time.Now())
	if err != nil {
		if repository.IsNotFound(err) {
			loginsDispositivo.WithLabelValues(metodo, "fallido").Inc()
			s.auditoria.Registrar(ctx, Evento{
				Tipo:    model.EventoLoginFallido,
				Detalle: "vinculacion rechazada: " + metodo + " invalido o expirado",
			})
			return nil, ErrPairingInvalidoOExpirado
		}
		return nil, err
	}

	loginsDispositivo.WithLabelValues(metodo, "ok").Inc()
	s.auditoria.Registrar(ctx, Evento{
		Tipo:          model.EventoLogin,
		DispositivoID: &d.ID,
		EmpleadoID:    d.EmpleadoAsignadoID,
		Detalle:       "dispositivo vinculado por " + metodo,
	})
	return s.credencial(d)
}

func (s *dispositivoService) LoginConPIN(ctx context.Context, dispositivoID uuid.UUID, pin string) (*dto.DeviceLoginResponse, error) {
	fallo := func(motivo error, did *uuid.UUID) error {
		loginsDispositivo.WithLabelValues("pin", "fallido").Inc()
		s.auditoria.Registrar(ctx, Evento{
			Tipo:          model.EventoLoginFallido,
			DispositivoID: did,
			Detalle:       "login con PIN: " + motivo.Error(),
		})
		return motivo
	}

	d, err := s.repo.FindByID(ctx, dispositivoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fallo(ErrDispositivoNoEncontrado, nil)
		}
		return nil, err
	}
	if !d.Activo {
		return nil, fallo(ErrDispositivoDesactivado, &d.ID)
	}
	if d.PINHash == nil {
		return nil, fallo(ErrPINInvalido, &d.ID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*d.PINHash), []byte(pin)); err != nil {
		return nil, fallo(ErrPINInvalido, &d.ID)
	}

	now := time.Now()
	if err := s.repo.TouchUltimoAcceso(ctx, d.ID, now); err != nil {
		return nil, err
	}
	d.UltimoAcceso = &now

	loginsDispositivo.WithLabelValues("pin", "ok").Inc()
	s.auditoria.Registrar(ctx, Evento{
		Tipo:          model.EventoLogin,
		DispositivoID: &d.ID,
		EmpleadoID:    d.EmpleadoAsignadoID,
		Detalle:       "login con PIN",
	})
	return s.credencial(d)
}

// QuickStart binds an employee to a free shared terminal. Devices with a
// permanent assignment are never considered.
func (s *dispositivoService) QuickStart(ctx context.Context, identificador string) (*dto.DeviceLoginResponse, error) {
	emp, err := s.empleadoRepo.FindActivoByIdentificador(ctx, strings.TrimSpace(identificador))
	if err != nil {
		if repository.IsNotFound(err) {
			loginsDispositivo.WithLabelValues("quick_start", "fallido").Inc()
			s.auditoria.Registrar(ctx, Evento{
				Tipo:    model.EventoLoginFallido,
				Detalle: "quick start: empleado no encontrado",
			})
			return nil, ErrEmpleadoNoEncontrado
		}
		return nil, err
	}

	now := time.Now()
	// An employee who already holds a temporary binding keeps that device
	d, err := s.repo.FindTemporalPorEmpleado(ctx, emp.ID)
	if err == nil {
		if err := s.repo.TouchUltimoAcceso(ctx, d.ID, now); err != nil {
			return nil, err
		}
		d.UltimoAcceso = &now
	} else if repository.IsNotFound(err) {
		d, err = s.repo.ClaimDisponible(ctx, emp.ID, now)
		if err != nil {
			if repository.IsNotFound(err) {
				loginsDispositivo.WithLabelValues("quick_start", "sin_dispositivo").Inc()
				s.auditoria.Registrar(ctx, Evento{
					Tipo:       model.EventoLoginFallido,
					EmpleadoID: &emp.ID,
					Detalle:    "quick start: " + ErrSinDispositivoDisponible.Error(),
				})
				return nil, ErrSinDispositivoDisponible
			}
			return nil, err
		}
	} else {
		return nil, err
	}
	d.EmpleadoAsignado = emp

	loginsDispositivo.WithLabelValues("quick_start", "ok").Inc()
	s.auditoria.Registrar(ctx, Evento{
		Tipo:          model.EventoLogin,
		DispositivoID: &d.ID,
		EmpleadoID:    &emp.ID,
		Detalle:       "quick start",
	})
	return s.credencial(d)
}

func (s *dispositivoService) Heartbeat(ctx context.Context, dispositivoID uuid.UUID) error {
	return s.repo.TouchUltimoAcceso(ctx, dispositivoID, time.Now())
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *dispositivoService) find(ctx context.Context, id uuid.UUID) (*model.Dispositivo, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDispositivoNoEncontrado
		}
		return nil, err
	}
	return d, nil
}

func (s *dispositivoService) credencial(d *model.Dispositivo) (*dto.DeviceLoginResponse, error) {
	dur := time.Duration(s.cfg.DeviceTokenDays) * 24 * time.Hour
	claims := jwt.MapClaims{
		"dispositivo_id": d.ID.String(),
		"nombre":         d.Nombre,
		"tipo":           d.Tipo,
		"typ":            "device",
		"exp":            time.Now().Add(dur).Unix(),
		"iat":            time.Now().Unix(),
	}
	if d.EmpleadoAsignadoID != nil {
		claims["empleado_id"] = d.EmpleadoAsignadoID.String()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}
	return &dto.DeviceLoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(dur.Seconds()),
		Dispositivo: dispositivoToResponse(d),
		Config: dto.ConfigDispositivo{
			Categorias:      rawOrEmpty(d.Categorias),
			ConfigImpresora: rawOrEmpty(d.ConfigImpresora),
			Permisos:        rawOrEmpty(d.Permisos),
		},
	}, nil
}

// generarToken returns 32 random bytes hex-encoded (64 chars).
func generarToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generarCodigo returns a zero-padded 6-digit code.
func generarCodigo() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func jsonOrEmpty(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

func rawOrEmpty(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(j)
}

func dispositivoToResponse(d *model.Dispositivo) dto.DispositivoResponse {
	resp := dto.DispositivoResponse{
		ID:                   d.ID.String(),
		Nombre:               d.Nombre,
		Tipo:                 d.Tipo,
		AsignacionPermanente: d.AsignacionPermanente,
		ModoTabletCompartida: d.ModoTabletCompartida,
		TienePIN:             d.PINHash != nil,
		PairingPendiente:     d.PairingToken != nil && d.PairingExpiraEn != nil && d.PairingExpiraEn.After(time.Now()),
		Activo:               d.Activo,
	}
	if d.EmpleadoAsignadoID != nil {
		id := d.EmpleadoAsignadoID.String()
		resp.EmpleadoAsignadoID = &id
	}
	if d.EmpleadoAsignado != nil {
		nombre := d.EmpleadoAsignado.Nombre
		resp.EmpleadoAsignado = &nombre
	}
	if d.UltimoAcceso != nil {
		t := d.UltimoAcceso.Format(time.RFC3339)
		resp.UltimoAcceso = &t
	}
	if d.UltimaSincronizacion != nil {
		t := d.UltimaSincronizacion.Format(time.RFC3339)
		resp.UltimaSincronizacion = &t
	}
	return resp
}
