package handler

import (
	"errors"
	"net/http"

	"clubpos/internal/apierror"
	"clubpos/internal/dto"
	"clubpos/internal/middleware"
	"clubpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DispositivosHandler struct{ svc service.DispositivoService }

func NewDispositivosHandler(svc service.DispositivoService) *DispositivosHandler {
	return &DispositivosHandler{svc: svc}
}

// ── Registry (admin) ──────────────────────────────────────────────────────────

// Crear godoc
// @Summary Registra un dispositivo
// @Tags dispositivos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearDispositivoRequest true "Datos del dispositivo"
// @Success 201 {object} dto.DispositivoResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/dispositivos [post]
func (h *DispositivosHandler) Crear(c *gin.Context) {
	var req dto.CrearDispositivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary Lista dispositivos
// @Tags dispositivos
// @Produce json
// @Security BearerAuth
// @Param incluir_inactivos query bool false "Incluir desactivados"
// @Success 200 {array} dto.DispositivoResponse
// @Router /v1/dispositivos [get]
func (h *DispositivosHandler) Listar(c *gin.Context) {
	resp, err := h.svc.Listar(c.Request.Context(), c.Query("incluir_inactivos") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Obtener godoc
// @Summary Detalle de un dispositivo
// @Tags dispositivos
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Success 200 {object} dto.DispositivoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/dispositivos/{id} [get]
func (h *DispositivosHandler) Obtener(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Actualizar godoc
// @Summary Actualiza nombre, tipo o configuracion de un dispositivo
// @Tags dispositivos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Param body body dto.ActualizarDispositivoRequest true "Campos a modificar"
// @Success 200 {object} dto.DispositivoResponse
// @Router /v1/dispositivos/{id} [put]
func (h *DispositivosHandler) Actualizar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarDispositivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EstablecerPIN godoc
// @Summary Configura el PIN rapido del dispositivo
// @Tags dispositivos
// @Accept json
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Param body body dto.EstablecerPINRequest true "PIN"
// @Success 204
// @Router /v1/dispositivos/{id}/pin [put]
func (h *DispositivosHandler) EstablecerPIN(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.EstablecerPINRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.EstablecerPIN(c.Request.Context(), id, req.PIN); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AsignarEmpleado godoc
// @Summary Vincula un empleado al dispositivo
// @Tags dispositivos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Param body body dto.AsignarEmpleadoRequest true "Empleado y tipo de asignacion"
// @Success 200 {object} dto.DispositivoResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/dispositivos/{id}/empleado [put]
func (h *DispositivosHandler) AsignarEmpleado(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AsignarEmpleadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AsignarEmpleado(c.Request.Context(), id, uuid.MustParse(req.EmpleadoID), req.Permanente)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Desvincular godoc
// @Summary Desvincula el empleado del dispositivo
// @Tags dispositivos
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Param forzar query bool false "Quitar tambien una asignacion permanente"
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Router /v1/dispositivos/{id}/empleado [delete]
func (h *DispositivosHandler) Desvincular(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Desvincular(c.Request.Context(), id, c.Query("forzar") == "true"); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Desactivar godoc
// @Summary Desactiva un dispositivo
// @Tags dispositivos
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Success 204
// @Router /v1/dispositivos/{id} [delete]
func (h *DispositivosHandler) Desactivar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Desactivar(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reactivar godoc
// @Summary Reactiva un dispositivo
// @Tags dispositivos
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Success 204
// @Router /v1/dispositivos/{id}/reactivar [patch]
func (h *DispositivosHandler) Reactivar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Reactivar(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerarPairing godoc
// @Summary Genera token y codigo de vinculacion de un solo uso
// @Tags dispositivos
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del dispositivo"
// @Success 201 {object} dto.PairingResponse
// @Router /v1/dispositivos/{id}/pairing [post]
func (h *DispositivosHandler) GenerarPairing(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GenerarPairingToken(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Authenticator (public) ────────────────────────────────────────────────────

// CanjearPairing godoc
// @Summary Vincula un terminal con token o codigo
// @Tags dispositivos
// @Accept json
// @Produce json
// @Param body body dto.CanjearPairingRequest true "Token o codigo de 6 digitos"
// @Success 200 {object} dto.DeviceLoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/dispositivos/pairing/canjear [post]
func (h *DispositivosHandler) CanjearPairing(c *gin.Context) {
	var req dto.CanjearPairingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CanjearPairing(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LoginPIN godoc
// @Summary Login de un terminal ya vinculado con su PIN
// @Tags dispositivos
// @Accept json
// @Produce json
// @Param body body dto.LoginPINRequest true "Dispositivo y PIN"
// @Success 200 {object} dto.DeviceLoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/dispositivos/login-pin [post]
func (h *DispositivosHandler) LoginPIN(c *gin.Context) {
	var req dto.LoginPINRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.LoginConPIN(c.Request.Context(), uuid.MustParse(req.DispositivoID), req.PIN)
	if err != nil {
		// not found and bad PIN look the same to the caller
		if errors.Is(err, service.ErrDispositivoNoEncontrado) {
			c.JSON(http.StatusUnauthorized, apierror.New(service.ErrPINInvalido.Error()))
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// QuickStart godoc
// @Summary Inicio rapido en una tablet compartida
// @Tags dispositivos
// @Accept json
// @Produce json
// @Param body body dto.QuickStartRequest true "Email o DNI del empleado"
// @Success 200 {object} dto.DeviceLoginResponse
// @Failure 401 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/dispositivos/quick-start [post]
func (h *DispositivosHandler) QuickStart(c *gin.Context) {
	var req dto.QuickStartRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.QuickStart(c.Request.Context(), req.Identificador)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Heartbeat godoc
// @Summary Señal de vida del terminal
// @Tags dispositivo
// @Security DeviceAuth
// @Success 204
// @Router /v1/dispositivo/heartbeat [post]
func (h *DispositivosHandler) Heartbeat(c *gin.Context) {
	claims := middleware.GetDeviceClaims(c)
	if err := h.svc.Heartbeat(c.Request.Context(), claims.ID()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
