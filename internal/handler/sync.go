package handler

import (
	"net/http"

	"clubpos/internal/apierror"
	"clubpos/internal/dto"
	"clubpos/internal/middleware"
	"clubpos/internal/service"
	"clubpos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SyncHandler serves device sync uploads and the operator view of the
// retry ledger. dispatcher may be nil, in which case replays run inline.
type SyncHandler struct {
	svc        service.SyncService
	dispatcher *worker.Dispatcher
}

func NewSyncHandler(svc service.SyncService, dispatcher *worker.Dispatcher) *SyncHandler {
	return &SyncHandler{svc: svc, dispatcher: dispatcher}
}

// Sync godoc
// @Summary Sube ventas registradas sin conexion
// @Description Cada venta se procesa por separado y devuelve SUCCESS, DUPLICATE o ERROR.
// @Tags dispositivo
// @Accept json
// @Produce json
// @Security DeviceAuth
// @Param body body dto.SyncRequest true "Lote de ventas offline"
// @Success 200 {object} dto.SyncResponse
// @Failure 401 {object} apierror.APIError
// @Failure 413 {object} apierror.APIError
// @Router /v1/dispositivo/sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	dispositivoID := middleware.GetDeviceClaims(c).ID()

	var req dto.SyncRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SyncBatch(c.Request.Context(), dispositivoID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarPendientes godoc
// @Summary Lista el ledger de ventas offline
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param dispositivo_id query string false "Filtrar por dispositivo"
// @Param estado query string false "pendiente | sincronizada"
// @Param page query int false "Pagina"
// @Param limit query int false "Tamano de pagina"
// @Success 200 {object} dto.VentaPendienteListResponse
// @Router /v1/sync/pendientes [get]
func (h *SyncHandler) ListarPendientes(c *gin.Context) {
	var filter dto.VentaPendienteFilter
	if !bindQuery(c, &filter) {
		return
	}
	if filter.DispositivoID != "" {
		if _, err := uuid.Parse(filter.DispositivoID); err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("dispositivo_id invalido"))
			return
		}
	}
	resp, err := h.svc.ListarPendientes(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reintentar godoc
// @Summary Reintenta las ventas offline pendientes
// @Description Con Redis disponible el reintento se encola (202); sin Redis corre en linea (200).
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ReintentarRequest false "Filtro opcional"
// @Success 200 {object} dto.ReintentoResponse
// @Success 202 {object} dto.ReintentoResponse
// @Router /v1/sync/reintentar [post]
func (h *SyncHandler) Reintentar(c *gin.Context) {
	var req dto.ReintentarRequest
	if c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	if h.dispatcher != nil {
		jobID, err := h.dispatcher.EnqueueReintentoSync(c.Request.Context(), worker.ReintentoJobPayload{
			DispositivoID: req.DispositivoID,
			Limite:        req.Limite,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.ReintentoResponse{Encolado: true, JobID: jobID})
		return
	}

	var dispositivoID *uuid.UUID
	if req.DispositivoID != nil {
		id, err := uuid.Parse(*req.DispositivoID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("dispositivo_id invalido"))
			return
		}
		dispositivoID = &id
	}
	resultados, err := h.svc.ReintentarPendientes(c.Request.Context(), dispositivoID, req.Limite)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReintentoResponse{Procesadas: len(resultados), Resultados: resultados})
}

// ListarDLQ godoc
// @Summary Lista las ventas offline que agotaron sus reintentos
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximo de entradas"
// @Success 200 {object} dto.DLQResponse
// @Router /v1/sync/dlq [get]
func (h *SyncHandler) ListarDLQ(c *gin.Context) {
	if h.dispatcher == nil {
		c.JSON(http.StatusOK, dto.DLQResponse{Data: []dto.DLQEntryResponse{}})
		return
	}
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	entries, total, err := h.dispatcher.DLQ(c.Request.Context(), int64(limit))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.DLQEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.DLQEntryResponse{
			JobType:  e.JobType,
			Payload:  e.Payload,
			Reason:   e.Reason,
			FailedAt: e.FailedAt,
			Attempts: e.Attempts,
		})
	}
	c.JSON(http.StatusOK, dto.DLQResponse{Data: out, Total: total})
}
