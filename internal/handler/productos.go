package handler

import (
	"net/http"

	"clubpos/internal/dto"
	"clubpos/internal/service"

	"github.com/gin-gonic/gin"
)

// catalogoLimite caps the snapshot a device downloads for offline use.
const catalogoLimite = 500

type ProductosHandler struct{ svc service.InventarioService }

func NewProductosHandler(svc service.InventarioService) *ProductosHandler {
	return &ProductosHandler{svc: svc}
}

// Listar godoc
// @Summary Lista productos
// @Tags productos
// @Produce json
// @Security BearerAuth
// @Param nombre query string false "Filtro por nombre"
// @Param categoria query string false "Filtro por categoria"
// @Param activo query string false "'' activos, false inactivos, all todos"
// @Success 200 {object} dto.ProductoListResponse
// @Router /v1/productos [get]
func (h *ProductosHandler) Listar(c *gin.Context) {
	var filter dto.ProductoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarProductos(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Catalogo godoc
// @Summary Catalogo de productos activos para uso sin conexion
// @Tags dispositivo
// @Produce json
// @Security DeviceAuth
// @Success 200 {object} dto.ProductoListResponse
// @Router /v1/dispositivo/productos [get]
func (h *ProductosHandler) Catalogo(c *gin.Context) {
	resp, err := h.svc.ListarProductos(c.Request.Context(), dto.ProductoFilter{Page: 1, Limit: catalogoLimite})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AjustarStock godoc
// @Summary Ajuste manual de stock
// @Tags productos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de producto"
// @Param body body dto.AjustarStockRequest true "Delta y motivo"
// @Success 200 {object} dto.AjusteStockResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/productos/{id}/stock [patch]
func (h *ProductosHandler) AjustarStock(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AjustarStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjustarStock(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movimientos godoc
// @Summary Historial de movimientos de stock de un producto
// @Tags productos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de producto"
// @Param tipo query string false "venta | ajuste_manual"
// @Param page query int false "Pagina"
// @Param limit query int false "Tamano de pagina"
// @Success 200 {object} dto.MovimientoStockListResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/productos/{id}/movimientos [get]
func (h *ProductosHandler) Movimientos(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var filter dto.MovimientoStockFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
