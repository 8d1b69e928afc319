package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"clubpos/internal/dto"
	"clubpos/internal/model"
	"clubpos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LineaStock is one product quantity to take out of stock.
type LineaStock struct {
	ProductoID uuid.UUID
	Cantidad   int
}

// InventarioService owns every mutation of stock_actual.
type InventarioService interface {
	// DescontarStockTx must run inside the sale transaction. Lines for the same
	// product are summed and products are decremented in id order so two
	// concurrent sales never lock rows in opposite orders. Any shortfall returns
	// ErrStockInsuficiente and leaves the caller to roll back.
	DescontarStockTx(tx *gorm.DB, lineas []LineaStock, ventaID uuid.UUID, motivo string) error
	AjustarStock(ctx context.Context, productoID uuid.UUID, req dto.AjustarStockRequest) (*dto.AjusteStockResponse, error)
	ListarProductos(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error)
	ListarMovimientos(ctx context.Context, productoID uuid.UUID, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error)
}

type inventarioService struct {
	repo    repository.ProductoRepository
	movRepo repository.MovimientoStockRepository
}

func NewInventarioService(repo repository.ProductoRepository, movRepo repository.MovimientoStockRepository) InventarioService {
	return &inventarioService{repo: repo, movRepo: movRepo}
}

func (s *inventarioService) DescontarStockTx(tx *gorm.DB, lineas []LineaStock, ventaID uuid.UUID, motivo string) error {
	for _, l := range agruparLineas(lineas) {
		anterior, nuevo, err := s.repo.DescontarStockTx(tx, l.ProductoID, l.Cantidad)
		if err != nil {
			if errors.Is(err, repository.ErrStockNoDisponible) {
				return fmt.Errorf("%w: producto %s", ErrStockInsuficiente, l.ProductoID)
			}
			return err
		}
		ref := ventaID
		mov := &model.MovimientoStock{
			ProductoID:    l.ProductoID,
			Tipo:          model.MovimientoVenta,
			Cantidad:      -l.Cantidad,
			StockAnterior: anterior,
			StockNuevo:    nuevo,
			Motivo:        motivo,
			VentaID:       &ref,
		}
		if err := s.movRepo.CreateTx(tx, mov); err != nil {
			return err
		}
	}
	return nil
}

// agruparLineas sums quantities per product and sorts by product id.
func agruparLineas(lineas []LineaStock) []LineaStock {
	totales := make(map[uuid.UUID]int, len(lineas))
	for _, l := range lineas {
		totales[l.ProductoID] += l.Cantidad
	}
	out := make([]LineaStock, 0, len(totales))
	for id, cant := range totales {
		out = append(out, LineaStock{ProductoID: id, Cantidad: cant})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductoID.String() < out[j].ProductoID.String()
	})
	return out
}

// AjustarStock applies a manual replenishment or correction.
func (s *inventarioService) AjustarStock(ctx context.Context, productoID uuid.UUID, req dto.AjustarStockRequest) (*dto.AjusteStockResponse, error) {
	if _, err := s.repo.FindByID(ctx, productoID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProductoNoEncontrado
		}
		return nil, err
	}

	var resp dto.AjusteStockResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		anterior, nuevo, err := s.repo.AjustarStockTx(tx, productoID, req.Delta)
		if err != nil {
			if errors.Is(err, repository.ErrStockNoDisponible) {
				return ErrAjusteDejaStockNegativo
			}
			return err
		}
		resp = dto.AjusteStockResponse{ProductoID: productoID.String(), StockAnterior: anterior, StockNuevo: nuevo}
		return s.movRepo.CreateTx(tx, &model.MovimientoStock{
			ProductoID:    productoID,
			Tipo:          model.MovimientoAjuste,
			Cantidad:      req.Delta,
			StockAnterior: anterior,
			StockNuevo:    nuevo,
			Motivo:        req.Motivo,
		})
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *inventarioService) ListarProductos(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	productos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductoResponse, 0, len(productos))
	for i := range productos {
		data = append(data, productoToResponse(&productos[i]))
	}
	totalPages := int(total) / filter.Limit
	if int(total)%filter.Limit != 0 {
		totalPages++
	}
	return &dto.ProductoListResponse{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

func (s *inventarioService) ListarMovimientos(ctx context.Context, productoID uuid.UUID, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error) {
	if _, err := s.repo.FindByID(ctx, productoID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProductoNoEncontrado
		}
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	movs, total, err := s.movRepo.ListByProducto(ctx, productoID, filter.Tipo, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovimientoStockResponse, 0, len(movs))
	for _, m := range movs {
		r := dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			Tipo:          m.Tipo,
			Cantidad:      m.Cantidad,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		}
		if m.VentaID != nil {
			id := m.VentaID.String()
			r.VentaID = &id
		}
		data = append(data, r)
	}
	return &dto.MovimientoStockListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:          p.ID.String(),
		Nombre:      p.Nombre,
		Categoria:   p.Categoria,
		PrecioVenta: p.PrecioVenta,
		StockActual: p.StockActual,
		StockMinimo: p.StockMinimo,
		Activo:      p.Activo,
	}
}
