package service

import (
	"context"

	"clubpos/internal/model"
	"clubpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Evento is the input to the audit recorder.
type Evento struct {
	Tipo          string
	DispositivoID *uuid.UUID
	EmpleadoID    *uuid.UUID
	Detalle       string
	Referencia    string
}

// AuditoriaService appends audit events. It never reads them back for
// presentation.
type AuditoriaService interface {
	// Registrar writes outside any transaction. Failures are logged and
	// swallowed so auditing never masks the outcome it describes.
	Registrar(ctx context.Context, e Evento)
	// RegistrarTx writes inside tx; an error aborts the caller's transaction.
	RegistrarTx(tx *gorm.DB, e Evento) error
}

type auditoriaService struct {
	repo repository.AuditoriaRepository
}

func NewAuditoriaService(repo repository.AuditoriaRepository) AuditoriaService {
	return &auditoriaService{repo: repo}
}

func (s *auditoriaService) Registrar(ctx context.Context, e Evento) {
	if err := s.repo.Create(ctx, toEventoModel(e)); err != nil {
		log.Warn().Err(err).Str("tipo", e.Tipo).Msg("auditoria: no se pudo registrar el evento")
	}
}

func (s *auditoriaService) RegistrarTx(tx *gorm.DB, e Evento) error {
	return s.repo.CreateTx(tx, toEventoModel(e))
}

func toEventoModel(e Evento) *model.EventoAuditoria {
	ev := &model.EventoAuditoria{
		Tipo:          e.Tipo,
		DispositivoID: e.DispositivoID,
		EmpleadoID:    e.EmpleadoID,
		Detalle:       e.Detalle,
	}
	if e.Referencia != "" {
		ref := e.Referencia
		ev.Referencia = &ref
	}
	return ev
}
