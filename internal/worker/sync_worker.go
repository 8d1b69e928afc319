package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"clubpos/internal/dto"
	"clubpos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReintentoJobPayload is the job envelope sent to QueueSyncReintento.
type ReintentoJobPayload struct {
	DispositivoID *string `json:"dispositivo_id,omitempty"`
	Limite        int     `json:"limite"`
}

// Reintentador is the part of the sync service the background jobs need.
type Reintentador interface {
	ReintentarPendientes(ctx context.Context, dispositivoID *uuid.UUID, limite int) ([]dto.ResultadoSync, error)
	DescartarAgotadas(ctx context.Context, limite int) ([]model.VentaPendiente, error)
}

// SyncReintentoWorker replays pending offline sales on operator request.
type SyncReintentoWorker struct {
	svc Reintentador
}

func NewSyncReintentoWorker(svc Reintentador) *SyncReintentoWorker {
	return &SyncReintentoWorker{svc: svc}
}

// Process returns an error only when the replay itself could not run; sales
// that fail again are already recorded on the retry ledger.
func (w *SyncReintentoWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReintentoJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("sync_worker: payload invalido: %w", err)
	}

	var dispositivoID *uuid.UUID
	if payload.DispositivoID != nil {
		id, err := uuid.Parse(*payload.DispositivoID)
		if err != nil {
			return fmt.Errorf("sync_worker: dispositivo_id invalido: %w", err)
		}
		dispositivoID = &id
	}

	resultados, err := w.svc.ReintentarPendientes(ctx, dispositivoID, payload.Limite)
	if err != nil {
		return err
	}
	ok, dup, fallidas := contarResultados(resultados)
	log.Info().
		Int("procesadas", len(resultados)).
		Int("ok", ok).
		Int("duplicadas", dup).
		Int("fallidas", fallidas).
		Msg("sync_worker: reintento completado")
	return nil
}

func contarResultados(rs []dto.ResultadoSync) (ok, dup, fallidas int) {
	for _, r := range rs {
		switch r.Resultado {
		case dto.ResultadoSuccess:
			ok++
		case dto.ResultadoDuplicate:
			dup++
		default:
			fallidas++
		}
	}
	return ok, dup, fallidas
}
