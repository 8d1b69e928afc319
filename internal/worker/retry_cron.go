package worker

// retry_cron.go
// Background goroutine that periodically replays pending offline sales whose
// next attempt is due. Rows that used up SYNC_RETRY_MAX_ATTEMPTS are taken off
// the schedule and parked in the DLQ for an operator.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 50
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	Sync      Reintentador
	RDB       *redis.Client // nil disables the DLQ
	Interval  time.Duration
	BatchSize int
}

// StartRetryCron launches a background goroutine that ticks every Interval
// and replays due pending sales. It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = retryTickInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = retryBatchSize
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	agotadas, err := cfg.Sync.DescartarAgotadas(ctx, cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to unschedule exhausted sales")
	}
	for _, p := range agotadas {
		ultimo := ""
		if p.UltimoError != nil {
			ultimo = *p.UltimoError
		}
		log.Error().
			Str("uuid_cliente", p.UUID).
			Str("dispositivo_id", p.DispositivoID.String()).
			Int("intentos", p.Intentos).
			Msg("retry_cron: max retries exceeded, moving to DLQ")
		if cfg.RDB != nil {
			payload, _ := json.Marshal(map[string]string{
				"venta_pendiente_id": p.ID.String(),
				"uuid_cliente":       p.UUID,
				"dispositivo_id":     p.DispositivoID.String(),
			})
			SendToDLQ(ctx, cfg.RDB, QueueSyncReintento, JobSyncReintento, payload,
				fmt.Sprintf("max retries (%d) exceeded: %s", p.Intentos, ultimo), p.Intentos)
		}
	}

	resultados, err := cfg.Sync.ReintentarPendientes(ctx, nil, cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending sales")
		return
	}
	if len(resultados) == 0 {
		return
	}
	ok, dup, fallidas := contarResultados(resultados)
	log.Info().
		Int("procesadas", len(resultados)).
		Int("ok", ok).
		Int("duplicadas", dup).
		Int("fallidas", fallidas).
		Msg("retry_cron: pending sales replayed")
}
