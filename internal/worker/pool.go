package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueSyncReintento = "jobs:sync_reintento"

	JobSyncReintento = "sync_reintento"

	// maxJobAttempts bounds how often a failing job is re-queued before it
	// is parked in the DLQ.
	maxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes the payload of one job type.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueReintentoSync pushes an operator-triggered replay of pending sales.
func (d *Dispatcher) EnqueueReintentoSync(ctx context.Context, payload ReintentoJobPayload) (string, error) {
	return d.enqueue(ctx, QueueSyncReintento, JobSyncReintento, payload)
}

// DLQ returns the newest parked replay entries and the total parked.
func (d *Dispatcher) DLQ(ctx context.Context, limit int64) ([]DLQEntry, int64, error) {
	total, err := DLQLength(ctx, d.rdb, QueueSyncReintento)
	if err != nil {
		return nil, 0, err
	}
	entries, err := ListDLQ(ctx, d.rdb, QueueSyncReintento, limit)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	job := Job{ID: uuid.NewString(), Type: jobType, Payload: data}
	return job.ID, push(ctx, d.rdb, queue, job)
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers map[string]Handler) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, handlers)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, handlers map[string]Handler) {
	queues := []string{QueueSyncReintento}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: BRPOP failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

// processJob runs the handler for the job type. A failing job is re-queued
// until maxJobAttempts, then moved to the DLQ.
func processJob(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		if rdb != nil {
			SendToDLQ(ctx, rdb, queue, "desconocido", json.RawMessage(fmt.Sprintf("%q", raw)), "payload ilegible: "+err.Error(), 0)
		}
		return
	}

	h, ok := handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		if rdb != nil {
			SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "tipo de job sin handler", job.Attempts)
		}
		return
	}

	job.Attempts++
	logger := log.With().Str("job_id", job.ID).Str("type", job.Type).Int("attempt", job.Attempts).Logger()
	logger.Info().Msg("processing job")

	if err := h.Process(ctx, job.Payload); err != nil {
		if rdb == nil {
			logger.Error().Err(err).Msg("job failed")
			return
		}
		if job.Attempts >= maxJobAttempts {
			SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
			return
		}
		logger.Warn().Err(err).Msg("job failed, re-queued")
		if perr := push(ctx, rdb, queue, job); perr != nil {
			logger.Error().Err(perr).Msg("could not re-queue job")
		}
	}
}
