package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/bienesraices/internal/notifications"
	"github.com/geocoder89/bienesraices/internal/observability"
	"github.com/geocoder89/bienesraices/internal/queue/outbox"
)

type Queue interface {
	Dequeue(ctx context.Context, wait time.Duration) (notifications.Envelope, error)
	DeadLetter(ctx context.Context, env notifications.Envelope, cause error) error
	Ping(ctx context.Context) error
}

// deadLetterTimeout bounds the dead-letter push, which outlives a cancelled run.
const deadLetterTimeout = 2 * time.Second

type Config struct {
	WorkerID string
	// how long one blocking pop waits before checking ctx again
	PollWait time.Duration
	// budget for a single send
	SendTimeout time.Duration
}

// Worker drains the mail outbox. A failed send is dead-lettered, never retried.
type Worker struct {
	cfg      Config
	queue    Queue
	notifier notifications.Notifier
	stats    *observability.DeliveryStats
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, queue Queue, notifier notifications.Notifier, stats *observability.DeliveryStats, log *slog.Logger) *Worker {
	if cfg.PollWait <= 0 {
		cfg.PollWait = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if stats == nil {
		stats = observability.NewDeliveryStats()
	}

	return &Worker{
		cfg:      cfg,
		queue:    queue,
		notifier: notifier,
		stats:    stats,
		log:      log.With("worker_id", cfg.WorkerID),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil
		default:
		}

		_, err := w.ProcessOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			w.log.Error("outbox read failed", "err", err)

			// avoid spinning while redis is unavailable
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.PollWait):
			}
		}
	}
}

// ProcessOne handles at most one envelope. It reports whether one was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	env, err := w.queue.Dequeue(ctx, w.cfg.PollWait)
	if err != nil {
		if errors.Is(err, outbox.ErrEmpty) {
			return false, nil
		}
		if errors.Is(err, outbox.ErrInvalidEnvelope) {
			w.log.Warn("dropping malformed outbox entry", "err", err)
			return true, nil
		}
		return false, err
	}

	w.stats.IncClaimed()
	start := time.Now()

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	err = notifications.Dispatch(sendCtx, w.notifier, env.Kind, env.Input)
	cancel()

	w.stats.ObserveDuration(time.Since(start))

	if err != nil {
		w.log.Error("email send failed", "envelope_id", env.ID, "kind", env.Kind, "err", err)

		dlCtx, dlCancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
		if dlErr := w.queue.DeadLetter(dlCtx, env, err); dlErr != nil {
			w.log.Error("dead-letter failed", "envelope_id", env.ID, "err", dlErr)
		}
		dlCancel()
		w.stats.IncDeadLettered()
		return true, nil
	}

	w.stats.IncSent()
	w.log.Info("email sent", "envelope_id", env.ID, "kind", env.Kind)

	return true, nil
}

func (w *Worker) Stats() observability.DeliveryStatsSnapshot {
	return w.stats.Snapshot()
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
