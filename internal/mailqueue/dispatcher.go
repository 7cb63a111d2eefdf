package mailqueue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/mail"
	"projecttracker/pkg/metrics"
)

// Dispatcher drains the queue into a mail.Sender on a ticker. Failed sends are
// not retried; only items abandoned in processing are claimed again.
type Dispatcher struct {
	queue      Queue
	sender     mail.Sender
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
}

func NewDispatcher(queue Queue, sender mail.Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:      queue,
		sender:     sender,
		logger:     logger,
		interval:   10 * time.Second,
		batchSize:  20,
		staleAfter: 10 * time.Minute,
	}
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// WithStaleAfter sets how long an item may sit in processing before the
// dispatcher assumes its worker died and queues it again.
func (d *Dispatcher) WithStaleAfter(staleAfter time.Duration) *Dispatcher {
	if staleAfter > 0 {
		d.staleAfter = staleAfter
	}
	return d
}

// Start blocks until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting mail dispatcher",
		zap.String("provider", d.sender.Name()),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Mail dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce sends one batch and returns how many were sent and failed.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (sent, failed int) {
	if n, err := d.queue.RequeueStale(ctx, d.staleAfter); err != nil {
		d.logger.Error("Failed to requeue stale emails", zap.Error(err))
	} else if n > 0 {
		d.logger.Warn("Requeued emails stuck in processing", zap.Int("count", n))
	}

	items, err := d.queue.ClaimQueued(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to claim queued emails", zap.Error(err))
		return 0, 0
	}
	if len(items) == 0 {
		return 0, 0
	}

	for _, it := range items {
		log := d.logger.With(
			zap.Int64("email_id", it.ID),
			zap.String("dedup_key", it.DedupKey),
		)

		res, err := d.sender.Send(ctx, it.Message)
		if err != nil {
			failed++
			metrics.IncrementMailProcessed("failed")
			log.Error("Queued email failed", zap.Error(err))
			if err := d.queue.MarkFailed(ctx, it.ID, err.Error()); err != nil {
				log.Error("Failed to mark email as failed", zap.Error(err))
			}
			continue
		}

		sent++
		metrics.IncrementMailProcessed("sent")
		if err := d.queue.MarkSent(ctx, it.ID, res); err != nil {
			log.Error("Failed to mark email as sent", zap.Error(err))
			continue
		}
		log.Debug("Queued email sent", zap.String("message_id", res.MessageID))
	}

	d.logger.Info("Mail batch processed",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	return sent, failed
}
