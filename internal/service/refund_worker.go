package service

import (
	"context"
	"fmt"
	"time"

	"debatebet/internal/logger"
)

// DefaultRefundInterval is how often the worker sweeps refundable debates
const DefaultRefundInterval = time.Minute

// RefundWorker pushes outstanding refunds of refundable debates on behalf of
// the moderator, so abandoned debates settle without user action.
type RefundWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	engine   *Engine
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
}

// NewRefundWorker creates a worker that runs every interval
func NewRefundWorker(engine *Engine, interval time.Duration) *RefundWorker {
	if interval <= 0 {
		interval = DefaultRefundInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefundWorker{
		ctx:      ctx,
		cancel:   cancel,
		engine:   engine,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per tick
func (w *RefundWorker) Start() {
	logger.Debug(logger.System, "refund_worker_started", fmt.Sprintf("interval=%v", w.interval))

	w.ticker = time.NewTicker(w.interval)
	w.RunOnce(w.ctx)

	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.ticker.C:
				w.RunOnce(w.ctx)
			case <-w.ctx.Done():
				logger.Debug(logger.System, "refund_worker_stopped", "")
				return
			}
		}
	}()
}

// Stop stops the worker and waits for the loop to exit
func (w *RefundWorker) Stop() {
	if w.ticker == nil {
		return
	}
	w.ticker.Stop()
	w.cancel()
	<-w.done
}

// RunOnce processes refunds for every refundable debate that still holds
// stakes and returns the number of buckets settled. A failing debate is
// logged and skipped.
func (w *RefundWorker) RunOnce(ctx context.Context) int {
	pending, err := w.engine.PendingRefunds(ctx)
	if err != nil {
		logger.Debug(logger.System, "refund_worker_query_failed", fmt.Sprintf("error=%s", err.Error()))
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	logger.Debug(logger.System, "refund_worker_pending", fmt.Sprintf("debates=%d", len(pending)))

	settled := 0
	call := From(w.engine.Moderator())
	for _, p := range pending {
		n, err := w.engine.ProcessRefunds(ctx, call, p.DebateID)
		if err != nil {
			logger.Debug(logger.System, "refund_worker_process_failed", fmt.Sprintf("debate_id=%d amount=%s error=%s", p.DebateID, p.Amount, err.Error()))
			continue
		}
		settled += n
		logger.Debug(logger.System, "refund_worker_processed", fmt.Sprintf("debate_id=%d refunds=%d", p.DebateID, n))
	}
	return settled
}
