package service

import (
	"context"
	"time"

	"backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

// SyncWorker drives the delivery queue on a fixed interval. One instance per
// process is enough; SKIP LOCKED claiming keeps extra instances harmless.
type SyncWorker struct {
	svc       SyncService
	interval  time.Duration
	batchSize int
	log       *logrus.Logger
}

func NewSyncWorker(svc SyncService, interval time.Duration, batchSize int) *SyncWorker {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if batchSize == 0 {
		batchSize = 20
	}
	return &SyncWorker{
		svc:       svc,
		interval:  interval,
		batchSize: batchSize,
		log:       logger.Get(),
	}
}

// Run blocks until ctx is cancelled, processing a batch per tick.
func (w *SyncWorker) Run(ctx context.Context) {
	w.log.WithField("interval", w.interval.String()).Info("sync worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sync worker stopped")
			return
		case <-ticker.C:
			processed, err := w.svc.ProcessBatch(ctx, w.batchSize)
			if err != nil {
				w.log.WithError(err).Error("sync batch failed")
				continue
			}
			if processed > 0 {
				w.log.WithField("processed", processed).Debug("sync batch done")
			}
		}
	}
}
