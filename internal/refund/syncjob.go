package refund

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SyncJob runs sync_refund_req on a schedule, mirroring reclamation.Job's
// cron-driven tick shape: the batch puller has the same periodic-maintenance
// texture as the reclamation sweep.
type SyncJob struct {
	mu      sync.Mutex
	service *Service
	logger  *zap.Logger
	cronJob *cron.Cron
}

func NewSyncJob(service *Service, logger *zap.Logger) *SyncJob {
	return &SyncJob{service: service, logger: logger}
}

// Tick pulls and merges pending refund requests once.
func (j *SyncJob) Tick(ctx context.Context) error {
	numOrders, numLines, err := j.service.SyncRefundRequests(ctx)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("refund sync tick complete",
			zap.Int("orders", numOrders), zap.Int("lines", numLines))
	}
	return nil
}

func (j *SyncJob) Start(schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cronJob = cron.New()
	_, err := j.cronJob.AddFunc(schedule, func() {
		if err := j.Tick(context.Background()); err != nil && j.logger != nil {
			j.logger.Error("refund sync tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	j.cronJob.Start()
	return nil
}

func (j *SyncJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cronJob != nil {
		j.cronJob.Stop()
	}
}
