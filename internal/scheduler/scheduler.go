package scheduler

import (
	"context"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/flags"
	"github.com/fleetwatch-dev/fleetwatch/internal/metrics"
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// lockKey guards a tick so overlapping scheduler processes do not scan
	// the same breached alerts at the same instant.
	lockKey = "fleetwatch:scheduler:escalation-lock"

	// scanBatchSize caps how many breached alerts one tick processes.
	scanBatchSize = 500
)

// Scheduler periodically scans alerts whose ack or resolve deadline has
// elapsed and advances them one escalation tier. Per-alert failures are
// isolated; the loop never dies with its work.
type Scheduler struct {
	db       *gorm.DB
	rdb      *redis.Client
	engine   *attention.Engine
	flags    *flags.Service
	logger   *zap.Logger
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(db *gorm.DB, rdb *redis.Client, engine *attention.Engine, flagSvc *flags.Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		db:       db,
		rdb:      rdb,
		engine:   engine,
		flags:    flagSvc,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the escalation loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("Starting escalation scheduler", zap.Duration("interval", s.interval))

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.Tick(s.ctx)
			}
		}
	}()
}

// Stop cancels the loop.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping escalation scheduler")
	s.cancel()
}

// Tick runs one escalation pass. Safe to call concurrently: the redis lease
// serializes passes, and the engine's compare-and-swap guard makes a
// double-processed alert escalate at most once per breached deadline.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.acquireLease(ctx) {
		s.logger.Debug("Escalation pass skipped, another scheduler holds the lease")
		return
	}
	defer s.releaseLease(ctx)

	companyIDs, err := s.flags.CompaniesWithFlag(ctx, types.FlagAttentionEngine)
	if err != nil {
		s.logger.Error("Failed to list attention-engine companies", zap.Error(err))
		return
	}
	if len(companyIDs) == 0 {
		metrics.SchedulerTicksTotal.Inc()
		return
	}

	alerts, err := s.scanBreached(companyIDs)
	if err != nil {
		s.logger.Error("Breached-alert scan failed", zap.Error(err))
		return
	}

	companies, err := s.loadCompanies(companyIDs)
	if err != nil {
		s.logger.Error("Failed to load companies for escalation", zap.Error(err))
		return
	}

	for _, alert := range alerts {
		company, ok := companies[alert.CompanyID]
		if !ok {
			continue
		}

		if err := s.engine.Escalate(alert, company); err != nil {
			s.logger.Error("Escalation failed",
				zap.Uint("alert_id", alert.ID),
				zap.Error(err),
			)
			continue
		}
	}

	metrics.SchedulerTicksTotal.Inc()

	if len(alerts) > 0 {
		s.logger.Info("Escalation pass complete", zap.Int("breached", len(alerts)))
	}
}

// scanBreached selects open alerts past their ack deadline and acked alerts
// past their resolve deadline, most urgent first. Escalated alerts stay in
// scope: Escalate re-arms the breached deadline, so an escalated alert only
// reappears here once its fresh window lapses and is then advanced another
// tier.
func (s *Scheduler) scanBreached(companyIDs []uint) ([]models.Alert, error) {
	now := time.Now().UTC()

	var alerts []models.Alert
	err := s.db.
		Where("company_id IN ?", companyIDs).
		Where("attention_state IN ?", []string{types.AttentionOpen, types.AttentionAcked, types.AttentionEscalated}).
		Where("(acked_at IS NULL AND ack_due_at < ?) OR (acked_at IS NOT NULL AND resolved_at IS NULL AND resolve_due_at < ?)", now, now).
		Limit(scanBatchSize).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}

	attention.SortByAttentionPriority(alerts)
	return alerts, nil
}

func (s *Scheduler) loadCompanies(ids []uint) (map[uint]models.Company, error) {
	var companies []models.Company
	if err := s.db.Where("id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Company, len(companies))
	for _, company := range companies {
		byID[company.ID] = company
	}

	return byID, nil
}

// acquireLease takes the tick lock for slightly less than one interval. A
// missing redis client degrades to lockless operation; the engine guards
// still prevent double increments.
func (s *Scheduler) acquireLease(ctx context.Context) bool {
	if s.rdb == nil {
		return true
	}

	ttl := s.interval - time.Second
	if ttl <= 0 {
		ttl = s.interval
	}

	ok, err := s.rdb.SetNX(ctx, lockKey, "1", ttl).Result()
	if err != nil {
		s.logger.Warn("Scheduler lease acquisition failed, proceeding without it", zap.Error(err))
		return true
	}

	return ok
}

func (s *Scheduler) releaseLease(ctx context.Context) {
	if s.rdb == nil {
		return
	}

	if err := s.rdb.Del(ctx, lockKey).Err(); err != nil {
		s.logger.Warn("Scheduler lease release failed", zap.Error(err))
	}
}
