package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/crediario-erp/crediario/internal/credit"
	"github.com/crediario-erp/crediario/internal/platform/cache"
	"github.com/crediario-erp/crediario/internal/shared"
)

// InterestRecalcJob runs the moratory-interest batch under a redis lock so
// overlapping workers skip instead of double-accruing.
type InterestRecalcJob struct {
	service *credit.Service
	redis   *redis.Client
	logger  *slog.Logger
	lockTTL time.Duration
}

// NewInterestRecalcJob constructs the batch job.
func NewInterestRecalcJob(service *credit.Service, redisClient *redis.Client, logger *slog.Logger, lockTTL time.Duration) *InterestRecalcJob {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &InterestRecalcJob{service: service, redis: redisClient, logger: logger, lockTTL: lockTTL}
}

// Handle processes one TaskInterestRecalc task.
func (j *InterestRecalcJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload InterestRecalcPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	asOf := payload.ScheduledFor
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	if j.redis != nil {
		key := shared.InterestRecalcLockKey(asOf.Format("2006-01-02"))
		ok, err := cache.AcquireLock(ctx, j.redis, key, j.lockTTL)
		if err != nil {
			j.logger.Warn("interest recalc lock", slog.Any("error", err))
		} else if !ok {
			j.logger.Info("interest recalc already running, skipping", slog.String("key", key))
			return nil
		} else {
			defer func() {
				if err := cache.ReleaseLock(context.WithoutCancel(ctx), j.redis, key); err != nil {
					j.logger.Warn("interest recalc unlock", slog.Any("error", err))
				}
			}()
		}
	}

	result, err := j.service.RecalculateOverdueInterest(ctx, asOf)
	if err != nil {
		return err
	}
	j.logger.Info("interest recalc batch finished",
		slog.Int("touched", result.Touched),
		slog.Int("failed", result.Failed),
		slog.String("total_new_interest", result.TotalNewInterest.StringFixed(2)),
	)
	return nil
}
