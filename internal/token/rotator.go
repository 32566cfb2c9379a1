package token

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/models"
)

// DaemonInterval is the cadence of the standalone daemon. The scheduled
// variant runs on the scheduler's own granularity (1 minute at minimum).
const DaemonInterval = 30 * time.Second

// Rotator regenerates the digital token for every session-active user on a
// fixed cadence. It holds no state between cycles: the active set is
// re-queried at the top of each one, so a restarted process simply resumes.
type Rotator struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewRotator(db *gorm.DB, lg *zap.SugaredLogger) *Rotator {
	return &Rotator{db: db, lg: lg}
}

// RunCycle rotates every user with digital_token_active = true exactly once.
// Each write touches only digital_token and updated_at, scoped by id, so a
// stale in-memory copy of the row can never clobber the fresh value. A
// failure for one user is logged and does not stop the rest of the cycle.
// Returns the number of tokens rotated.
func (rt *Rotator) RunCycle(ctx context.Context) (int, error) {
	var ids []uint
	if err := rt.db.WithContext(ctx).Model(&models.User{}).
		Where("digital_token_active = ?", true).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	rotated := 0
	for _, id := range ids {
		err := rt.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"digital_token": Generate(),
				"updated_at":    time.Now(),
			}).Error
		if err != nil {
			rt.lg.Errorw("token rotation failed for user", "user_id", id, "error", err)
			continue
		}
		rotated++
	}
	return rotated, nil
}

// Run executes RunCycle every interval until ctx is cancelled. A failed
// cycle is logged and the loop sleeps into the next one.
func (rt *Rotator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		n, err := rt.RunCycle(ctx)
		if err != nil {
			rt.lg.Errorw("token rotation cycle failed", "error", err)
		} else if n > 0 {
			rt.lg.Infow("rotated digital tokens", "count", n, "took", time.Since(start).String())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
