// Package jobs is a minimal DB-backed queue over the jobs/failed_jobs
// tables. Verification emails go through it so request handlers never block
// on SMTP.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"portalsalud/internal/models"
)

const (
	// TypeVerificationEmail asks the worker to send a signed verification
	// link to a user.
	TypeVerificationEmail = "verification_email"

	maxAttempts  = 3
	pollInterval = 5 * time.Second
)

// Payload is the JSON body of every job row.
type Payload struct {
	Type   string `json:"type"`
	UserID uint   `json:"userId,omitempty"`
}

type Queue struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func New(db *gorm.DB, lg *zap.SugaredLogger) *Queue {
	return &Queue{db: db, lg: lg}
}

// Enqueue adds a job to the default queue, available immediately.
func (q *Queue) Enqueue(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return q.db.Create(&models.Job{
		Queue:       "default",
		Payload:     string(body),
		AvailableAt: time.Now(),
	}).Error
}

// Handler processes one decoded payload.
type Handler func(ctx context.Context, p Payload) error

// Work polls for available jobs until ctx is cancelled. Jobs that keep
// failing are moved to failed_jobs with the last error.
func (q *Queue) Work(ctx context.Context, handle Handler) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			processed, err := q.runNext(ctx, handle)
			if err != nil {
				q.lg.Errorw("job queue poll failed", "error", err)
				break
			}
			if !processed {
				break
			}
		}
	}
}

// runNext claims and runs the oldest available job. Returns false when the
// queue is drained.
func (q *Queue) runNext(ctx context.Context, handle Handler) (bool, error) {
	var job models.Job
	err := q.db.WithContext(ctx).
		Where("available_at <= ?", time.Now()).
		Order("id").
		First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var p Payload
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
		q.fail(&job, "malformed payload: "+err.Error())
		return true, nil
	}

	if err := handle(ctx, p); err != nil {
		job.Attempts++
		if job.Attempts >= maxAttempts {
			q.fail(&job, err.Error())
			return true, nil
		}
		// Back off before the retry becomes visible again.
		q.db.Model(&job).Updates(map[string]interface{}{
			"attempts":     job.Attempts,
			"available_at": time.Now().Add(time.Duration(job.Attempts) * time.Minute),
		})
		return true, nil
	}

	q.db.Delete(&models.Job{}, job.ID)
	return true, nil
}

func (q *Queue) fail(job *models.Job, reason string) {
	q.db.Create(&models.FailedJob{
		Queue:     job.Queue,
		Payload:   job.Payload,
		Exception: reason,
		FailedAt:  time.Now(),
	})
	q.db.Delete(&models.Job{}, job.ID)
	q.lg.Errorw("job failed permanently", "job_id", job.ID, "reason", reason)
}
