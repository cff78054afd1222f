package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/models"
)

const (
	// MetaUpdateQueue is the queue name for deferred meta processing.
	MetaUpdateQueue = "meta_updates"
	// metaUpdateDelay coalesces rapid repeated edits of the same meta.
	metaUpdateDelay    = time.Second
	actionCompleteMeta = "complete_meta"
)

// MetaUpdateRetryDelays is the bounded backoff schedule for the queue.
var MetaUpdateRetryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// ProcessMetaUpdate re-checks a meta after its update request finished and
// awards completion XP. The synchronous request path already persisted the
// update, so the job never writes business fields back; it only reads the
// current row and decides whether an award is due.
type ProcessMetaUpdate struct {
	MetaID  uint
	Payload models.MetaUpdate
	UserID  uint

	db      *gorm.DB
	awarder *gamification.Awarder
	rdb     *redis.Client
	logger  *zap.SugaredLogger
}

// Name identifies the job in queue logs.
func (j *ProcessMetaUpdate) Name() string { return "process_meta_update" }

// Run executes one attempt. A missing meta is a benign race (deleted between
// enqueue and processing) and ends quietly; database errors propagate so the
// queue retries them.
func (j *ProcessMetaUpdate) Run(ctx context.Context) error {
	defer j.releaseInFlight(ctx)

	j.logger.Infow("processing meta update", "meta", j.MetaID, "user", j.UserID)

	var meta models.Meta
	if err := j.db.WithContext(ctx).First(&meta, j.MetaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			j.logger.Infow("meta gone before processing, skipping", "meta", j.MetaID)
			return nil
		}
		return err
	}

	if !meta.Completed() {
		j.logger.Debugw("meta no longer completed, no award", "meta", j.MetaID, "status", meta.Status)
		return nil
	}

	// claim the award; the guarded update makes it at most once per meta
	// even when several jobs for the same completion run concurrently
	claim := j.db.WithContext(ctx).Model(&models.Meta{}).
		Where("id = ? AND xp_awarded = ?", j.MetaID, false).
		Update("xp_awarded", true)
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		j.logger.Debugw("meta completion already rewarded", "meta", j.MetaID)
		return nil
	}

	var objetivo models.Objetivo
	if err := j.db.WithContext(ctx).First(&objetivo, meta.ObjetivoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			j.logger.Warnw("meta has no parent objetivo, no award", "meta", j.MetaID, "objetivo", meta.ObjetivoID)
			return nil
		}
		j.releaseClaim(ctx)
		return err
	}

	awarded, err := j.awarder.AwardToUser(ctx, objetivo.UserID, actionCompleteMeta, fmt.Sprintf("meta:%d", j.MetaID))
	if err != nil {
		// give the claim back so the retry attempt can award again
		j.releaseClaim(ctx)
		return err
	}

	j.logger.Infow("meta update processed", "meta", j.MetaID, "awarded", awarded)
	return nil
}

func (j *ProcessMetaUpdate) releaseClaim(ctx context.Context) {
	if err := j.db.WithContext(ctx).Model(&models.Meta{}).
		Where("id = ?", j.MetaID).
		Update("xp_awarded", false).Error; err != nil {
		j.logger.Errorw("failed to release award claim", "meta", j.MetaID, "err", err)
	}
}

// releaseInFlight clears the enqueue dedup key so later completions of a
// reopened meta can schedule again. Best effort.
func (j *ProcessMetaUpdate) releaseInFlight(ctx context.Context) {
	if j.rdb == nil {
		return
	}
	if err := j.rdb.Del(ctx, inFlightKey(j.MetaID)).Err(); err != nil {
		j.logger.Debugw("failed to clear in-flight key", "meta", j.MetaID, "err", err)
	}
}

func inFlightKey(metaID uint) string {
	return fmt.Sprintf("queue:%s:inflight:%d", MetaUpdateQueue, metaID)
}
