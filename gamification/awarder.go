package gamification

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/models"
)

// Awarder grants experience points to accounts. Configuration misses and
// daily-cap hits are reported as a false return, not an error; only
// persistence failures propagate so the deferred worker can retry them.
type Awarder struct {
	db      *gorm.DB
	catalog *Catalog
	limiter DailyLimiter
	logger  *zap.SugaredLogger
}

// NewAwarder wires an awarder with its catalog and daily limiter.
func NewAwarder(db *gorm.DB, catalog *Catalog, limiter DailyLimiter, logger *zap.SugaredLogger) *Awarder {
	return &Awarder{db: db, catalog: catalog, limiter: limiter, logger: logger}
}

// Award adds the action's point value to the account ledger and raises the
// level when the new total crosses a boundary. The XP increment is a
// database-side `total_xp = total_xp + n` so concurrent awards against the
// same account never lose updates.
func (a *Awarder) Award(ctx context.Context, accountID uint, actionKey, reference string) (bool, error) {
	action, ok := a.catalog.Lookup(actionKey)
	if !ok {
		a.logger.Warnw("xp action not in catalog", "action", actionKey)
		return false, nil
	}
	if !a.limiter.Allow(ctx, accountID, actionKey, action.DailyCap) {
		a.logger.Infow("xp daily cap reached", "account", accountID, "action", actionKey)
		return false, nil
	}

	var missing bool
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			UpdateColumn("total_xp", gorm.Expr("total_xp + ?", action.Points))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			missing = true
			return errAccountMissing
		}

		ledger := models.XPTransaction{
			AccountID: accountID,
			ActionKey: actionKey,
			Points:    action.Points,
			Reference: reference,
		}
		if err := tx.Create(&ledger).Error; err != nil {
			return err
		}

		var acct models.Account
		if err := tx.First(&acct, accountID).Error; err != nil {
			return err
		}
		if newLevel := Level(acct.TotalXP); newLevel > acct.Level {
			// the guard keeps a slower concurrent award from lowering a level
			// another one already raised
			if err := tx.Model(&models.Account{}).
				Where("id = ? AND level < ?", accountID, newLevel).
				UpdateColumn("level", newLevel).Error; err != nil {
				return err
			}
			a.logger.Infow("level up", "account", accountID, "level", newLevel, "total_xp", acct.TotalXP)
		}
		return nil
	})
	if err != nil {
		if missing {
			a.logger.Warnw("xp award for missing account", "account", accountID, "action", actionKey)
			return false, nil
		}
		return false, err
	}

	a.logger.Debugw("xp awarded", "account", accountID, "action", actionKey, "points", action.Points)
	return true, nil
}

var errAccountMissing = errors.New("account not found")

// AwardToUser resolves the user's account and awards against it.
func (a *Awarder) AwardToUser(ctx context.Context, userID uint, actionKey, reference string) (bool, error) {
	var acct models.Account
	err := a.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.logger.Warnw("user has no gamification account", "user", userID, "action", actionKey)
			return false, nil
		}
		return false, err
	}
	return a.Award(ctx, acct.ID, actionKey, reference)
}
