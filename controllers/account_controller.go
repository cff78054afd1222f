package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/utils"
)

// AccountController exposes the gamification state of the caller.
type AccountController struct {
	db *gorm.DB
}

// NewAccountController creates a new AccountController instance.
func NewAccountController(db *gorm.DB) *AccountController {
	return &AccountController{db: db}
}

// GetAccount returns the caller's XP, level, progress toward the next
// level and the most recent XP transactions.
func (a *AccountController) GetAccount(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var account models.Account
	if err := a.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40490, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50090, "failed to load account")
		return
	}

	var recent []models.XPTransaction
	if err := a.db.Where("account_id = ?", account.ID).
		Order("created_at DESC").Limit(20).
		Find(&recent).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50091, "failed to load xp history")
		return
	}

	utils.Success(ctx, gin.H{
		"total_xp":      account.TotalXP,
		"level":         account.Level,
		"next_level_xp": gamification.NextLevelXP(account.Level),
		"recent":        recent,
	})
}

// Leaderboard returns the top accounts ordered by total XP.
func (a *AccountController) Leaderboard(ctx *gin.Context) {
	type row struct {
		Username string `json:"username"`
		TotalXP  int64  `json:"total_xp"`
		Level    int    `json:"level"`
	}
	var rows []row
	if err := a.db.Model(&models.Account{}).
		Select("users.username, accounts.total_xp, accounts.level").
		Joins("JOIN users ON users.id = accounts.user_id AND users.deleted_at IS NULL").
		Order("accounts.total_xp DESC").
		Limit(50).
		Scan(&rows).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50092, "failed to load leaderboard")
		return
	}
	utils.Success(ctx, gin.H{"items": rows})
}
