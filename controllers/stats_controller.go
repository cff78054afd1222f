package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/utils"
)

// StatsController reports per-user productivity counters.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats aggregates entity counts and recent XP for the caller.
func (s *StatsController) GetStats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	counts := gin.H{}
	type countQuery struct {
		name  string
		model interface{}
	}
	for _, q := range []countQuery{
		{"notes", &models.Note{}},
		{"alarms", &models.Alarm{}},
		{"events", &models.CalendarEvent{}},
		{"objetivos", &models.Objetivo{}},
	} {
		var n int64
		if err := s.db.Model(q.model).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50100, "failed to compute stats")
			return
		}
		counts[q.name] = n
	}

	var completedObjetivos int64
	if err := s.db.Model(&models.Objetivo{}).
		Where("user_id = ? AND status = ?", userID, models.MetaStatusCompletada).
		Count(&completedObjetivos).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50100, "failed to compute stats")
		return
	}
	counts["objetivos_completed"] = completedObjetivos

	var completedMetas int64
	if err := s.db.Model(&models.Meta{}).
		Joins("JOIN objetivos ON objetivos.id = metas.objetivo_id AND objetivos.deleted_at IS NULL").
		Where("objetivos.user_id = ? AND metas.status = ?", userID, models.MetaStatusCompletada).
		Count(&completedMetas).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50100, "failed to compute stats")
		return
	}
	counts["metas_completed"] = completedMetas

	var weeklyXP int64
	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := s.db.Model(&models.XPTransaction{}).
		Joins("JOIN accounts ON accounts.id = xp_transactions.account_id").
		Where("accounts.user_id = ? AND xp_transactions.created_at >= ?", userID, weekAgo).
		Select("COALESCE(SUM(xp_transactions.points), 0)").
		Scan(&weeklyXP).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50100, "failed to compute stats")
		return
	}

	utils.Success(ctx, gin.H{
		"counts":    counts,
		"weekly_xp": weeklyXP,
	})
}
