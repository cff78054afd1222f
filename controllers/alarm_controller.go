package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/utils"
)

// AlarmController manages CRUD operations for alarms.
type AlarmController struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewAlarmController creates a new AlarmController instance.
func NewAlarmController(db *gorm.DB, bus *events.Bus) *AlarmController {
	return &AlarmController{db: db, bus: bus}
}

var validRepeatDays = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

func validRepeatMask(mask string) bool {
	if mask == "" {
		return true
	}
	for _, d := range strings.Split(mask, ",") {
		if !validRepeatDays[strings.TrimSpace(d)] {
			return false
		}
	}
	return true
}

// CreateAlarm persists a new alarm and publishes the creation event.
func (a *AlarmController) CreateAlarm(ctx *gin.Context) {
	var req struct {
		Label      string    `json:"label"`
		RingAt     time.Time `json:"ring_at" binding:"required"`
		RepeatDays string    `json:"repeat_days"`
		Enabled    *bool     `json:"enabled"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	mask := strings.ToLower(strings.TrimSpace(req.RepeatDays))
	if !validRepeatMask(mask) {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid repeat_days")
		return
	}

	alarm := models.Alarm{
		UserID:     userID,
		Label:      utils.Sanitize(strings.TrimSpace(req.Label)),
		RingAt:     req.RingAt,
		RepeatDays: mask,
		Enabled:    true,
	}
	if req.Enabled != nil {
		alarm.Enabled = *req.Enabled
	}
	if err := a.db.Create(&alarm).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to create alarm")
		return
	}

	a.bus.Publish(ctx.Request.Context(), events.AlarmCreated{UserID: userID, AlarmID: alarm.ID})
	utils.Success(ctx, gin.H{"alarm": alarm})
}

// ListAlarms returns all of the caller's alarms ordered by ring time.
func (a *AlarmController) ListAlarms(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var alarms []models.Alarm
	if err := a.db.Where("user_id = ?", userID).Order("ring_at ASC").Find(&alarms).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list alarms")
		return
	}
	utils.Success(ctx, gin.H{"items": alarms})
}

// UpdateAlarm applies a partial update to one of the caller's alarms.
func (a *AlarmController) UpdateAlarm(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid alarm id")
		return
	}

	var req struct {
		Label      *string    `json:"label"`
		RingAt     *time.Time `json:"ring_at"`
		RepeatDays *string    `json:"repeat_days"`
		Enabled    *bool      `json:"enabled"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}

	var alarm models.Alarm
	if err := a.db.Where("id = ? AND user_id = ?", id, userID).First(&alarm).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40450, "alarm not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to load alarm")
		return
	}

	updates := map[string]interface{}{}
	if req.Label != nil {
		updates["label"] = utils.Sanitize(strings.TrimSpace(*req.Label))
	}
	if req.RingAt != nil {
		updates["ring_at"] = *req.RingAt
	}
	if req.RepeatDays != nil {
		mask := strings.ToLower(strings.TrimSpace(*req.RepeatDays))
		if !validRepeatMask(mask) {
			utils.Error(ctx, http.StatusBadRequest, 40051, "invalid repeat_days")
			return
		}
		updates["repeat_days"] = mask
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40053, "nothing to update")
		return
	}

	if err := a.db.Model(&alarm).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to update alarm")
		return
	}
	utils.Success(ctx, gin.H{"alarm": alarm})
}

// DeleteAlarm soft-deletes one of the caller's alarms.
func (a *AlarmController) DeleteAlarm(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid alarm id")
		return
	}

	res := a.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Alarm{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to delete alarm")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40450, "alarm not found")
		return
	}
	utils.Success(ctx, gin.H{"message": "alarm deleted"})
}
