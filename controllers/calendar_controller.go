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

// CalendarController manages CRUD operations for calendar events.
type CalendarController struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewCalendarController creates a new CalendarController instance.
func NewCalendarController(db *gorm.DB, bus *events.Bus) *CalendarController {
	return &CalendarController{db: db, bus: bus}
}

// CreateEvent persists a new calendar event and publishes the creation event.
func (c *CalendarController) CreateEvent(ctx *gin.Context) {
	var req struct {
		Title       string    `json:"title" binding:"required,min=1"`
		Description string    `json:"description"`
		StartsAt    time.Time `json:"starts_at" binding:"required"`
		EndsAt      time.Time `json:"ends_at"`
		AllDay      bool      `json:"all_day"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	if !req.EndsAt.IsZero() && req.EndsAt.Before(req.StartsAt) {
		utils.Error(ctx, http.StatusBadRequest, 40061, "ends_at must not be before starts_at")
		return
	}

	event := models.CalendarEvent{
		UserID:      userID,
		Title:       utils.Sanitize(strings.TrimSpace(req.Title)),
		Description: utils.Sanitize(req.Description),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		AllDay:      req.AllDay,
	}
	if event.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40062, "title cannot be empty")
		return
	}
	if err := c.db.Create(&event).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to create event")
		return
	}

	c.bus.Publish(ctx.Request.Context(), events.CalendarCreated{UserID: userID, EventID: event.ID})
	utils.Success(ctx, gin.H{"event": event})
}

// ListEvents returns the caller's events, optionally bounded to a window
// via ?from=RFC3339&to=RFC3339.
func (c *CalendarController) ListEvents(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	query := c.db.Where("user_id = ?", userID).Order("starts_at ASC")
	if v := strings.TrimSpace(ctx.Query("from")); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40063, "invalid from timestamp")
			return
		}
		query = query.Where("starts_at >= ?", from)
	}
	if v := strings.TrimSpace(ctx.Query("to")); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40064, "invalid to timestamp")
			return
		}
		query = query.Where("starts_at < ?", to)
	}

	var items []models.CalendarEvent
	if err := query.Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list events")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// UpdateEvent applies a partial update to one of the caller's events.
func (c *CalendarController) UpdateEvent(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40065, "invalid event id")
		return
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		StartsAt    *time.Time `json:"starts_at"`
		EndsAt      *time.Time `json:"ends_at"`
		AllDay      *bool      `json:"all_day"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	var event models.CalendarEvent
	if err := c.db.Where("id = ? AND user_id = ?", id, userID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40460, "event not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load event")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40062, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = utils.Sanitize(*req.Description)
	}
	if req.StartsAt != nil {
		updates["starts_at"] = *req.StartsAt
	}
	if req.EndsAt != nil {
		updates["ends_at"] = *req.EndsAt
	}
	if req.AllDay != nil {
		updates["all_day"] = *req.AllDay
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40066, "nothing to update")
		return
	}

	if err := c.db.Model(&event).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to update event")
		return
	}
	utils.Success(ctx, gin.H{"event": event})
}

// DeleteEvent soft-deletes one of the caller's events.
func (c *CalendarController) DeleteEvent(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40065, "invalid event id")
		return
	}

	res := c.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.CalendarEvent{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to delete event")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40460, "event not found")
		return
	}
	utils.Success(ctx, gin.H{"message": "event deleted"})
}
