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

// ObjetivoController manages CRUD operations for objetivos (goals).
type ObjetivoController struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewObjetivoController creates a new ObjetivoController instance.
func NewObjetivoController(db *gorm.DB, bus *events.Bus) *ObjetivoController {
	return &ObjetivoController{db: db, bus: bus}
}

// CreateObjetivo persists a new objetivo and publishes the creation event.
func (o *ObjetivoController) CreateObjetivo(ctx *gin.Context) {
	var req struct {
		Title       string     `json:"title" binding:"required,min=1"`
		Description string     `json:"description"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40071, "title cannot be empty")
		return
	}

	objetivo := models.Objetivo{
		UserID:      userID,
		Title:       title,
		Description: utils.Sanitize(req.Description),
		Status:      models.MetaStatusPendiente,
		DueDate:     req.DueDate,
	}
	if err := o.db.Create(&objetivo).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to create objetivo")
		return
	}

	o.bus.Publish(ctx.Request.Context(), events.ObjetivoCreated{UserID: userID, ObjetivoID: objetivo.ID})
	utils.Success(ctx, gin.H{"objetivo": objetivo})
}

// ListObjetivos returns the caller's objetivos with their metas and a
// derived completion ratio.
func (o *ObjetivoController) ListObjetivos(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := o.db.Model(&models.Objetivo{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to count objetivos")
		return
	}

	var objetivos []models.Objetivo
	if err := o.db.Preload("Metas").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&objetivos).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to list objetivos")
		return
	}

	items := make([]gin.H, 0, len(objetivos))
	for i := range objetivos {
		items = append(items, objetivoWithProgress(&objetivos[i]))
	}

	utils.Success(ctx, gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

func objetivoWithProgress(obj *models.Objetivo) gin.H {
	completed := 0
	for _, m := range obj.Metas {
		if m.Completed() {
			completed++
		}
	}
	return gin.H{
		"objetivo":        obj,
		"metas_total":     len(obj.Metas),
		"metas_completed": completed,
	}
}

// GetObjetivo returns a single objetivo with its metas.
func (o *ObjetivoController) GetObjetivo(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40072, "invalid objetivo id")
		return
	}

	var objetivo models.Objetivo
	if err := o.db.Preload("Metas").Where("id = ? AND user_id = ?", id, userID).First(&objetivo).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40470, "objetivo not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to load objetivo")
		return
	}
	utils.Success(ctx, objetivoWithProgress(&objetivo))
}

// UpdateObjetivo applies a partial update. A transition to completada
// publishes the completion event so XP can be awarded.
func (o *ObjetivoController) UpdateObjetivo(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40072, "invalid objetivo id")
		return
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}

	var objetivo models.Objetivo
	if err := o.db.Where("id = ? AND user_id = ?", id, userID).First(&objetivo).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40470, "objetivo not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to load objetivo")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40071, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = utils.Sanitize(*req.Description)
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	completing := false
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !models.ValidMetaStatus(status) {
			utils.Error(ctx, http.StatusBadRequest, 40073, "invalid status")
			return
		}
		updates["status"] = status
		completing = status == models.MetaStatusCompletada && objetivo.Status != models.MetaStatusCompletada
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40074, "nothing to update")
		return
	}

	if err := o.db.Model(&objetivo).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50074, "failed to update objetivo")
		return
	}

	if completing {
		o.bus.Publish(ctx.Request.Context(), events.ObjetivoCompleted{UserID: userID, ObjetivoID: objetivo.ID})
	}
	utils.Success(ctx, gin.H{"objetivo": objetivo})
}

// DeleteObjetivo soft-deletes an objetivo together with its metas.
func (o *ObjetivoController) DeleteObjetivo(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40072, "invalid objetivo id")
		return
	}

	err := o.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Objetivo{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("objetivo_id = ?", id).Delete(&models.Meta{}).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40470, "objetivo not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50075, "failed to delete objetivo")
		return
	}
	utils.Success(ctx, gin.H{"message": "objetivo deleted"})
}
