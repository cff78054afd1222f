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

// MetaController manages metas (sub-goals) nested under an objetivo.
type MetaController struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewMetaController creates a new MetaController instance.
func NewMetaController(db *gorm.DB, bus *events.Bus) *MetaController {
	return &MetaController{db: db, bus: bus}
}

// parentObjetivo loads the objetivo from the route and checks ownership.
func (m *MetaController) parentObjetivo(ctx *gin.Context, userID uint) (*models.Objetivo, bool) {
	objetivoID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid objetivo id")
		return nil, false
	}
	var objetivo models.Objetivo
	if err := m.db.Where("id = ? AND user_id = ?", objetivoID, userID).First(&objetivo).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40480, "objetivo not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to load objetivo")
		return nil, false
	}
	return &objetivo, true
}

// CreateMeta adds a meta to an objetivo owned by the caller.
func (m *MetaController) CreateMeta(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	objetivo, ok := m.parentObjetivo(ctx, userID)
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required,min=1"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40081, "invalid request payload")
		return
	}
	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40082, "title cannot be empty")
		return
	}

	meta := models.Meta{
		ObjetivoID:  objetivo.ID,
		Title:       title,
		Description: utils.Sanitize(req.Description),
		Status:      models.MetaStatusPendiente,
	}
	if err := m.db.Create(&meta).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to create meta")
		return
	}
	utils.Success(ctx, gin.H{"meta": meta})
}

// ListMetas returns all metas of an objetivo.
func (m *MetaController) ListMetas(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	objetivo, ok := m.parentObjetivo(ctx, userID)
	if !ok {
		return
	}

	var metas []models.Meta
	if err := m.db.Where("objetivo_id = ?", objetivo.ID).Order("created_at ASC").Find(&metas).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to list metas")
		return
	}
	utils.Success(ctx, gin.H{"items": metas})
}

// UpdateMeta applies a partial update to a meta. When the status
// transitions to completada the completion event is published; the XP
// award itself happens later on the background queue.
func (m *MetaController) UpdateMeta(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	objetivo, ok := m.parentObjetivo(ctx, userID)
	if !ok {
		return
	}
	metaID, ok := parseUintParam(ctx, "meta_id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40083, "invalid meta id")
		return
	}

	var req models.MetaUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40081, "invalid request payload")
		return
	}

	var meta models.Meta
	if err := m.db.Where("id = ? AND objetivo_id = ?", metaID, objetivo.ID).First(&meta).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40481, "meta not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50083, "failed to load meta")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40082, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = utils.Sanitize(*req.Description)
	}
	completing := false
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !models.ValidMetaStatus(status) {
			utils.Error(ctx, http.StatusBadRequest, 40084, "invalid status")
			return
		}
		updates["status"] = status
		if status == models.MetaStatusCompletada && !meta.Completed() {
			completing = true
			now := time.Now()
			updates["completed_at"] = &now
		}
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40085, "nothing to update")
		return
	}

	if err := m.db.Model(&meta).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50084, "failed to update meta")
		return
	}

	if completing {
		m.bus.Publish(ctx.Request.Context(), events.MetaCompleted{
			UserID:  userID,
			MetaID:  meta.ID,
			Payload: req,
		})
	}
	utils.Success(ctx, gin.H{"meta": meta})
}

// DeleteMeta removes a meta from an objetivo.
func (m *MetaController) DeleteMeta(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	objetivo, ok := m.parentObjetivo(ctx, userID)
	if !ok {
		return
	}
	metaID, ok := parseUintParam(ctx, "meta_id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40083, "invalid meta id")
		return
	}

	res := m.db.Where("id = ? AND objetivo_id = ?", metaID, objetivo.ID).Delete(&models.Meta{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50085, "failed to delete meta")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40481, "meta not found")
		return
	}
	utils.Success(ctx, gin.H{"message": "meta deleted"})
}
