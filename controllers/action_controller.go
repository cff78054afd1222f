package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/utils"
)

// ActionController lets administrators tune the XP action catalog at
// runtime. Changes are persisted and the in-memory catalog reloaded.
type ActionController struct {
	db      *gorm.DB
	catalog *gamification.Catalog
}

// NewActionController creates a new ActionController instance.
func NewActionController(db *gorm.DB, catalog *gamification.Catalog) *ActionController {
	return &ActionController{db: db, catalog: catalog}
}

// ListActions returns every configured XP action.
func (a *ActionController) ListActions(ctx *gin.Context) {
	var actions []models.Action
	if err := a.db.Order("`key` ASC").Find(&actions).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50095, "failed to list actions")
		return
	}
	utils.Success(ctx, gin.H{"items": actions})
}

// UpdateAction changes points or daily cap for one action key and
// reloads the catalog so new awards pick up the values immediately.
func (a *ActionController) UpdateAction(ctx *gin.Context) {
	key := strings.TrimSpace(ctx.Param("key"))
	if key == "" {
		utils.Error(ctx, http.StatusBadRequest, 40095, "invalid action key")
		return
	}

	var req struct {
		Points   *int `json:"points"`
		DailyCap *int `json:"daily_cap"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40096, "invalid request payload")
		return
	}

	updates := map[string]interface{}{}
	if req.Points != nil {
		if *req.Points <= 0 {
			utils.Error(ctx, http.StatusBadRequest, 40097, "points must be positive")
			return
		}
		updates["points"] = *req.Points
	}
	if req.DailyCap != nil {
		if *req.DailyCap < 0 {
			utils.Error(ctx, http.StatusBadRequest, 40098, "daily cap cannot be negative")
			return
		}
		updates["daily_cap"] = *req.DailyCap
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40099, "nothing to update")
		return
	}

	res := a.db.Model(&models.Action{}).Where("`key` = ?", key).Updates(updates)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50096, "failed to update action")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40495, "action not found")
		return
	}

	if err := a.catalog.Reload(a.db); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50097, "failed to reload action catalog")
		return
	}

	var action models.Action
	if err := a.db.Where("`key` = ?", key).First(&action).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50096, "failed to update action")
		return
	}
	utils.Success(ctx, gin.H{"action": action})
}
