package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/utils"
)

// NoteController manages CRUD operations for notes.
type NoteController struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewNoteController creates a new NoteController instance.
func NewNoteController(db *gorm.DB, bus *events.Bus) *NoteController {
	return &NoteController{db: db, bus: bus}
}

func noteListCachePrefix(userID uint) string {
	return "cache:user:" + strconv.Itoa(int(userID)) + ":notes:"
}

// CreateNote persists a new note and publishes the creation event so the
// gamification listeners can award XP.
func (n *NoteController) CreateNote(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required,min=1"`
		Content string `json:"content"`
		Color   string `json:"color"`
		Pinned  bool   `json:"pinned"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "title cannot be empty")
		return
	}

	note := models.Note{
		UserID:  userID,
		Title:   title,
		Content: utils.Sanitize(req.Content),
		Color:   strings.TrimSpace(req.Color),
		Pinned:  req.Pinned,
	}
	if err := n.db.Create(&note).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create note")
		return
	}

	utils.InvalidateByPrefix(noteListCachePrefix(userID))
	n.bus.Publish(ctx.Request.Context(), events.NoteCreated{UserID: userID, NoteID: note.ID})

	utils.Success(ctx, gin.H{"note": note})
}

// ListNotes returns the user's notes, pinned first, newest first.
func (n *NoteController) ListNotes(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))

	// cache only unfiltered lists to avoid key explosion
	cacheKey := fmt.Sprintf("%spage=%d:size=%d", noteListCachePrefix(userID), page, pageSize)
	if search == "" {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	query := n.db.Where("user_id = ?", userID).Order("pinned DESC, updated_at DESC")
	if search != "" {
		query = query.Where("title LIKE ? OR content LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Model(&models.Note{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to count notes")
		return
	}

	var notes []models.Note
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&notes).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to list notes")
		return
	}

	payload := gin.H{
		"items": notes,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	if search == "" {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetNote returns a single note owned by the caller.
func (n *NoteController) GetNote(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid note id")
		return
	}

	var note models.Note
	if err := n.db.Where("id = ? AND user_id = ?", id, userID).First(&note).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40440, "note not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load note")
		return
	}
	utils.Success(ctx, gin.H{"note": note})
}

// UpdateNote applies a partial update to one of the caller's notes.
func (n *NoteController) UpdateNote(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid note id")
		return
	}

	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
		Color   *string `json:"color"`
		Pinned  *bool   `json:"pinned"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid request payload")
		return
	}

	var note models.Note
	if err := n.db.Where("id = ? AND user_id = ?", id, userID).First(&note).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40440, "note not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load note")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40041, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Content != nil {
		updates["content"] = utils.Sanitize(*req.Content)
	}
	if req.Color != nil {
		updates["color"] = strings.TrimSpace(*req.Color)
	}
	if req.Pinned != nil {
		updates["pinned"] = *req.Pinned
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40044, "nothing to update")
		return
	}

	if err := n.db.Model(&note).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to update note")
		return
	}

	utils.InvalidateByPrefix(noteListCachePrefix(userID))
	utils.Success(ctx, gin.H{"note": note})
}

// DeleteNote soft-deletes one of the caller's notes.
func (n *NoteController) DeleteNote(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid note id")
		return
	}

	res := n.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Note{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to delete note")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40440, "note not found")
		return
	}

	utils.InvalidateByPrefix(noteListCachePrefix(userID))
	utils.Success(ctx, gin.H{"message": "note deleted"})
}
