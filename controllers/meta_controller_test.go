package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/middleware"
	"github.com/tidyapp/tidy/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Objetivo{}, &models.Meta{}))
	return db
}

func testBus() *events.Bus {
	l, _ := zap.NewDevelopment()
	return events.NewBus(l.Sugar())
}

// fakeAuth injects a fixed user id the way the JWT middleware would.
func fakeAuth(userID uint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(middleware.ContextUserIDKey, userID)
		ctx.Next()
	}
}

func metaRouter(db *gorm.DB, bus *events.Bus, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	mc := NewMetaController(db, bus)
	g := r.Group("", fakeAuth(userID))
	g.POST("/objetivos/:id/metas", mc.CreateMeta)
	g.PUT("/objetivos/:id/metas/:meta_id", mc.UpdateMeta)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateMetaCompletionPublishesEvent(t *testing.T) {
	db := testDB(t)
	obj := models.Objetivo{UserID: 7, Title: "learn spanish"}
	require.NoError(t, db.Create(&obj).Error)
	meta := models.Meta{ObjetivoID: obj.ID, Title: "finish unit 3", Status: models.MetaStatusEnProgreso}
	require.NoError(t, db.Create(&meta).Error)

	bus := testBus()
	var published []events.MetaCompleted
	bus.Subscribe(events.MetaCompletedName, func(ctx context.Context, e events.Event) error {
		published = append(published, e.(events.MetaCompleted))
		return nil
	})

	r := metaRouter(db, bus, 7)
	w := doJSON(t, r, http.MethodPut,
		"/objetivos/1/metas/1", `{"status":"completada"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, published, 1)
	assert.Equal(t, uint(7), published[0].UserID)
	assert.Equal(t, meta.ID, published[0].MetaID)
	require.NotNil(t, published[0].Payload.Status)
	assert.Equal(t, models.MetaStatusCompletada, *published[0].Payload.Status)

	var got models.Meta
	require.NoError(t, db.First(&got, meta.ID).Error)
	assert.Equal(t, models.MetaStatusCompletada, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestUpdateMetaAlreadyCompletedPublishesNothing(t *testing.T) {
	db := testDB(t)
	obj := models.Objetivo{UserID: 7, Title: "learn spanish"}
	require.NoError(t, db.Create(&obj).Error)
	meta := models.Meta{ObjetivoID: obj.ID, Title: "finish unit 3", Status: models.MetaStatusCompletada}
	require.NoError(t, db.Create(&meta).Error)

	bus := testBus()
	var published int
	bus.Subscribe(events.MetaCompletedName, func(ctx context.Context, e events.Event) error {
		published++
		return nil
	})

	r := metaRouter(db, bus, 7)
	w := doJSON(t, r, http.MethodPut,
		"/objetivos/1/metas/1", `{"status":"completada"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, published, "saving an already completed meta is not a new completion")
}

func TestUpdateMetaRejectsUnknownStatus(t *testing.T) {
	db := testDB(t)
	obj := models.Objetivo{UserID: 7, Title: "learn spanish"}
	require.NoError(t, db.Create(&obj).Error)
	meta := models.Meta{ObjetivoID: obj.ID, Title: "finish unit 3"}
	require.NoError(t, db.Create(&meta).Error)

	r := metaRouter(db, testBus(), 7)
	w := doJSON(t, r, http.MethodPut,
		"/objetivos/1/metas/1", `{"status":"done"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateMetaOtherUsersObjetivoIsNotFound(t *testing.T) {
	db := testDB(t)
	obj := models.Objetivo{UserID: 99, Title: "someone else"}
	require.NoError(t, db.Create(&obj).Error)
	meta := models.Meta{ObjetivoID: obj.ID, Title: "their meta"}
	require.NoError(t, db.Create(&meta).Error)

	r := metaRouter(db, testBus(), 7)
	w := doJSON(t, r, http.MethodPut,
		"/objetivos/1/metas/1", `{"status":"completada"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateMetaDefaultsToPendiente(t *testing.T) {
	db := testDB(t)
	obj := models.Objetivo{UserID: 7, Title: "learn spanish"}
	require.NoError(t, db.Create(&obj).Error)

	r := metaRouter(db, testBus(), 7)
	w := doJSON(t, r, http.MethodPost,
		"/objetivos/1/metas", `{"title":"finish unit 1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Meta
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, models.MetaStatusPendiente, got.Status)
	assert.False(t, got.XPAwarded)
}
