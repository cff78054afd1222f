package jobs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Account{}, &models.Action{}, &models.XPTransaction{},
		&models.Objetivo{}, &models.Meta{},
	))
	return db
}

func testLogger() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}

func testAwarder(db *gorm.DB) *gamification.Awarder {
	catalog := gamification.NewCatalog([]gamification.ActionDef{
		{Key: "complete_meta", Points: 40},
		{Key: "complete_objetivo", Points: 100},
		{Key: "create_note", Points: 5, DailyCap: 10},
	})
	return gamification.NewAwarder(db, catalog, gamification.UnlimitedLimiter{}, testLogger())
}

type fixture struct {
	account  models.Account
	objetivo models.Objetivo
	meta     models.Meta
}

func seedFixture(t *testing.T, db *gorm.DB, metaStatus string) fixture {
	t.Helper()
	acct := models.Account{UserID: 7, TotalXP: 90, Level: 1}
	require.NoError(t, db.Create(&acct).Error)
	obj := models.Objetivo{UserID: 7, Title: "learn spanish", Status: models.MetaStatusEnProgreso}
	require.NoError(t, db.Create(&obj).Error)
	meta := models.Meta{ObjetivoID: obj.ID, Title: "finish unit 3", Status: metaStatus}
	require.NoError(t, db.Create(&meta).Error)
	return fixture{account: acct, objetivo: obj, meta: meta}
}

func newJob(db *gorm.DB, metaID, userID uint) *ProcessMetaUpdate {
	return &ProcessMetaUpdate{
		MetaID:  metaID,
		UserID:  userID,
		db:      db,
		awarder: testAwarder(db),
		logger:  testLogger(),
	}
}

func TestRunMissingMetaEndsQuietly(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusPendiente)

	job := newJob(db, 9999, fix.account.UserID)
	require.NoError(t, job.Run(context.Background()))

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(90), got.TotalXP)
}

func TestRunIncompleteMetaAwardsNothing(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusEnProgreso)

	job := newJob(db, fix.meta.ID, fix.account.UserID)
	require.NoError(t, job.Run(context.Background()))

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(90), got.TotalXP)

	var meta models.Meta
	require.NoError(t, db.First(&meta, fix.meta.ID).Error)
	assert.False(t, meta.XPAwarded)
}

func TestRunCompletedMetaAwardsOnce(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusCompletada)

	job := newJob(db, fix.meta.ID, fix.account.UserID)
	require.NoError(t, job.Run(context.Background()))

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(130), got.TotalXP)

	var meta models.Meta
	require.NoError(t, db.First(&meta, fix.meta.ID).Error)
	assert.True(t, meta.XPAwarded)

	var ledger models.XPTransaction
	require.NoError(t, db.First(&ledger).Error)
	assert.Equal(t, "complete_meta", ledger.ActionKey)
	assert.Equal(t, 40, ledger.Points)
}

func TestRunDoesNotRewardTwice(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusCompletada)

	first := newJob(db, fix.meta.ID, fix.account.UserID)
	require.NoError(t, first.Run(context.Background()))

	second := newJob(db, fix.meta.ID, fix.account.UserID)
	require.NoError(t, second.Run(context.Background()))

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(130), got.TotalXP, "second save of a completed meta grants nothing")

	var ledger int64
	require.NoError(t, db.Model(&models.XPTransaction{}).Count(&ledger).Error)
	assert.Equal(t, int64(1), ledger)
}

func TestRunNeverWritesMetaFields(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusCompletada)

	title := "rewritten by client"
	job := newJob(db, fix.meta.ID, fix.account.UserID)
	job.Payload = models.MetaUpdate{Title: &title}
	require.NoError(t, job.Run(context.Background()))

	var meta models.Meta
	require.NoError(t, db.First(&meta, fix.meta.ID).Error)
	assert.Equal(t, "finish unit 3", meta.Title, "worker must not write entity fields")
	assert.Equal(t, models.MetaStatusCompletada, meta.Status)
}

func TestRunOrphanMetaAwardsNothing(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusCompletada)
	require.NoError(t, db.Unscoped().Delete(&models.Objetivo{}, fix.objetivo.ID).Error)

	job := newJob(db, fix.meta.ID, fix.account.UserID)
	require.NoError(t, job.Run(context.Background()))

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(90), got.TotalXP)
}
