package gamification

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidyapp/tidy/config"
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
	// one connection serializes writers, sqlite has no row locks
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Action{}, &models.XPTransaction{}))
	return db
}

func testLogger() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}

func testAwarder(t *testing.T, db *gorm.DB, defs []ActionDef) *Awarder {
	t.Helper()
	return NewAwarder(db, NewCatalog(defs), UnlimitedLimiter{}, testLogger())
}

func createAccount(t *testing.T, db *gorm.DB, userID uint, totalXP int64, level int) models.Account {
	t.Helper()
	acct := models.Account{UserID: userID, TotalXP: totalXP, Level: level}
	require.NoError(t, db.Create(&acct).Error)
	return acct
}

func TestAwardUnknownActionIsNoop(t *testing.T) {
	db := testDB(t)
	acct := createAccount(t, db, 1, 0, 1)
	aw := testAwarder(t, db, nil)

	awarded, err := aw.Award(context.Background(), acct.ID, "no_such_action", "ref")
	require.NoError(t, err)
	assert.False(t, awarded)

	var got models.Account
	require.NoError(t, db.First(&got, acct.ID).Error)
	assert.Equal(t, int64(0), got.TotalXP)

	var ledger int64
	require.NoError(t, db.Model(&models.XPTransaction{}).Count(&ledger).Error)
	assert.Equal(t, int64(0), ledger)
}

func TestAwardMissingAccountIsNoop(t *testing.T) {
	db := testDB(t)
	aw := testAwarder(t, db, []ActionDef{{Key: "complete_meta", Points: 40}})

	awarded, err := aw.Award(context.Background(), 999, "complete_meta", "meta:1")
	require.NoError(t, err)
	assert.False(t, awarded)
}

func TestAwardIncrementsXPAndWritesLedger(t *testing.T) {
	db := testDB(t)
	acct := createAccount(t, db, 1, 90, 1)
	aw := testAwarder(t, db, []ActionDef{{Key: "complete_meta", Points: 40}})

	awarded, err := aw.Award(context.Background(), acct.ID, "complete_meta", "meta:7")
	require.NoError(t, err)
	assert.True(t, awarded)

	var got models.Account
	require.NoError(t, db.First(&got, acct.ID).Error)
	assert.Equal(t, int64(130), got.TotalXP)
	assert.Equal(t, 1, got.Level)

	var tx models.XPTransaction
	require.NoError(t, db.First(&tx).Error)
	assert.Equal(t, acct.ID, tx.AccountID)
	assert.Equal(t, "complete_meta", tx.ActionKey)
	assert.Equal(t, 40, tx.Points)
	assert.Equal(t, "meta:7", tx.Reference)
}

func TestAwardRaisesLevelOnBoundary(t *testing.T) {
	db := testDB(t)
	acct := createAccount(t, db, 1, 380, 1)
	aw := testAwarder(t, db, []ActionDef{{Key: "complete_meta", Points: 40}})

	awarded, err := aw.Award(context.Background(), acct.ID, "complete_meta", "meta:8")
	require.NoError(t, err)
	assert.True(t, awarded)

	var got models.Account
	require.NoError(t, db.First(&got, acct.ID).Error)
	assert.Equal(t, int64(420), got.TotalXP)
	assert.Equal(t, 2, got.Level)
}

func TestAwardRespectsDailyCap(t *testing.T) {
	db := testDB(t)
	acct := createAccount(t, db, 1, 0, 1)
	limiter := &countingLimiter{allow: 2}
	aw := NewAwarder(db, NewCatalog([]ActionDef{{Key: "create_note", Points: 5, DailyCap: 2}}), limiter, testLogger())

	for i := 0; i < 4; i++ {
		_, err := aw.Award(context.Background(), acct.ID, "create_note", "ref")
		require.NoError(t, err)
	}

	var got models.Account
	require.NoError(t, db.First(&got, acct.ID).Error)
	assert.Equal(t, int64(10), got.TotalXP)
}

// countingLimiter allows a fixed number of awards then refuses.
type countingLimiter struct {
	mu    sync.Mutex
	seen  int
	allow int
}

func (c *countingLimiter) Allow(ctx context.Context, accountID uint, actionKey string, dailyCap int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen++
	return c.seen <= c.allow
}

func TestConcurrentAwardsLoseNoUpdates(t *testing.T) {
	db := testDB(t)
	acct := createAccount(t, db, 1, 0, 1)
	aw := testAwarder(t, db, []ActionDef{{Key: "create_note", Points: 5}})

	const workers = 4
	const perWorker = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := aw.Award(context.Background(), acct.ID, "create_note", "ref")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	var got models.Account
	require.NoError(t, db.First(&got, acct.ID).Error)
	assert.Equal(t, int64(workers*perWorker*5), got.TotalXP)

	var ledger int64
	require.NoError(t, db.Model(&models.XPTransaction{}).Count(&ledger).Error)
	assert.Equal(t, int64(workers*perWorker), ledger)
}

func TestAwardToUserResolvesAccount(t *testing.T) {
	db := testDB(t)
	acct := createAccount(t, db, 42, 0, 1)
	aw := testAwarder(t, db, []ActionDef{{Key: "create_note", Points: 5}})

	awarded, err := aw.AwardToUser(context.Background(), 42, "create_note", "note:1")
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = aw.AwardToUser(context.Background(), 7, "create_note", "note:2")
	require.NoError(t, err)
	assert.False(t, awarded)

	var got models.Account
	require.NoError(t, db.First(&got, acct.ID).Error)
	assert.Equal(t, int64(5), got.TotalXP)
}

func TestSeedActionsPreservesExistingRows(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Create(&models.Action{Key: "create_note", Points: 50, DailyCap: 1}).Error)

	seeds := []config.ActionConfig{
		{Key: "create_note", Points: 5, DailyCap: 10},
		{Key: "complete_meta", Points: 40},
	}
	require.NoError(t, SeedActions(db, seeds))

	var note models.Action
	require.NoError(t, db.Where("`key` = ?", "create_note").First(&note).Error)
	assert.Equal(t, 50, note.Points, "admin tuning must survive reseeding")
	assert.Equal(t, 1, note.DailyCap)

	var meta models.Action
	require.NoError(t, db.Where("`key` = ?", "complete_meta").First(&meta).Error)
	assert.Equal(t, 40, meta.Points)
}

func TestCatalogReloadPicksUpEdits(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Create(&models.Action{Key: "create_note", Points: 5, DailyCap: 10}).Error)

	catalog, err := LoadCatalog(db, nil)
	require.NoError(t, err)
	def, ok := catalog.Lookup("create_note")
	require.True(t, ok)
	assert.Equal(t, 5, def.Points)

	require.NoError(t, db.Model(&models.Action{}).Where("`key` = ?", "create_note").Update("points", 15).Error)
	require.NoError(t, catalog.Reload(db))

	def, ok = catalog.Lookup("create_note")
	require.True(t, ok)
	assert.Equal(t, 15, def.Points)
}

func TestCatalogKeysSorted(t *testing.T) {
	c := NewCatalog([]ActionDef{{Key: "b"}, {Key: "a"}, {Key: "c"}})
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
}
