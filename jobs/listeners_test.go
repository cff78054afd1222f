package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/queue"
)

// fakeDispatcher records enqueued jobs instead of running them.
type fakeDispatcher struct {
	jobs   []queue.Job
	delays []time.Duration
}

func (f *fakeDispatcher) Enqueue(job queue.Job, delay time.Duration) {
	f.jobs = append(f.jobs, job)
	f.delays = append(f.delays, delay)
}

func testBusAndListeners() (*events.Bus, *fakeDispatcher) {
	return events.NewBus(testLogger()), &fakeDispatcher{}
}

func TestMetaCompletedEnqueuesDeferredJob(t *testing.T) {
	db := testDB(t)
	bus, dispatcher := testBusAndListeners()
	NewListeners(db, testAwarder(db), dispatcher, nil, testLogger()).Register(bus)

	status := models.MetaStatusCompletada
	bus.Publish(context.Background(), events.MetaCompleted{
		UserID:  7,
		MetaID:  42,
		Payload: models.MetaUpdate{Status: &status},
	})

	require.Len(t, dispatcher.jobs, 1)
	job, ok := dispatcher.jobs[0].(*ProcessMetaUpdate)
	require.True(t, ok)
	assert.Equal(t, uint(42), job.MetaID)
	assert.Equal(t, uint(7), job.UserID)
	require.NotNil(t, job.Payload.Status)
	assert.Equal(t, models.MetaStatusCompletada, *job.Payload.Status)
	assert.Equal(t, metaUpdateDelay, dispatcher.delays[0])
}

func TestNoteCreatedAwardsImmediately(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusPendiente)
	bus, dispatcher := testBusAndListeners()
	NewListeners(db, testAwarder(db), dispatcher, nil, testLogger()).Register(bus)

	bus.Publish(context.Background(), events.NoteCreated{UserID: fix.account.UserID, NoteID: 3})

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(95), got.TotalXP)
	assert.Empty(t, dispatcher.jobs, "creation awards run synchronously")
}

func TestObjetivoCompletedAwardsOnce(t *testing.T) {
	db := testDB(t)
	fix := seedFixture(t, db, models.MetaStatusPendiente)
	bus, dispatcher := testBusAndListeners()
	NewListeners(db, testAwarder(db), dispatcher, nil, testLogger()).Register(bus)

	evt := events.ObjetivoCompleted{UserID: fix.account.UserID, ObjetivoID: fix.objetivo.ID}
	bus.Publish(context.Background(), evt)
	bus.Publish(context.Background(), evt)

	var got models.Account
	require.NoError(t, db.First(&got, fix.account.ID).Error)
	assert.Equal(t, int64(190), got.TotalXP, "90 seed plus a single 100 point award")

	var ledger int64
	require.NoError(t, db.Model(&models.XPTransaction{}).Count(&ledger).Error)
	assert.Equal(t, int64(1), ledger)
}
