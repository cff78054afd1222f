package main

import (
	"github.com/tidyapp/tidy/config"
	"github.com/tidyapp/tidy/events"
	"github.com/tidyapp/tidy/gamification"
	"github.com/tidyapp/tidy/jobs"
	"github.com/tidyapp/tidy/models"
	"github.com/tidyapp/tidy/queue"
	"github.com/tidyapp/tidy/routes"
	"github.com/tidyapp/tidy/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{}, &models.Account{},
		&models.Note{}, &models.Alarm{}, &models.CalendarEvent{},
		&models.Objetivo{}, &models.Meta{},
		&models.Action{}, &models.XPTransaction{},
	)

	catalog, err := gamification.LoadCatalog(db, cfg.XPActions)
	if err != nil {
		utils.Sugar.Fatalf("failed to load action catalog: %v", err)
	}

	rdb := utils.GetRedis()
	limiter := gamification.NewRedisDailyLimiter(rdb, utils.Sugar)
	awarder := gamification.NewAwarder(db, catalog, limiter, utils.Sugar)

	q := queue.New(jobs.MetaUpdateQueue, cfg.QueueWorkers, jobs.MetaUpdateRetryDelays, utils.Sugar)
	defer q.Stop()

	bus := events.NewBus(utils.Sugar)
	jobs.NewListeners(db, awarder, q, rdb, utils.Sugar).Register(bus)

	r := routes.SetupRouter(db, bus, catalog)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
