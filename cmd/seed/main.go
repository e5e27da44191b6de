package main

import (
	"context"
	"time"

	"booking-service/internal/client"
	"booking-service/internal/config"
	mongorepo "booking-service/internal/repository/mongo"
	"booking-service/internal/seed"
	"booking-service/internal/util"
)

func main() {
	cfg := config.LoadConfig()
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer util.Sync()

	mc, err := client.NewMongoClient(cfg)
	if err != nil {
		util.Fatal("Failed to connect to MongoDB", util.ErrorField(err))
	}
	store := mongorepo.NewStore(mc)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			util.Warn("Failed to close MongoDB", util.ErrorField(err))
		}
	}()

	res, err := seed.Directory(ctx, store.Directory(), util.Named("seed"))
	if err != nil {
		util.Fatal("Seeding failed", util.ErrorField(err))
	}
	util.Info("Seeding complete",
		util.Int("centers", res.Centers),
		util.Int("consultants", res.Consultants))
}
