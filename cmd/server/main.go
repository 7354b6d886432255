package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-room-booking/internal/booking"
	"github.com/iliyamo/campus-room-booking/internal/config"
	"github.com/iliyamo/campus-room-booking/internal/database"
	"github.com/iliyamo/campus-room-booking/internal/handler"
	"github.com/iliyamo/campus-room-booking/internal/middleware"
	"github.com/iliyamo/campus-room-booking/internal/queue"
	"github.com/iliyamo/campus-room-booking/internal/repository"
	"github.com/iliyamo/campus-room-booking/internal/router"
	"github.com/iliyamo/campus-room-booking/internal/schedule"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()

	// Stores.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := repository.NewReservationRepo(db)
	restrictions := repository.NewRestrictionRepo(db)
	scheduleRepo := repository.NewScheduleRepo(db)
	meta := repository.NewMetadataRepo(db)
	equipment := repository.NewEquipmentRepo(db)

	// Engine services.
	lifecycle := booking.NewLifecycle(db, reservations, restrictions, scheduleRepo, meta)
	quota := booking.NewQuotaService(reservations)
	checkins := booking.NewCheckinService(db, reservations)
	feed := schedule.NewFeed(cfg.FeedURLs, cfg.FeedTTL, scheduleRepo, meta)

	// Event consumer writes reservation activity to logs/reservations.log.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	availability := handler.NewAvailabilityHandler(reservations, restrictions, scheduleRepo, meta, equipment, feed, checkins)
	bookings := handler.NewBookingHandler(lifecycle, quota, checkins, reservations)
	admin := handler.NewAdminHandler(db, reservations, restrictions, meta, equipment)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterMember(e, availability, bookings, cfg.JWTSecret, config.LoadCacheConfig(), rdb)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
