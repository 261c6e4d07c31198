package main

import (
	"context"
	"log"

	"quizroom/config"
	"quizroom/handlers"
	"quizroom/middleware"
	"quizroom/models"
	"quizroom/realtime"
	"quizroom/routes"
	"quizroom/services"
	"quizroom/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	err = db.AutoMigrate(
		&models.RoomRecord{},
		&models.ParticipantRecord{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	redisClient := config.InitRedis(cfg)

	roomStore := store.NewRedisRoomStore(redisClient, cfg.RoomTTL)
	archiveService := services.NewArchiveService(db)
	roomService := services.NewRoomService(roomStore, archiveService)
	notifier := realtime.NewNotifier(redisClient)

	hub := realtime.NewHub(redisClient)
	go hub.Run(context.Background())

	roomHandler := handlers.NewRoomHandler(roomService, archiveService, notifier)

	router := gin.Default()
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, roomHandler, hub)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
