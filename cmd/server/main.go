package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"mafia/backend/internal/auth"
	"mafia/backend/internal/bot"
	"mafia/backend/internal/config"
	"mafia/backend/internal/database"
	"mafia/backend/internal/game"
	"mafia/backend/internal/handler"
	"mafia/backend/internal/lock"
	"mafia/backend/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	// Swagger imports
	_ "mafia/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// newLocker picks the room-lock implementation for this deployment:
// a redis lease when REDIS_URL is set, otherwise in-process only.
func newLocker() lock.Locker {
	if config.AppConfig.RedisURL == "" {
		logrus.Info("no REDIS_URL configured, using in-process room locks")
		return lock.NewLocal()
	}
	opts, err := redis.ParseURL(config.AppConfig.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	logrus.WithField("addr", opts.Addr).Info("using redis room locks")
	return lock.NewRedis(redis.NewClient(opts))
}

// @title           Mafia API
// @version         1.0
// @description     This is the API for the Mafia game service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	// Wire the game orchestrator: lock, phase timers, bot actor.
	sched := scheduler.New(game.OnPhaseTimeout, time.Duration(config.AppConfig.SweepSeconds)*time.Second)
	bots := bot.New(time.Duration(config.AppConfig.BotGraceMs) * time.Millisecond)
	game.Setup(newLocker(), sched, bots, config.AppConfig)

	// Re-arm timers for rooms persisted mid-phase, then start the sweep
	// that catches anything a lost timer would otherwise strand.
	if err := sched.RestoreOnBoot(); err != nil {
		log.Fatalf("Failed to restore phase timers: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", handler.GetMe)
			userRoutes.GET("/:id", handler.GetUserByID)
		}

		// Room details are viewable without an account; seated callers
		// additionally see the join code.
		apiV1.GET("/rooms/:id", auth.OptionalAuthMiddleware(), handler.GetRoomByID)

		// Room routes (protected)
		roomRoutes := apiV1.Group("/rooms")
		roomRoutes.Use(auth.AuthMiddleware())
		{
			roomRoutes.POST("", handler.CreateRoom)
			roomRoutes.GET("", handler.SearchRooms)
			roomRoutes.POST("/join", handler.JoinRoom)
			roomRoutes.POST("/leave", handler.LeaveRoom)
			roomRoutes.POST("/:id/ready", handler.ToggleReady)
			roomRoutes.POST("/:id/bots", handler.AddBot)
			roomRoutes.DELETE("/:id/players/:playerID", handler.KickSeat)
			roomRoutes.GET("/:id/stream", handler.StreamRoom)

			// Game actions
			roomRoutes.POST("/:id/start", handler.StartGame)
			roomRoutes.POST("/:id/night-action", handler.SubmitNightAction)
			roomRoutes.POST("/:id/vote", handler.SubmitVote)
			roomRoutes.GET("/:id/state", handler.GetRoomState)
			roomRoutes.POST("/:id/reset", handler.ResetRoom)
			roomRoutes.GET("/:id/matches", handler.GetRoomMatches)
		}

		// Match history (protected)
		matchRoutes := apiV1.Group("/matches")
		matchRoutes.Use(auth.AuthMiddleware())
		{
			matchRoutes.GET("/:id/events", handler.GetMatchEvents)
		}

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminRoutes.POST("/rooms/:id/reset", handler.ForceResetRoom)
		}
	}

	fmt.Println("Server is running on :8080")
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(":8080"))
}
