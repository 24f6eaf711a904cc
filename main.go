package main

import (
	"net/http"
	"time"

	"github.com/NemeanGames/jackpot-game/config"
	"github.com/NemeanGames/jackpot-game/controllers"
	"github.com/NemeanGames/jackpot-game/game"
	"github.com/NemeanGames/jackpot-game/ledger"
	"github.com/NemeanGames/jackpot-game/routes"
	"github.com/NemeanGames/jackpot-game/services"
	"github.com/NemeanGames/jackpot-game/store"
	"github.com/NemeanGames/jackpot-game/utils/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// spinRecoveryGrace is how long a game may sit in spinning before the
// startup recovery pass re-settles it.
const spinRecoveryGrace = 30 * time.Second

func main() {
	// Load env variables
	config.LoadEnv()

	// Connect to database
	db := config.SetupDatabase()

	// Wire the core: store, ledger, bus, engine, scheduler, transport
	gameStore := store.New(db)
	pointsLedger := ledger.New(db)
	bus := game.NewEventBus()
	engine := game.NewEngine(db, gameStore, pointsLedger, bus, config.Tiers)
	hub := services.NewHub(bus)

	// Re-settle anything stranded mid-spin by a previous crash
	if err := engine.RecoverStuckGames(spinRecoveryGrace); err != nil {
		logger.Errorf("spin recovery failed: %v", err)
	}

	scheduler := game.NewScheduler(engine, config.Tiers)
	scheduler.Start()
	defer scheduler.Stop()
	defer hub.CloseAll()

	deps := routes.Deps{
		Users:  controllers.NewUserController(db, pointsLedger),
		Wallet: controllers.NewWalletController(pointsLedger),
		Games:  controllers.NewGameController(engine, gameStore),
	}
	router := setupRouter(deps, hub)

	port := config.Port()
	logger.Infof("Jackpot wheel server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter initializes Gin routes and middleware
func setupRouter(deps routes.Deps, hub *services.Hub) *gin.Engine {
	r := gin.Default()

	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, deps)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	// WebSocket observer endpoint
	r.GET("/ws/:tier", hub.HandleWebSocket)

	return r
}
