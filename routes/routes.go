package routes

import (
	"github.com/NemeanGames/jackpot-game/controllers"

	"github.com/gin-gonic/gin"
)

// Deps carries the constructed controllers into route wiring.
type Deps struct {
	Users  *controllers.UserController
	Wallet *controllers.WalletController
	Games  *controllers.GameController
}

func SetupRoutes(r *gin.Engine, d Deps) {
	api := r.Group("/api")

	// ----------------------
	// User routes
	// ----------------------
	api.POST("/users", d.Users.Register)
	api.GET("/users/:telegram_id", d.Users.GetUser)
	api.POST("/users/:telegram_id/daily-reward", d.Users.ClaimDailyReward)
	api.GET("/users/:telegram_id/transactions", d.Users.ListTransactions)

	// ----------------------
	// Wallet routes
	// ----------------------
	api.POST("/wallet/deposit", d.Wallet.Deposit)
	api.POST("/wallet/withdraw", d.Wallet.Withdraw)

	// ----------------------
	// Game routes
	// ----------------------
	api.GET("/tiers", d.Games.ListTiers)
	api.GET("/tiers/:tier/active", d.Games.ActiveGame)
	api.GET("/tiers/:tier/history", d.Games.History)
	api.GET("/games/:uuid", d.Games.GetGame)
	api.POST("/games/:uuid/slots", d.Games.BuySpot)
}
