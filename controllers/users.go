package controllers

import (
	"net/http"
	"strconv"

	"github.com/NemeanGames/jackpot-game/ledger"
	"github.com/NemeanGames/jackpot-game/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserController struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

func NewUserController(db *gorm.DB, lg *ledger.Ledger) *UserController {
	return &UserController{db: db, ledger: lg}
}

// Register creates a user account (from Telegram) with the starting
// balance.
func (uc *UserController) Register(c *gin.Context) {
	var req struct {
		TelegramID int64  `json:"telegram_id" binding:"required"`
		Name       string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.ledger.GetOrCreate(req.TelegramID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if req.Name != "" && user.Name != req.Name {
		if err := uc.db.Model(user).Update("name", req.Name).Error; err == nil {
			user.Name = req.Name
		}
	}

	c.JSON(http.StatusCreated, user)
}

// GetUser fetches a user by telegram_id, creating the account with the
// starting balance on first contact.
func (uc *UserController) GetUser(c *gin.Context) {
	tid, ok := parseTelegramID(c)
	if !ok {
		return
	}

	user, err := uc.ledger.GetOrCreate(tid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ClaimDailyReward grants the fixed bonus once per calendar day.
func (uc *UserController) ClaimDailyReward(c *gin.Context) {
	tid, ok := parseTelegramID(c)
	if !ok {
		return
	}

	granted, err := uc.ledger.ClaimDailyReward(tid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to claim reward"})
		return
	}

	user, err := uc.ledger.GetOrCreate(tid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted": granted,
		"bonus":   ledger.DailyBonus,
		"balance": user.Balance,
	})
}

// ListTransactions returns the user's most recent ledger movements.
func (uc *UserController) ListTransactions(c *gin.Context) {
	tid, ok := parseTelegramID(c)
	if !ok {
		return
	}

	txs, err := uc.ledger.History(tid, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, txs)
}

func parseTelegramID(c *gin.Context) (int64, bool) {
	tid, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid telegram_id"})
		return 0, false
	}
	return tid, true
}
