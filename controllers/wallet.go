package controllers

import (
	"errors"
	"net/http"

	"github.com/NemeanGames/jackpot-game/ledger"

	"github.com/gin-gonic/gin"
)

type WalletController struct {
	ledger *ledger.Ledger
}

func NewWalletController(lg *ledger.Ledger) *WalletController {
	return &WalletController{ledger: lg}
}

type walletRequest struct {
	TelegramID int64 `json:"telegram_id" binding:"required"`
	Amount     int64 `json:"amount" binding:"required,gt=0"`
}

// Deposit adds funds to a user's balance.
func (wc *WalletController) Deposit(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := wc.ledger.Adjust(req.TelegramID, req.Amount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deposit"})
		return
	}

	user, err := wc.ledger.GetOrCreate(req.TelegramID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": user.Balance})
}

// Withdraw removes funds from a user's balance.
func (wc *WalletController) Withdraw(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := wc.ledger.Adjust(req.TelegramID, -req.Amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient balance"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to withdraw"})
		return
	}

	user, err := wc.ledger.GetOrCreate(req.TelegramID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": user.Balance})
}
