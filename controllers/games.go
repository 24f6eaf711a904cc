package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/NemeanGames/jackpot-game/config"
	"github.com/NemeanGames/jackpot-game/game"
	"github.com/NemeanGames/jackpot-game/ledger"
	"github.com/NemeanGames/jackpot-game/models"
	"github.com/NemeanGames/jackpot-game/store"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

type GameController struct {
	engine *game.Engine
	store  *store.GameStore
	// Completed games are immutable, so their snapshots are served from
	// an in-process cache.
	results *gocache.Cache
}

func NewGameController(engine *game.Engine, st *store.GameStore) *GameController {
	return &GameController{
		engine:  engine,
		store:   st,
		results: gocache.New(10*time.Minute, 30*time.Minute),
	}
}

// ListTiers returns the static wheel configurations.
func (gc *GameController) ListTiers(c *gin.Context) {
	type tierView struct {
		Tier       models.Tier `json:"tier"`
		SlotCount  int         `json:"slot_count"`
		EntryCost  int64       `json:"entry_cost"`
		EdgePct    int         `json:"edge_pct"`
		FillTimeMs int64       `json:"fill_time_ms"`
	}
	tiers := make([]tierView, 0, len(config.Tiers))
	for _, tier := range models.AllTiers {
		cfg := config.Tiers[tier]
		tiers = append(tiers, tierView{
			Tier:       tier,
			SlotCount:  cfg.SlotCount,
			EntryCost:  cfg.EntryCost,
			EdgePct:    cfg.EdgePct,
			FillTimeMs: cfg.FillTime.Milliseconds(),
		})
	}
	c.JSON(http.StatusOK, tiers)
}

// ActiveGame returns the current game for a tier, creating one if none
// is active.
func (gc *GameController) ActiveGame(c *gin.Context) {
	tier, ok := models.ParseTier(c.Param("tier"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tier"})
		return
	}

	g, err := gc.engine.GetOrCreateActiveGame(tier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game"})
		return
	}

	state, err := gc.engine.GetGameState(g.ID)
	if err != nil || state == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game state"})
		return
	}

	c.JSON(http.StatusOK, state)
}

// GetGame returns a game snapshot by its public id.
func (gc *GameController) GetGame(c *gin.Context) {
	id := c.Param("uuid")

	if cached, ok := gc.results.Get(id); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	g, err := gc.store.GetGameByUUID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	state, err := gc.engine.GetGameState(g.ID)
	if err != nil || state == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game state"})
		return
	}

	if g.Status == models.StatusCompleted {
		gc.results.Set(id, state, gocache.DefaultExpiration)
	}

	c.JSON(http.StatusOK, state)
}

// History lists recent completed games for a tier.
func (gc *GameController) History(c *gin.Context) {
	tier, ok := models.ParseTier(c.Param("tier"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tier"})
		return
	}

	games, err := gc.store.ListCompleted(tier, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, games)
}

// BuySpot purchases a numbered slot on a game for a player.
func (gc *GameController) BuySpot(c *gin.Context) {
	id := c.Param("uuid")

	var req struct {
		TelegramID int64 `json:"telegram_id" binding:"required"`
		SlotNumber int   `json:"slot_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := gc.store.GetGameByUUID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	if err := gc.engine.BuySpot(g.ID, req.TelegramID, req.SlotNumber); err != nil {
		status, msg := buyError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	state, err := gc.engine.GetGameState(g.ID)
	if err != nil || state == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game state"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// buyError maps engine failures onto user-visible reasons.
func buyError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrGameNotFound):
		return http.StatusNotFound, "Game not found"
	case errors.Is(err, store.ErrSlotTaken):
		return http.StatusConflict, "Slot already taken"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient balance"
	case errors.Is(err, game.ErrInvalidSlot):
		return http.StatusBadRequest, "Slot number out of range"
	case errors.Is(err, game.ErrGameClosed):
		return http.StatusBadRequest, "Game no longer accepts entries"
	default:
		return http.StatusInternalServerError, "Failed to buy slot"
	}
}
