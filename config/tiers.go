package config

import (
	"time"

	"github.com/NemeanGames/jackpot-game/models"
)

// TierConfig is the static wheel configuration for one tier. EdgePct is
// a signed percentage applied to a winning player's payout; FillTime is
// the scheduler tick interval for the tier.
type TierConfig struct {
	SlotCount int           `json:"slot_count"`
	EntryCost int64         `json:"entry_cost"`
	EdgePct   int           `json:"edge_pct"`
	FillTime  time.Duration `json:"-"`
}

// Tiers binds each tier to its config at process start. Values are
// copied onto a Game at creation and never re-read for in-flight games.
var Tiers = map[models.Tier]TierConfig{
	models.TierLow:    {SlotCount: 12, EntryCost: 5, EdgePct: -2, FillTime: 8 * time.Second},
	models.TierMedium: {SlotCount: 10, EntryCost: 10, EdgePct: -10, FillTime: 6 * time.Second},
	models.TierHigh:   {SlotCount: 6, EntryCost: 25, EdgePct: -20, FillTime: 5 * time.Second},
}
