package models

import "time"

type GameStatus string

const (
	StatusFilling   GameStatus = "filling"
	StatusFull      GameStatus = "full"
	StatusSpinning  GameStatus = "spinning"
	StatusCompleted GameStatus = "completed"
)

type WinnerType string

const (
	WinnerPlayer WinnerType = "player"
	WinnerBot    WinnerType = "bot"
	WinnerHouse  WinnerType = "house"
)

// Game is one wheel round. SlotCount, EntryCost and EdgePct are copied
// from the tier config at creation so later config changes never touch
// an in-flight game.
type Game struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	UUID            string      `gorm:"uniqueIndex;size:36" json:"uuid"`
	Tier            Tier        `gorm:"index;size:16" json:"tier"`
	SlotCount       int         `json:"slot_count"`
	EntryCost       int64       `json:"entry_cost"`
	EdgePct         int         `json:"edge_pct"`
	Status          GameStatus  `gorm:"index;size:16" json:"status"`
	WinningSlot     *int        `json:"winning_slot,omitempty"`
	WinnerType      *WinnerType `gorm:"size:16" json:"winner_type,omitempty"`
	WinnerID        *string     `gorm:"size:64" json:"winner_id,omitempty"`
	Payout          int64       `json:"payout"`
	HouseCommission int64       `json:"house_commission"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// Active reports whether the game still accepts entries or a spin.
func (g *Game) Active() bool {
	return g.Status == StatusFilling || g.Status == StatusFull
}
