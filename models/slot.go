package models

import (
	"strconv"
	"time"
)

type OwnerType string

const (
	OwnerPlayer OwnerType = "player"
	OwnerBot    OwnerType = "bot"
)

// Slot is an occupied wheel position. The owner is a tagged variant:
// PlayerID is set for players, BotLabel for bots, never both. Slots are
// historical records and are never mutated or deleted.
type Slot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GameID     uint      `gorm:"uniqueIndex:idx_game_slot;not null" json:"game_id"`
	SlotNumber int       `gorm:"uniqueIndex:idx_game_slot;not null" json:"slot_number"`
	OwnerType  OwnerType `gorm:"size:16;not null" json:"owner_type"`
	PlayerID   *int64    `gorm:"index" json:"player_id,omitempty"`
	BotLabel   string    `gorm:"size:32" json:"bot_label,omitempty"`
	EntryCost  int64     `json:"entry_cost"`
	CreatedAt  time.Time `json:"created_at"`
}

// OwnerDisplay returns the owner identity in display form.
func (s *Slot) OwnerDisplay() string {
	if s.OwnerType == OwnerBot {
		return s.BotLabel
	}
	if s.PlayerID != nil {
		return strconv.FormatInt(*s.PlayerID, 10)
	}
	return ""
}
