package models

import (
	"time"

	"gorm.io/datatypes"
)

// User holds a player's point balance. Amounts are in the smallest
// currency unit.
type User struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TelegramID      int64           `gorm:"uniqueIndex" json:"telegram_id"`
	Name            string          `json:"name"`
	Balance         int64           `json:"balance"`
	TotalEarned     int64           `json:"total_earned"`
	TotalWagered    int64           `json:"total_wagered"`
	LastDailyReward *datatypes.Date `json:"last_daily_reward,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
