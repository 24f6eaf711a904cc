package models

import "time"

type TransactionType string

const (
	SignupTransaction     TransactionType = "signup"
	WagerTransaction      TransactionType = "wager"
	PayoutTransaction     TransactionType = "payout"
	DailyBonusTransaction TransactionType = "daily_bonus"
	DepositTransaction    TransactionType = "deposit"
	WithdrawTransaction   TransactionType = "withdraw"
)

// Transaction records every ledger mutation with the balance after it.
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"index;not null" json:"user_id"`
	Type         TransactionType `gorm:"size:16;not null" json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	GameID       *uint           `gorm:"index" json:"game_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
