package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/NemeanGames/jackpot-game/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// StartingBalance seeds a fresh account so a new player can join a
	// low tier game immediately.
	StartingBalance int64 = 100
	// DailyBonus is the fixed once-per-calendar-day reward.
	DailyBonus int64 = 50
)

// ErrInsufficientFunds is returned when a debit exceeds the balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger owns user point balances and the transaction trail.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx rebinds the ledger to a running transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// GetOrCreate fetches the account for a telegram id, creating it with
// the starting balance on first contact.
func (l *Ledger) GetOrCreate(telegramID int64) (*models.User, error) {
	var user models.User
	err := l.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get user %d: %w", telegramID, err)
	}

	user = models.User{TelegramID: telegramID, Balance: StartingBalance, TotalEarned: StartingBalance}
	if err := l.db.Create(&user).Error; err != nil {
		// Lost a concurrent-create race on the unique telegram_id index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := l.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
				return nil, fmt.Errorf("refetch user %d: %w", telegramID, err)
			}
			return &user, nil
		}
		return nil, fmt.Errorf("create user %d: %w", telegramID, err)
	}

	l.record(user.ID, models.SignupTransaction, StartingBalance, nil)
	return &user, nil
}

// Debit subtracts amount from the balance and bumps total_wagered. The
// balance check and subtraction are one conditional update, so a debit
// never races another mutation into a negative balance.
func (l *Ledger) Debit(telegramID int64, amount int64, gameID *uint) error {
	user, err := l.GetOrCreate(telegramID)
	if err != nil {
		return err
	}

	res := l.db.Model(&models.User{}).
		Where("telegram_id = ? AND balance >= ?", telegramID, amount).
		Updates(map[string]interface{}{
			"balance":       gorm.Expr("balance - ?", amount),
			"total_wagered": gorm.Expr("total_wagered + ?", amount),
		})
	if res.Error != nil {
		return fmt.Errorf("debit user %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}

	l.record(user.ID, models.WagerTransaction, -amount, gameID)
	return nil
}

// Credit adds amount to the balance and bumps total_earned.
func (l *Ledger) Credit(telegramID int64, amount int64, gameID *uint) error {
	user, err := l.GetOrCreate(telegramID)
	if err != nil {
		return err
	}

	err = l.db.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_earned": gorm.Expr("total_earned + ?", amount),
		}).Error
	if err != nil {
		return fmt.Errorf("credit user %d: %w", telegramID, err)
	}

	l.record(user.ID, models.PayoutTransaction, amount, gameID)
	return nil
}

// Adjust applies a signed wallet movement (deposit or withdraw).
// Positive deltas count toward total_earned, negative toward
// total_wagered; withdrawals beyond the balance fail.
func (l *Ledger) Adjust(telegramID int64, delta int64) error {
	user, err := l.GetOrCreate(telegramID)
	if err != nil {
		return err
	}

	txType := models.DepositTransaction
	updates := map[string]interface{}{
		"balance":      gorm.Expr("balance + ?", delta),
		"total_earned": gorm.Expr("total_earned + ?", delta),
	}
	query := l.db.Model(&models.User{}).Where("telegram_id = ?", telegramID)
	if delta < 0 {
		txType = models.WithdrawTransaction
		updates = map[string]interface{}{
			"balance":       gorm.Expr("balance + ?", delta),
			"total_wagered": gorm.Expr("total_wagered + ?", -delta),
		}
		query = query.Where("balance >= ?", -delta)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("adjust user %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}

	l.record(user.ID, txType, delta, nil)
	return nil
}

// ClaimDailyReward grants the fixed bonus once per UTC calendar day.
// Returns false if today's bonus was already claimed.
func (l *Ledger) ClaimDailyReward(telegramID int64) (bool, error) {
	user, err := l.GetOrCreate(telegramID)
	if err != nil {
		return false, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if user.LastDailyReward != nil {
		last := time.Time(*user.LastDailyReward).UTC().Truncate(24 * time.Hour)
		if last.Equal(today) {
			return false, nil
		}
	}

	// Conditional on the stored date so two concurrent claims cannot
	// both pay out.
	stamp := datatypes.Date(today)
	query := l.db.Model(&models.User{}).Where("telegram_id = ?", telegramID)
	if user.LastDailyReward != nil {
		query = query.Where("last_daily_reward = ?", *user.LastDailyReward)
	} else {
		query = query.Where("last_daily_reward IS NULL")
	}
	res := query.Updates(map[string]interface{}{
		"balance":           gorm.Expr("balance + ?", DailyBonus),
		"total_earned":      gorm.Expr("total_earned + ?", DailyBonus),
		"last_daily_reward": stamp,
	})
	if res.Error != nil {
		return false, fmt.Errorf("claim daily reward for %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	l.record(user.ID, models.DailyBonusTransaction, DailyBonus, nil)
	return true, nil
}

// History returns the most recent transactions for a user.
func (l *Ledger) History(telegramID int64, limit int) ([]models.Transaction, error) {
	user, err := l.GetOrCreate(telegramID)
	if err != nil {
		return nil, err
	}

	var txs []models.Transaction
	err = l.db.Where("user_id = ?", user.ID).Order("id DESC").Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("transaction history for %d: %w", telegramID, err)
	}
	return txs, nil
}

// record appends a transaction row stamped with the balance as stored
// after the mutation. The balance is re-read rather than derived from a
// pre-mutation snapshot, so the recorded figure is one the account
// actually held. A failed write here must not undo the balance mutation
// that already happened.
func (l *Ledger) record(userID uint, txType models.TransactionType, amount int64, gameID *uint) {
	var user models.User
	if err := l.db.First(&user, userID).Error; err != nil {
		return
	}
	tx := models.Transaction{
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: user.Balance,
		GameID:       gameID,
	}
	_ = l.db.Create(&tx).Error
}
