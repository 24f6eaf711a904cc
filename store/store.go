package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/NemeanGames/jackpot-game/config"
	"github.com/NemeanGames/jackpot-game/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrGameNotFound is returned for an unknown game id.
	ErrGameNotFound = errors.New("game not found")
	// ErrSlotTaken is returned when the (game, slot number) pair is
	// already occupied. The unique index makes the losing side of a
	// concurrent double-booking fail with this instead of overwriting.
	ErrSlotTaken = errors.New("slot already taken")
)

// GameStore is the persistence layer for games and slots.
type GameStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

// WithTx rebinds the store to a running transaction.
func (s *GameStore) WithTx(tx *gorm.DB) *GameStore {
	return &GameStore{db: tx}
}

// CreateGame inserts a new filling game seeded from the tier config.
func (s *GameStore) CreateGame(tier models.Tier, cfg config.TierConfig) (*models.Game, error) {
	game := &models.Game{
		UUID:      uuid.NewString(),
		Tier:      tier,
		SlotCount: cfg.SlotCount,
		EntryCost: cfg.EntryCost,
		EdgePct:   cfg.EdgePct,
		Status:    models.StatusFilling,
	}
	if err := s.db.Create(game).Error; err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return game, nil
}

// GetGame fetches a game by primary key; nil when unknown.
func (s *GameStore) GetGame(gameID uint) (*models.Game, error) {
	var game models.Game
	if err := s.db.First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get game %d: %w", gameID, err)
	}
	return &game, nil
}

// GetGameByUUID fetches a game by its public id; nil when unknown.
func (s *GameStore) GetGameByUUID(id string) (*models.Game, error) {
	var game models.Game
	if err := s.db.Where("uuid = ?", id).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	return &game, nil
}

// GetActiveGame returns the single non-terminal game for a tier, or nil.
// Ordering by id makes concurrent readers converge on the oldest row if
// a duplicate ever slips in.
func (s *GameStore) GetActiveGame(tier models.Tier) (*models.Game, error) {
	var game models.Game
	err := s.db.
		Where("tier = ? AND status IN ?", tier, []models.GameStatus{models.StatusFilling, models.StatusFull}).
		Order("id ASC").
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active game for %s: %w", tier, err)
	}
	return &game, nil
}

// ListCompleted returns the most recent completed games for a tier.
func (s *GameStore) ListCompleted(tier models.Tier, limit int) ([]models.Game, error) {
	var games []models.Game
	err := s.db.
		Where("tier = ? AND status = ?", tier, models.StatusCompleted).
		Order("id DESC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list completed games for %s: %w", tier, err)
	}
	return games, nil
}

// MarkFull transitions filling -> full. Losing the race is not an
// error; the caller only needs the game to no longer be filling.
func (s *GameStore) MarkFull(gameID uint) error {
	err := s.db.Model(&models.Game{}).
		Where("id = ? AND status = ?", gameID, models.StatusFilling).
		Update("status", models.StatusFull).Error
	if err != nil {
		return fmt.Errorf("mark game %d full: %w", gameID, err)
	}
	return nil
}

// MarkSpinning atomically claims the spin: a single conditional update
// from filling/full to spinning. Exactly one concurrent caller gets
// claimed=true; everyone else must treat the spin as already owned.
func (s *GameStore) MarkSpinning(gameID uint) (claimed bool, err error) {
	res := s.db.Model(&models.Game{}).
		Where("id = ? AND status IN ?", gameID, []models.GameStatus{models.StatusFilling, models.StatusFull}).
		Update("status", models.StatusSpinning)
	if res.Error != nil {
		return false, fmt.Errorf("mark game %d spinning: %w", gameID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ReclaimSpinning refreshes the claim on a game stranded in spinning so
// the recovery path can re-run settlement. Returns false if some other
// actor completed it in the meantime.
func (s *GameStore) ReclaimSpinning(gameID uint) (bool, error) {
	res := s.db.Model(&models.Game{}).
		Where("id = ? AND status = ?", gameID, models.StatusSpinning).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return false, fmt.Errorf("reclaim game %d: %w", gameID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GameResult carries the settlement fields persisted in one write.
type GameResult struct {
	WinningSlot     int
	WinnerType      models.WinnerType
	WinnerID        string
	Payout          int64
	HouseCommission int64
}

// CompleteGame persists the settlement result and the terminal status.
func (s *GameStore) CompleteGame(gameID uint, result GameResult) error {
	now := time.Now()
	err := s.db.Model(&models.Game{}).
		Where("id = ?", gameID).
		Updates(map[string]interface{}{
			"winning_slot":     result.WinningSlot,
			"winner_type":      result.WinnerType,
			"winner_id":        result.WinnerID,
			"payout":           result.Payout,
			"house_commission": result.HouseCommission,
			"status":           models.StatusCompleted,
			"completed_at":     now,
		}).Error
	if err != nil {
		return fmt.Errorf("complete game %d: %w", gameID, err)
	}
	return nil
}

// ListSlots returns a game's slots ordered by slot number.
func (s *GameStore) ListSlots(gameID uint) ([]models.Slot, error) {
	var slots []models.Slot
	if err := s.db.Where("game_id = ?", gameID).Order("slot_number ASC").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list slots for game %d: %w", gameID, err)
	}
	return slots, nil
}

// CountSlots returns how many positions on the game are occupied.
func (s *GameStore) CountSlots(gameID uint) (int, error) {
	var count int64
	if err := s.db.Model(&models.Slot{}).Where("game_id = ?", gameID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count slots for game %d: %w", gameID, err)
	}
	return int(count), nil
}

// InsertSlot creates a slot record. The unique index on
// (game_id, slot_number) turns a concurrent double-booking into
// ErrSlotTaken for the loser.
func (s *GameStore) InsertSlot(slot *models.Slot) error {
	if err := s.db.Create(slot).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert slot %d for game %d: %w", slot.SlotNumber, slot.GameID, err)
	}
	return nil
}

// StuckSpinning lists games stranded in spinning for longer than grace,
// candidates for re-settlement after a crash.
func (s *GameStore) StuckSpinning(grace time.Duration) ([]models.Game, error) {
	var games []models.Game
	cutoff := time.Now().Add(-grace)
	err := s.db.
		Where("status = ? AND updated_at < ?", models.StatusSpinning, cutoff).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list stuck games: %w", err)
	}
	return games, nil
}
