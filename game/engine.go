package game

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/NemeanGames/jackpot-game/config"
	"github.com/NemeanGames/jackpot-game/ledger"
	"github.com/NemeanGames/jackpot-game/models"
	"github.com/NemeanGames/jackpot-game/store"
	"github.com/NemeanGames/jackpot-game/utils/logger"

	"gorm.io/gorm"
)

// houseCommissionPct is skimmed from the pot every round regardless of
// who wins, on top of the edge baked into the payout formula.
const houseCommissionPct = 0.10

var (
	// ErrInvalidSlot is returned for a slot number outside [1, slotCount].
	ErrInvalidSlot = errors.New("slot number out of range")
	// ErrGameClosed is returned when buying into a game that no longer
	// accepts entries.
	ErrGameClosed = errors.New("game no longer accepts entries")
	// ErrUnknownTier is returned for a tier outside the configured set.
	ErrUnknownTier = errors.New("unknown tier")
)

// Engine owns the per-tier game lifecycle: create, fill with bots,
// spin, settle, recycle. All mutations go through atomic store/ledger
// operations; the engine never caches slot occupancy or balances
// between calls.
type Engine struct {
	db     *gorm.DB
	store  *store.GameStore
	ledger *ledger.Ledger
	bus    *EventBus
	tiers  map[models.Tier]config.TierConfig

	// createMu serializes active-game creation per tier so concurrent
	// lookups cannot both insert a new game.
	createMu map[models.Tier]*sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewEngine(db *gorm.DB, st *store.GameStore, lg *ledger.Ledger, bus *EventBus, tiers map[models.Tier]config.TierConfig) *Engine {
	createMu := make(map[models.Tier]*sync.Mutex, len(tiers))
	for tier := range tiers {
		createMu[tier] = &sync.Mutex{}
	}
	return &Engine{
		db:       db,
		store:    st,
		ledger:   lg,
		bus:      bus,
		tiers:    tiers,
		createMu: createMu,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

// GetOrCreateActiveGame returns the single non-terminal game for a
// tier, creating one from the tier config if none exists.
func (e *Engine) GetOrCreateActiveGame(tier models.Tier) (*models.Game, error) {
	cfg, ok := e.tiers[tier]
	if !ok {
		return nil, ErrUnknownTier
	}

	mu := e.createMu[tier]
	mu.Lock()
	defer mu.Unlock()

	game, err := e.store.GetActiveGame(tier)
	if err != nil {
		return nil, err
	}
	if game != nil {
		return game, nil
	}

	game, err = e.store.CreateGame(tier, cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("[engine %s] created game %d (%s)", tier, game.ID, game.UUID)

	e.publishState(game.ID)
	return game, nil
}

// GetGameState is a pure read; nil when the game id is unknown.
func (e *Engine) GetGameState(gameID uint) (*State, error) {
	game, err := e.store.GetGame(gameID)
	if err != nil || game == nil {
		return nil, err
	}
	slots, err := e.store.ListSlots(gameID)
	if err != nil {
		return nil, err
	}
	return &State{
		Game:        game,
		Slots:       slots,
		FilledCount: len(slots),
		EmptyCount:  game.SlotCount - len(slots),
	}, nil
}

// AddBotEntry seats a bot on the lowest-numbered empty slot. Returns
// false without side effects on full, spinning or completed games, and
// when a concurrent insert wins the slot first.
func (e *Engine) AddBotEntry(gameID uint) (bool, error) {
	game, err := e.store.GetGame(gameID)
	if err != nil {
		return false, err
	}
	if game == nil || game.Status != models.StatusFilling {
		return false, nil
	}

	slots, err := e.store.ListSlots(gameID)
	if err != nil {
		return false, err
	}
	if len(slots) >= game.SlotCount {
		return false, nil
	}

	// Lowest empty slot; bots fill the board front-to-back.
	taken := make(map[int]bool, len(slots))
	for i := range slots {
		taken[slots[i].SlotNumber] = true
	}
	number := 0
	for n := 1; n <= game.SlotCount; n++ {
		if !taken[n] {
			number = n
			break
		}
	}
	if number == 0 {
		return false, nil
	}

	slot := &models.Slot{
		GameID:     gameID,
		SlotNumber: number,
		OwnerType:  models.OwnerBot,
		BotLabel:   e.pickBotName(),
		EntryCost:  game.EntryCost,
	}
	if err := e.store.InsertSlot(slot); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			return false, nil
		}
		return false, err
	}

	e.publishState(gameID)
	return true, nil
}

// BuySpot debits the player and seats them on the requested slot in one
// transaction, then spins the wheel if the purchase filled the board.
func (e *Engine) BuySpot(gameID uint, telegramID int64, slotNumber int) error {
	game, err := e.store.GetGame(gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return store.ErrGameNotFound
	}
	if slotNumber < 1 || slotNumber > game.SlotCount {
		return ErrInvalidSlot
	}
	if !game.Active() {
		return ErrGameClosed
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		// Re-read under the transaction: the game may have closed
		// between the check above and now.
		var fresh models.Game
		if err := tx.First(&fresh, gameID).Error; err != nil {
			return store.ErrGameNotFound
		}
		if !fresh.Active() {
			return ErrGameClosed
		}

		if err := e.ledger.WithTx(tx).Debit(telegramID, fresh.EntryCost, &fresh.ID); err != nil {
			return err
		}

		playerID := telegramID
		return e.store.WithTx(tx).InsertSlot(&models.Slot{
			GameID:     gameID,
			SlotNumber: slotNumber,
			OwnerType:  models.OwnerPlayer,
			PlayerID:   &playerID,
			EntryCost:  fresh.EntryCost,
		})
	})
	if err != nil {
		return err
	}

	logger.Infof("[engine %s] player %d bought slot %d on game %d", game.Tier, telegramID, slotNumber, gameID)
	e.publishState(gameID)

	if _, err := e.CheckAndSpinIfFull(gameID); err != nil {
		// The purchase is durable; a settlement failure here is retried
		// by the next scheduler tick.
		logger.Errorf("[engine %s] spin after purchase on game %d: %v", game.Tier, gameID, err)
	}
	return nil
}

// CheckAndSpinIfFull re-reads state and spins when every slot is
// occupied. Returns whether a spin settled.
func (e *Engine) CheckAndSpinIfFull(gameID uint) (bool, error) {
	state, err := e.GetGameState(gameID)
	if err != nil || state == nil {
		return false, err
	}
	if !state.Game.Active() || state.FilledCount < state.Game.SlotCount {
		return false, nil
	}

	// Persist full as an observable intermediate state before the spin.
	if err := e.store.MarkFull(gameID); err != nil {
		return false, err
	}
	e.publishState(gameID)

	return e.SpinGame(gameID)
}

// SpinGame claims the spin and settles the game. The claim is a single
// conditional status update, so of two concurrent callers exactly one
// settles and the other no-ops. Returns true once settlement completed.
func (e *Engine) SpinGame(gameID uint) (bool, error) {
	claimed, err := e.store.MarkSpinning(gameID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}
	return e.settle(gameID)
}

// settle runs the draw and payout for a game already in spinning
// status. Split from SpinGame so crash recovery can re-enter it.
func (e *Engine) settle(gameID uint) (bool, error) {
	game, err := e.store.GetGame(gameID)
	if err != nil || game == nil {
		return false, err
	}

	// Observers see the wheel turning before the result lands.
	e.publishState(gameID)

	slots, err := e.store.ListSlots(gameID)
	if err != nil {
		return false, err
	}

	winningSlot := e.intn(game.SlotCount) + 1
	var winner *models.Slot
	playerSlots := 0
	for i := range slots {
		if slots[i].OwnerType == models.OwnerPlayer {
			playerSlots++
		}
		if slots[i].SlotNumber == winningSlot {
			winner = &slots[i]
		}
	}

	totalPot := int64(len(slots)) * game.EntryCost
	result := store.GameResult{
		WinningSlot:     winningSlot,
		HouseCommission: int64(math.Round(float64(totalPot) * houseCommissionPct)),
	}

	switch {
	case winner == nil:
		// A gap on the wheel: only possible when a game is force-spun
		// before filling. The house keeps the round.
		result.WinnerType = models.WinnerHouse
		result.WinnerID = "house"
	case winner.OwnerType == models.OwnerBot:
		result.WinnerType = models.WinnerBot
		result.WinnerID = winner.BotLabel
	default:
		result.WinnerType = models.WinnerPlayer
		result.WinnerID = winner.OwnerDisplay()
		result.Payout = playerPayout(totalPot, playerSlots, game.SlotCount, game.EdgePct)
	}

	if err := e.store.CompleteGame(gameID, result); err != nil {
		return false, err
	}

	if result.WinnerType == models.WinnerPlayer {
		if winner.PlayerID == nil {
			// A player win with no resolvable account must not crash
			// settlement; flag it for manual reconciliation instead.
			logger.Errorf("[engine %s] RECONCILIATION: game %d settled for player winner %q with no player id; payout %d not credited",
				game.Tier, gameID, result.WinnerID, result.Payout)
		} else if err := e.ledger.Credit(*winner.PlayerID, result.Payout, &gameID); err != nil {
			logger.Errorf("[engine %s] RECONCILIATION: failed to credit payout %d to player %d for game %d: %v",
				game.Tier, result.Payout, *winner.PlayerID, gameID, err)
		}
	}

	logger.Infof("[engine %s] game %d settled: slot %d, winner %s (%s), payout %d, commission %d",
		game.Tier, gameID, winningSlot, result.WinnerID, result.WinnerType, result.Payout, result.HouseCommission)

	e.publishState(gameID)
	return true, nil
}

// playerPayout scales the pot up by the inverse of the players'
// aggregate win chance, applies the house edge, and rounds to the
// nearest multiple of 5.
func playerPayout(totalPot int64, playerSlots, slotCount, edgePct int) int64 {
	if playerSlots == 0 {
		return 0
	}
	chance := float64(playerSlots) / float64(slotCount)
	raw := (float64(totalPot) / chance) * (1 + float64(edgePct)/100)
	return int64(math.Round(raw/5)) * 5
}

// TickTier is the scheduler-driven fill loop body for one tier: spin a
// full board, otherwise close roughly a third of the remaining gap with
// bots, spinning immediately if the board fills mid-loop.
func (e *Engine) TickTier(tier models.Tier) error {
	game, err := e.GetOrCreateActiveGame(tier)
	if err != nil {
		return err
	}

	state, err := e.GetGameState(game.ID)
	if err != nil || state == nil {
		return err
	}

	if state.FilledCount >= game.SlotCount {
		_, err := e.CheckAndSpinIfFull(game.ID)
		return err
	}

	botsToAdd := (state.EmptyCount + 2) / 3
	if botsToAdd < 1 {
		botsToAdd = 1
	}

	for i := 0; i < botsToAdd; i++ {
		added, err := e.AddBotEntry(game.ID)
		if err != nil {
			return err
		}
		if !added {
			break
		}
		spun, err := e.CheckAndSpinIfFull(game.ID)
		if err != nil {
			return err
		}
		if spun {
			break
		}
	}
	return nil
}

// RecoverStuckGames re-settles games stranded in spinning longer than
// grace, e.g. after a crash between the claim and the result write.
func (e *Engine) RecoverStuckGames(grace time.Duration) error {
	stuck, err := e.store.StuckSpinning(grace)
	if err != nil {
		return err
	}
	for i := range stuck {
		reclaimed, err := e.store.ReclaimSpinning(stuck[i].ID)
		if err != nil {
			return err
		}
		if !reclaimed {
			continue
		}
		logger.Warnf("[engine %s] re-settling game %d stuck in spinning", stuck[i].Tier, stuck[i].ID)
		if _, err := e.settle(stuck[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// publishState snapshots the game and fans it out on the bus.
func (e *Engine) publishState(gameID uint) {
	game, err := e.store.GetGame(gameID)
	if err != nil || game == nil {
		return
	}
	slots, err := e.store.ListSlots(gameID)
	if err != nil {
		return
	}
	e.bus.Publish(newUpdate(game, slots))
}
