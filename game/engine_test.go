package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/NemeanGames/jackpot-game/config"
	"github.com/NemeanGames/jackpot-game/ledger"
	"github.com/NemeanGames/jackpot-game/models"
	"github.com/NemeanGames/jackpot-game/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testTiers = map[models.Tier]config.TierConfig{
	models.TierLow:    {SlotCount: 12, EntryCost: 5, EdgePct: -2, FillTime: time.Second},
	models.TierMedium: {SlotCount: 10, EntryCost: 10, EdgePct: -10, FillTime: time.Second},
	models.TierHigh:   {SlotCount: 6, EntryCost: 25, EdgePct: -20, FillTime: time.Second},
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, config.Migrate(db))

	engine := NewEngine(db, store.New(db), ledger.New(db), NewEventBus(), testTiers)
	return engine, db
}

func TestGetOrCreateActiveGame(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilling, game.Status)
	assert.Equal(t, 6, game.SlotCount)

	// Subsequent lookups return the same game.
	again, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	assert.Equal(t, game.ID, again.ID)

	// Tiers are independent.
	low, err := e.GetOrCreateActiveGame(models.TierLow)
	require.NoError(t, err)
	assert.NotEqual(t, game.ID, low.ID)

	_, err = e.GetOrCreateActiveGame(models.Tier("vip"))
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestGetOrCreateActiveGameConcurrent(t *testing.T) {
	e, db := newTestEngine(t)

	const n = 10
	ids := make([]uint, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			game, err := e.GetOrCreateActiveGame(models.TierMedium)
			if assert.NoError(t, err) {
				ids[i] = game.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, db.Model(&models.Game{}).Where("tier = ?", models.TierMedium).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetGameStateUnknown(t *testing.T) {
	e, _ := newTestEngine(t)

	state, err := e.GetGameState(9999)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestAddBotEntryFillsFrontToBack(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		added, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
		assert.True(t, added)
	}

	state, err := e.GetGameState(game.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.FilledCount)
	assert.Equal(t, 3, state.EmptyCount)
	for i, slot := range state.Slots {
		assert.Equal(t, i+1, slot.SlotNumber)
		assert.Equal(t, models.OwnerBot, slot.OwnerType)
		assert.NotEmpty(t, slot.BotLabel)
		assert.Equal(t, game.EntryCost, slot.EntryCost)
	}
}

func TestAddBotEntrySkipsOccupiedSlots(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	// A player sits on slot 2; the next bots take 1 then 3.
	require.NoError(t, e.BuySpot(game.ID, 1001, 2))
	for i := 0; i < 2; i++ {
		added, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
		require.True(t, added)
	}

	state, err := e.GetGameState(game.ID)
	require.NoError(t, err)
	require.Len(t, state.Slots, 3)
	assert.Equal(t, models.OwnerBot, state.Slots[0].OwnerType)
	assert.Equal(t, models.OwnerPlayer, state.Slots[1].OwnerType)
	assert.Equal(t, models.OwnerBot, state.Slots[2].OwnerType)
}

func TestAddBotEntryFullBoardNoOp(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	for i := 0; i < game.SlotCount; i++ {
		added, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
		require.True(t, added)
	}

	added, err := e.AddBotEntry(game.ID)
	require.NoError(t, err)
	assert.False(t, added)

	count, err := e.store.CountSlots(game.ID)
	require.NoError(t, err)
	assert.Equal(t, game.SlotCount, count)

	// Unknown game ids are a silent no-op for the scheduler's sake.
	added, err = e.AddBotEntry(9999)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestBuySpotErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	err := e.BuySpot(9999, 1001, 1)
	assert.ErrorIs(t, err, store.ErrGameNotFound)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	assert.ErrorIs(t, e.BuySpot(game.ID, 1001, 0), ErrInvalidSlot)
	assert.ErrorIs(t, e.BuySpot(game.ID, 1001, 7), ErrInvalidSlot)

	require.NoError(t, e.BuySpot(game.ID, 1001, 1))
	assert.ErrorIs(t, e.BuySpot(game.ID, 1002, 1), store.ErrSlotTaken)

	// Starting balance 100 covers 4 entries of 25.
	require.NoError(t, e.BuySpot(game.ID, 1001, 2))
	require.NoError(t, e.BuySpot(game.ID, 1001, 3))
	require.NoError(t, e.BuySpot(game.ID, 1001, 4))
	assert.ErrorIs(t, e.BuySpot(game.ID, 1001, 5), ledger.ErrInsufficientFunds)

	// The failed purchase left no slot behind.
	count, err := e.store.CountSlots(game.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestBuySpotConcurrentSameSlot(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	// Both accounts exist up front so the race is only over the slot.
	_, err = e.ledger.GetOrCreate(1001)
	require.NoError(t, err)
	_, err = e.ledger.GetOrCreate(1002)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, uid := range []int64{1001, 1002} {
		wg.Add(1)
		go func(i int, uid int64) {
			defer wg.Done()
			errs[i] = e.BuySpot(game.ID, uid, 1)
		}(i, uid)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if assert.ErrorIs(t, err, store.ErrSlotTaken) {
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	// Exactly one debit happened; the loser's rolled back.
	u1, err := e.ledger.GetOrCreate(1001)
	require.NoError(t, err)
	u2, err := e.ledger.GetOrCreate(1002)
	require.NoError(t, err)
	assert.Equal(t, game.EntryCost, (ledger.StartingBalance-u1.Balance)+(ledger.StartingBalance-u2.Balance))
}

func TestSpinAllPlayerSlots(t *testing.T) {
	e, db := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	// Six players fill the board; the last purchase triggers the spin.
	for n := 1; n <= 6; n++ {
		require.NoError(t, e.BuySpot(game.ID, int64(2000+n), n))
	}

	settled, err := e.store.GetGame(game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, settled.Status)
	require.NotNil(t, settled.WinnerType)
	assert.Equal(t, models.WinnerPlayer, *settled.WinnerType)

	// totalPot = 6*25 = 150, playerWinChance = 1.0, edge -20%:
	// payout = 150 * 0.8 = 120, commission = round(150*0.1) = 15.
	assert.Equal(t, int64(120), settled.Payout)
	assert.Equal(t, int64(15), settled.HouseCommission)
	require.NotNil(t, settled.WinningSlot)

	winnerID := int64(2000 + *settled.WinningSlot)
	winner, err := e.ledger.GetOrCreate(winnerID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StartingBalance-25+120, winner.Balance)

	// The invariant holds: no second active game appeared until asked for.
	var active int64
	require.NoError(t, db.Model(&models.Game{}).
		Where("tier = ? AND status IN ?", models.TierHigh, []models.GameStatus{models.StatusFilling, models.StatusFull}).
		Count(&active).Error)
	assert.Zero(t, active)

	next, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	assert.NotEqual(t, game.ID, next.ID)
}

func TestSpinMixedBoard(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierLow)
	require.NoError(t, err)

	// 3 players on slots 1-3, 9 bots on the rest.
	for n := 1; n <= 3; n++ {
		require.NoError(t, e.BuySpot(game.ID, int64(3000+n), n))
	}
	for i := 0; i < 9; i++ {
		added, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
		require.True(t, added)
	}

	// Pin the draw so the test knows the winning slot up front.
	const seed = 7
	e.rng = rand.New(rand.NewSource(seed))
	expected := rand.New(rand.NewSource(seed)).Intn(game.SlotCount) + 1

	spun, err := e.CheckAndSpinIfFull(game.ID)
	require.NoError(t, err)
	assert.True(t, spun)

	settled, err := e.store.GetGame(game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, settled.Status)
	require.NotNil(t, settled.WinningSlot)
	assert.Equal(t, expected, *settled.WinningSlot)

	// totalPot = 12*5 = 60, commission = round(60*0.1) = 6 regardless
	// of the winner.
	assert.Equal(t, int64(6), settled.HouseCommission)

	if expected <= 3 {
		// Player win: payout = round5((60 / (3/12)) * 0.98) = 235.
		require.NotNil(t, settled.WinnerType)
		assert.Equal(t, models.WinnerPlayer, *settled.WinnerType)
		assert.Equal(t, int64(235), settled.Payout)

		winner, err := e.ledger.GetOrCreate(int64(3000 + expected))
		require.NoError(t, err)
		assert.Equal(t, ledger.StartingBalance-5+235, winner.Balance)
	} else {
		// Bot win: no payout, player ledgers untouched past the wager.
		require.NotNil(t, settled.WinnerType)
		assert.Equal(t, models.WinnerBot, *settled.WinnerType)
		assert.Zero(t, settled.Payout)

		for n := 1; n <= 3; n++ {
			user, err := e.ledger.GetOrCreate(int64(3000 + n))
			require.NoError(t, err)
			assert.Equal(t, ledger.StartingBalance-5, user.Balance)
			assert.Equal(t, ledger.StartingBalance, user.TotalEarned)
		}
	}
}

func TestSpinGameIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	for i := 0; i < game.SlotCount; i++ {
		added, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
		require.True(t, added)
	}

	spun, err := e.SpinGame(game.ID)
	require.NoError(t, err)
	assert.True(t, spun)

	// Re-invocation against the completed game is a no-op.
	spun, err = e.SpinGame(game.ID)
	require.NoError(t, err)
	assert.False(t, spun)

	// And so is a spin against an unknown id.
	spun, err = e.SpinGame(9999)
	require.NoError(t, err)
	assert.False(t, spun)
}

func TestCheckAndSpinIfFullNotFull(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	_, err = e.AddBotEntry(game.ID)
	require.NoError(t, err)

	spun, err := e.CheckAndSpinIfFull(game.ID)
	require.NoError(t, err)
	assert.False(t, spun)

	got, err := e.store.GetGame(game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilling, got.Status)
}

func TestForceSpinEmptySlotGoesToHouse(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	// Only slot 1 is occupied; pin the draw onto an empty slot.
	added, err := e.AddBotEntry(game.ID)
	require.NoError(t, err)
	require.True(t, added)

	const seed = 3
	expected := rand.New(rand.NewSource(seed)).Intn(game.SlotCount) + 1
	if expected == 1 {
		t.Skip("seed lands on the occupied slot; adjust seed")
	}
	e.rng = rand.New(rand.NewSource(seed))

	spun, err := e.SpinGame(game.ID)
	require.NoError(t, err)
	assert.True(t, spun)

	settled, err := e.store.GetGame(game.ID)
	require.NoError(t, err)
	require.NotNil(t, settled.WinnerType)
	assert.Equal(t, models.WinnerHouse, *settled.WinnerType)
	require.NotNil(t, settled.WinnerID)
	assert.Equal(t, "house", *settled.WinnerID)
	assert.Zero(t, settled.Payout)
	// Commission still applies: round(25*0.1) = 3.
	assert.Equal(t, int64(3), settled.HouseCommission)
}

func TestSettlePlayerWinnerWithoutAccount(t *testing.T) {
	e, db := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)

	// Slot 1 claims a player owner but carries no account reference;
	// the rest of the board is bots.
	require.NoError(t, e.store.InsertSlot(&models.Slot{
		GameID: game.ID, SlotNumber: 1,
		OwnerType: models.OwnerPlayer, EntryCost: game.EntryCost,
	}))
	for i := 0; i < 5; i++ {
		added, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
		require.True(t, added)
	}

	// Pin the draw onto slot 1.
	var seed int64
	for s := int64(1); ; s++ {
		if rand.New(rand.NewSource(s)).Intn(game.SlotCount) == 0 {
			seed = s
			break
		}
	}
	e.rng = rand.New(rand.NewSource(seed))

	spun, err := e.SpinGame(game.ID)
	require.NoError(t, err)
	assert.True(t, spun)

	// Settlement completes and records the result; the credit is
	// skipped because there is no account to pay.
	settled, err := e.store.GetGame(game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, settled.Status)
	require.NotNil(t, settled.WinnerType)
	assert.Equal(t, models.WinnerPlayer, *settled.WinnerType)
	require.NotNil(t, settled.WinningSlot)
	assert.Equal(t, 1, *settled.WinningSlot)
	// pot = 150, playerWinChance = 1/6, edge -20%: 150/(1/6)*0.8 = 720.
	assert.Equal(t, int64(720), settled.Payout)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
	var payouts int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("type = ?", models.PayoutTransaction).Count(&payouts).Error)
	assert.Zero(t, payouts)
}

func TestTickTierFillsAndEventuallySpins(t *testing.T) {
	e, db := newTestEngine(t)

	// 6 empty slots fill over ticks of ceil(empty/3) bots each:
	// 2+2+1+1, with the spin firing inside the fourth tick.
	for i := 0; i < 4; i++ {
		require.NoError(t, e.TickTier(models.TierHigh))
	}

	var completed int64
	require.NoError(t, db.Model(&models.Game{}).
		Where("tier = ? AND status = ?", models.TierHigh, models.StatusCompleted).
		Count(&completed).Error)
	assert.Equal(t, int64(1), completed)

	// The next tick starts a fresh game.
	require.NoError(t, e.TickTier(models.TierHigh))
	game, err := e.store.GetActiveGame(models.TierHigh)
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, models.StatusFilling, game.Status)
}

func TestRecoverStuckGames(t *testing.T) {
	e, _ := newTestEngine(t)

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
	}

	// Simulate a crash after the claim but before settlement.
	claimed, err := e.store.MarkSpinning(game.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.RecoverStuckGames(10*time.Millisecond))

	settled, err := e.store.GetGame(game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, settled.Status)
	require.NotNil(t, settled.WinnerType)
}

func TestStateUpdatesPublished(t *testing.T) {
	e, _ := newTestEngine(t)

	var mu sync.Mutex
	var updates []StateUpdate
	e.bus.Subscribe(TopicAll, func(u StateUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	game, err := e.GetOrCreateActiveGame(models.TierHigh)
	require.NoError(t, err)
	for i := 0; i < game.SlotCount; i++ {
		_, err := e.AddBotEntry(game.ID)
		require.NoError(t, err)
	}
	spun, err := e.CheckAndSpinIfFull(game.ID)
	require.NoError(t, err)
	require.True(t, spun)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)

	// Creation first, settlement last, with the intermediate full and
	// spinning states observable in between.
	assert.Equal(t, models.StatusFilling, updates[0].Status)
	assert.Zero(t, updates[0].FilledCount)

	seen := make(map[models.GameStatus]bool)
	for _, u := range updates {
		seen[u.Status] = true
		assert.Equal(t, game.UUID, u.GameUUID)
	}
	assert.True(t, seen[models.StatusFull])
	assert.True(t, seen[models.StatusSpinning])

	last := updates[len(updates)-1]
	assert.Equal(t, models.StatusCompleted, last.Status)
	assert.Equal(t, game.SlotCount, last.FilledCount)
	require.NotNil(t, last.Result)
	assert.NotZero(t, last.Result.WinningSlot)
	assert.Equal(t, int64(15), last.Result.HouseCommission)
}

func TestPlayerPayout(t *testing.T) {
	// Worked examples plus rounding behavior.
	assert.Equal(t, int64(120), playerPayout(150, 6, 6, -20))
	assert.Equal(t, int64(235), playerPayout(60, 3, 12, -2))
	assert.Zero(t, playerPayout(60, 0, 12, -2))
	// Rounds to the nearest multiple of 5.
	assert.Equal(t, int64(0), playerPayout(1, 1, 1, -20)%5)
}
