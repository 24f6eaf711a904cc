package game

import "github.com/NemeanGames/jackpot-game/models"

// SlotView is the wire form of an occupied slot.
type SlotView struct {
	SlotNumber int              `json:"slot_number"`
	OwnerType  models.OwnerType `json:"owner_type"`
	OwnerID    string           `json:"owner_id"`
}

// ResultView is present on an update once the game has settled.
type ResultView struct {
	WinningSlot     int               `json:"winning_slot"`
	WinnerType      models.WinnerType `json:"winner_type"`
	WinnerID        string            `json:"winner_id"`
	Payout          int64             `json:"payout"`
	HouseCommission int64             `json:"house_commission"`
}

// StateUpdate is the snapshot published after every state-changing
// operation. It is transient and never persisted.
type StateUpdate struct {
	GameID      uint              `json:"game_id"`
	GameUUID    string            `json:"game_uuid"`
	Tier        models.Tier       `json:"tier"`
	Status      models.GameStatus `json:"status"`
	FilledCount int               `json:"filled_count"`
	SlotCount   int               `json:"slot_count"`
	Slots       []SlotView        `json:"slots"`
	Result      *ResultView       `json:"result,omitempty"`
}

// State is the read model returned by Engine.GetGameState.
type State struct {
	Game        *models.Game  `json:"game"`
	Slots       []models.Slot `json:"slots"`
	FilledCount int           `json:"filled_count"`
	EmptyCount  int           `json:"empty_count"`
}

// newUpdate builds the published snapshot from persisted rows.
func newUpdate(g *models.Game, slots []models.Slot) StateUpdate {
	update := StateUpdate{
		GameID:      g.ID,
		GameUUID:    g.UUID,
		Tier:        g.Tier,
		Status:      g.Status,
		FilledCount: len(slots),
		SlotCount:   g.SlotCount,
		Slots:       make([]SlotView, 0, len(slots)),
	}
	for i := range slots {
		update.Slots = append(update.Slots, SlotView{
			SlotNumber: slots[i].SlotNumber,
			OwnerType:  slots[i].OwnerType,
			OwnerID:    slots[i].OwnerDisplay(),
		})
	}
	if g.Status == models.StatusCompleted && g.WinnerType != nil {
		result := &ResultView{
			WinnerType:      *g.WinnerType,
			Payout:          g.Payout,
			HouseCommission: g.HouseCommission,
		}
		if g.WinningSlot != nil {
			result.WinningSlot = *g.WinningSlot
		}
		if g.WinnerID != nil {
			result.WinnerID = *g.WinnerID
		}
		update.Result = result
	}
	return update
}
