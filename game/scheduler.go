package game

import (
	"sync"
	"time"

	"github.com/NemeanGames/jackpot-game/config"
	"github.com/NemeanGames/jackpot-game/models"
	"github.com/NemeanGames/jackpot-game/utils/logger"
)

// Scheduler drives the autonomous fill/spin cadence: one repeating
// timer per tier, each fully independent. A tick that panics or errors
// is logged and the timer keeps running.
type Scheduler struct {
	engine *Engine
	tiers  map[models.Tier]config.TierConfig

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewScheduler(engine *Engine, tiers map[models.Tier]config.TierConfig) *Scheduler {
	return &Scheduler{
		engine: engine,
		tiers:  tiers,
		stop:   make(chan struct{}),
	}
}

// Start launches one ticker goroutine per tier.
func (s *Scheduler) Start() {
	for tier, cfg := range s.tiers {
		s.wg.Add(1)
		go s.run(tier, cfg.FillTime)
	}
	logger.Infof("[scheduler] started %d tier loops", len(s.tiers))
}

// Stop halts all tier loops and waits for in-flight ticks to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) run(tier models.Tier, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.safeTick(tier)
		}
	}
}

// safeTick isolates one tier's failure from the others: a missed tick
// only means slower fill, the next tick retries.
func (s *Scheduler) safeTick(tier models.Tier) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[scheduler %s] tick panicked: %v", tier, r)
		}
	}()

	if err := s.engine.TickTier(tier); err != nil {
		logger.Errorf("[scheduler %s] tick failed: %v", tier, err)
	}
}
