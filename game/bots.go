package game

// botNames is the fixed pool the engine draws display labels from when
// it seats a bot. Bots pay a nominal entry cost that is never debited
// from any ledger account.
var botNames = []string{
	"LuckyLuke",
	"SpinMaster",
	"WheelyFast",
	"BigWinBen",
	"GoldenGiza",
	"RocketRita",
	"JackpotJoe",
	"DizzyDana",
	"TurboTeddy",
	"MysticMara",
	"CaptainChip",
	"NeonNadia",
}

func (e *Engine) pickBotName() string {
	return botNames[e.intn(len(botNames))]
}
