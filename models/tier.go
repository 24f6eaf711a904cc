package models

// Tier identifies one of the fixed wheel configurations.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// AllTiers lists every tier the server runs a wheel for.
var AllTiers = []Tier{TierLow, TierMedium, TierHigh}

// ParseTier validates a tier name coming from a route param.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierLow, TierMedium, TierHigh:
		return Tier(s), true
	}
	return "", false
}
