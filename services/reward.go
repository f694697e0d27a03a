// services/reward.go
package services

import (
	"fmt"
	"math"
)

// CosmeticBonus is one equipped cosmetic's standing percentage bonus.
type CosmeticBonus struct {
	Name    string
	XPPct   float64 // 0.10 = +10% XP
	CoinPct float64
}

// PlayerProfile is the ledger snapshot the payout engine works from: rating,
// active boosts, equipped cosmetics and study-group tier at settlement time.
type PlayerProfile struct {
	UserID          string
	Name            string
	Rating          int
	XPBoostActive   bool
	CoinBoostActive bool
	Cosmetics       []CosmeticBonus
	GroupName       string
	GroupMultiplier float64 // 1.0 = no group bonus
}

// RewardBundle is the result of one settlement calculation. Produced fresh on
// every call, never cached or persisted.
type RewardBundle struct {
	BaseXP     int      `json:"base_xp"`
	BaseCoins  int      `json:"base_coins"`
	FinalXP    int      `json:"final_xp"`
	FinalCoins int      `json:"final_coins"`
	Bonuses    []string `json:"bonuses"`
}

// ComputeRewards stacks the player's bonuses onto the base payout. Ordering
// matters: boosts double the base once, then each cosmetic percentage and the
// group multiplier are computed from the ORIGINAL base, so additive bonuses
// never compound with the doubling or with each other. A bonus is listed only
// when it contributed a strictly positive amount.
func ComputeRewards(p *PlayerProfile, baseXP, baseCoins int) RewardBundle {
	bundle := RewardBundle{
		BaseXP:     baseXP,
		BaseCoins:  baseCoins,
		FinalXP:    baseXP,
		FinalCoins: baseCoins,
		Bonuses:    []string{},
	}

	if p.XPBoostActive && baseXP > 0 {
		bundle.FinalXP = baseXP * 2
		bundle.Bonuses = append(bundle.Bonuses, fmt.Sprintf("XP boost x2 (+%d XP)", baseXP))
	}
	if p.CoinBoostActive && baseCoins > 0 {
		bundle.FinalCoins = baseCoins * 2
		bundle.Bonuses = append(bundle.Bonuses, fmt.Sprintf("Coin boost x2 (+%d coins)", baseCoins))
	}

	for _, c := range p.Cosmetics {
		if c.XPPct > 0 {
			add := int(math.Floor(float64(baseXP) * c.XPPct))
			if add > 0 {
				bundle.FinalXP += add
				bundle.Bonuses = append(bundle.Bonuses, fmt.Sprintf("%s (+%d XP)", c.Name, add))
			}
		}
		if c.CoinPct > 0 {
			add := int(math.Ceil(float64(baseCoins) * c.CoinPct))
			if add > 0 {
				bundle.FinalCoins += add
				bundle.Bonuses = append(bundle.Bonuses, fmt.Sprintf("%s (+%d coins)", c.Name, add))
			}
		}
	}

	if p.GroupMultiplier > 1.0 {
		add := int(math.Ceil(float64(baseCoins) * (p.GroupMultiplier - 1.0)))
		if add == 0 && baseCoins > 0 {
			add = 1
		}
		if add > 0 {
			bundle.FinalCoins += add
			name := p.GroupName
			if name == "" {
				name = "Study group"
			}
			bundle.Bonuses = append(bundle.Bonuses, fmt.Sprintf("%s bonus (+%d coins)", name, add))
		}
	}

	return bundle
}
