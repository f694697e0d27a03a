package models

// StudyGroup mirrors the cooperative group service. The group's tier grants a
// coin multiplier applied as a bonus on top of base payouts.
type StudyGroup struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name           string  `gorm:"not null" json:"name"`
	Tier           int     `json:"tier" gorm:"default:1"`
	CoinMultiplier float64 `json:"coin_multiplier" gorm:"default:1.0"` // 1.0 = no bonus

	Timestamps
}
