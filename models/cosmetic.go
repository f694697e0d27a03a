package models

// CosmeticItem is a shop item; equipped cosmetics may carry a standing
// percentage bonus on XP and/or coin payouts.
type CosmeticItem struct {
	ID           string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	XPBonusPct   float64 `json:"xp_bonus_pct" gorm:"default:0"`   // e.g. 0.10 = +10% XP
	CoinBonusPct float64 `json:"coin_bonus_pct" gorm:"default:0"` // e.g. 0.05 = +5% coins

	Timestamps
}

// PlayerCosmetic links an owned cosmetic to a player
type PlayerCosmetic struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`
	CosmeticItemID string `gorm:"index;not null" json:"cosmetic_item_id"`
	Equipped       bool   `gorm:"default:false;index" json:"equipped"`

	Cosmetic CosmeticItem `gorm:"foreignKey:CosmeticItemID" json:"cosmetic"`

	Timestamps
}
