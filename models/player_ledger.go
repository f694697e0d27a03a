package models

import "time"

// PlayerLedger mirrors account state from the profile service and accumulates
// arena earnings (denormalized for fast settlement reads/writes).
type PlayerLedger struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service
	Username       string `json:"username"`

	Rating  int   `json:"rating" gorm:"default:1000"`
	Coins   int64 `json:"coins" gorm:"default:0"`
	TotalXP int64 `json:"total_xp" gorm:"default:0"`

	StudyGroupID *string `gorm:"index" json:"study_group_id,omitempty"` // nil = no group

	Timestamps
}

// BoostKind indicates which payout a boost doubles
type BoostKind string

const (
	BoostKindXP   BoostKind = "xp"
	BoostKindCoin BoostKind = "coin"
)

// PlayerBoost is a time-boxed payout multiplier bought in the shop
type PlayerBoost struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	Kind           BoostKind `gorm:"type:varchar(16);not null;check:kind IN ('xp','coin')" json:"kind"`
	ExpiresAt      time.Time `gorm:"index;not null" json:"expires_at"`

	Timestamps
}

// Active reports whether the boost still applies at the given instant
func (b *PlayerBoost) Active(now time.Time) bool {
	return b.ExpiresAt.After(now)
}
