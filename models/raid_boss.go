package models

import "time"

// BossStatus is the lifecycle state of a raid boss
type BossStatus string

const (
	BossStatusScheduled BossStatus = "scheduled"
	BossStatusActive    BossStatus = "active"
	BossStatusDefeated  BossStatus = "defeated"
	BossStatusExpired   BossStatus = "expired"
)

// RaidBoss is the durable header of a cooperative encounter. At most one boss
// is ACTIVE system-wide; spawning a new one force-expires the current.
type RaidBoss struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Slug      string     `gorm:"index;not null" json:"slug"` // room id on the wire
	MaxHP     int64      `gorm:"not null" json:"max_hp"`
	CurrentHP int64      `gorm:"not null" json:"current_hp"`
	Status    BossStatus `gorm:"type:varchar(16);not null;index;check:status IN ('scheduled','active','defeated','expired')" json:"status"`
	SpawnAt   *time.Time `gorm:"index" json:"spawn_at,omitempty"` // nil = spawn immediately
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`

	Timestamps
}

// RaidContribution is the persisted damage ledger for one participant of one
// boss. Written best-effort while the room is live.
type RaidContribution struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	BossID         string `gorm:"not null;uniqueIndex:idx_boss_participant" json:"boss_id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_boss_participant" json:"external_user_id"`
	Damage         int64  `json:"damage" gorm:"default:0"`
	Attacks        int64  `json:"attacks" gorm:"default:0"`

	Timestamps
}
