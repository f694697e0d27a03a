package models

import "time"

// MatchStatus is the lifecycle state of a head-to-head match
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusFinished  MatchStatus = "finished"
	MatchStatusAbandoned MatchStatus = "abandoned"
)

// MatchSession is the durable record of a 1v1 quiz match. The item set is
// fixed at creation and never re-rolled.
type MatchSession struct {
	ID        string      `gorm:"primaryKey;type:uuid" json:"id"`
	Player1ID string      `gorm:"index;not null" json:"player1_id"`
	Player2ID string      `gorm:"index;not null" json:"player2_id"`
	Status    MatchStatus `gorm:"type:varchar(16);not null;check:status IN ('pending','active','finished','abandoned')" json:"status"`

	ItemIDs      string     `gorm:"type:jsonb;not null" json:"item_ids"` // ordered JSON array
	Player1Score int        `json:"player1_score" gorm:"default:0"`
	Player2Score int        `json:"player2_score" gorm:"default:0"`
	WinnerID     *string    `json:"winner_id,omitempty"` // nil = draw
	RatingDelta  int        `json:"rating_delta" gorm:"default:0"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	Timestamps
}
