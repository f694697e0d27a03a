// services/messages.go
package services

import "encoding/json"

// Envelope is the wire frame for every message on the arena channel, both
// directions: {"type":"submit_answer","payload":{...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- client → server payloads ---

type ChallengePayload struct {
	TargetID string `json:"target_id"`
}

type ChallengeResponsePayload struct {
	TargetID string `json:"target_id"` // the original challenger
	Accept   bool   `json:"accept"`
}

type SubmitAnswerPayload struct {
	MatchID   string `json:"match_id"`
	ItemID    string `json:"item_id"`
	Answer    string `json:"answer"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type RaidJoinPayload struct {
	RoomID string `json:"room_id"`
}

type RaidDamagePayload struct {
	RoomID string `json:"room_id"`
	Amount int64  `json:"amount"`
}

// --- server → client payloads ---

type ErrorPayload struct {
	Message string `json:"message"`
}

type PresenceInfo struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	State  string `json:"state"`
}

type PresenceSnapshotPayload struct {
	Players []PresenceInfo `json:"players"`
}

// ItemView is the sanitized client-facing shape of a quiz item. The canonical
// answer and explanation stay server-side for the life of the session.
type ItemView struct {
	ID         string            `json:"id"`
	Prompt     string            `json:"prompt"`
	Choices    map[string]string `json:"choices"`
	Difficulty int               `json:"difficulty"`
}

type OpponentInfo struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

type IncomingChallengePayload struct {
	From OpponentInfo `json:"from"`
}

type ChallengeDeclinedPayload struct {
	By string `json:"by"`
}

type QueueWaitingPayload struct {
	Position int `json:"position"`
}

type MatchStartPayload struct {
	MatchID        string       `json:"match_id"`
	Items          []ItemView   `json:"items"`
	Opponent       OpponentInfo `json:"opponent"`
	StartTimestamp int64        `json:"start_timestamp"` // unix millis, countdown target
	DurationMs     int64        `json:"duration_ms"`
}

type AnswerResultPayload struct {
	MatchID string `json:"match_id"`
	ItemID  string `json:"item_id"`
	Correct bool   `json:"correct"`
	Points  int    `json:"points,omitempty"`
	Score   int    `json:"score"`
}

type OpponentActionPayload struct {
	MatchID string `json:"match_id"`
	UserID  string `json:"user_id"`
	ItemID  string `json:"item_id"`
	Correct bool   `json:"correct"`
	Score   int    `json:"score"`
}

type MatchFinishedPayload struct {
	MatchID     string                  `json:"match_id"`
	WinnerID    *string                 `json:"winner_id"` // null = draw
	RatingDelta int                     `json:"rating_delta"`
	Scores      map[string]int          `json:"scores"`
	Rewards     map[string]RewardBundle `json:"rewards"`
}

type RaidInitPayload struct {
	RoomID       string     `json:"room_id"`
	BossName     string     `json:"boss_name"`
	MaxHP        int64      `json:"max_hp"`
	CurrentHP    int64      `json:"current_hp"`
	EndTimestamp int64      `json:"end_timestamp"` // unix millis
	Items        []ItemView `json:"items"`
}

type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Damage int64  `json:"damage"`
}

type RaidHPUpdatePayload struct {
	RoomID      string             `json:"room_id"`
	CurrentHP   int64              `json:"current_hp"`
	Attacker    string             `json:"attacker"`
	Damage      int64              `json:"damage"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"` // top 3 by damage
}

type RaidBossAbilityPayload struct {
	Kind       string `json:"kind"`
	DurationMs int64  `json:"duration_ms"`
}

type RaidVictoryPayload struct {
	RoomID      string             `json:"room_id"`
	MVP         string             `json:"mvp"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	BaseXP      int                `json:"base_xp"`
	BaseCoins   int                `json:"base_coins"`
	Reward      *RewardBundle      `json:"reward,omitempty"` // the recipient's own breakdown
}

type RaidTimeoutPayload struct {
	RoomID string `json:"room_id"`
}
