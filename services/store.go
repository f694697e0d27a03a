// services/store.go
package services

import (
	"time"

	"quiz-arena-system/models"

	"gorm.io/gorm"
)

// ArenaStore is the gorm-backed durable side of the session engine. Gameplay
// never waits on it: managers call it from goroutines or via the persistence
// worker.
type ArenaStore struct {
	DB *gorm.DB
}

func NewArenaStore(db *gorm.DB) *ArenaStore {
	return &ArenaStore{DB: db}
}

// --- MatchStore ---

func (s *ArenaStore) CreateMatch(m *models.MatchSession) error {
	return s.DB.Create(m).Error
}

func (s *ArenaStore) FinishMatch(m *models.MatchSession) error {
	return s.DB.Model(&models.MatchSession{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"status":        m.Status,
		"player1_score": m.Player1Score,
		"player2_score": m.Player2Score,
		"winner_id":     m.WinnerID,
		"rating_delta":  m.RatingDelta,
		"started_at":    m.StartedAt,
		"ended_at":      m.EndedAt,
	}).Error
}

// MatchHistory returns a player's most recent finished matches
func (s *ArenaStore) MatchHistory(externalUserID string, limit int) ([]models.MatchSession, error) {
	var matches []models.MatchSession
	err := s.DB.Where("player1_id = ? OR player2_id = ?", externalUserID, externalUserID).
		Where("status IN ('finished','abandoned')").
		Order("ended_at DESC").
		Limit(limit).
		Find(&matches).Error
	return matches, err
}

// --- RaidStore ---

func (s *ArenaStore) ActiveBoss() (*models.RaidBoss, error) {
	var boss models.RaidBoss
	if err := s.DB.Where("status = ?", models.BossStatusActive).First(&boss).Error; err != nil {
		return nil, err
	}
	return &boss, nil
}

func (s *ArenaStore) CreateBoss(b *models.RaidBoss) error {
	return s.DB.Create(b).Error
}

// ExpireActiveBosses enforces the at-most-one-active invariant before a spawn
func (s *ArenaStore) ExpireActiveBosses() error {
	return s.DB.Model(&models.RaidBoss{}).
		Where("status = ?", models.BossStatusActive).
		Update("status", models.BossStatusExpired).Error
}

func (s *ArenaStore) MarkBossDefeated(bossID string) error {
	now := time.Now()
	return s.DB.Model(&models.RaidBoss{}).Where("id = ?", bossID).Updates(map[string]interface{}{
		"status":     models.BossStatusDefeated,
		"current_hp": 0,
		"ends_at":    &now,
	}).Error
}

func (s *ArenaStore) MarkBossExpired(bossID string) error {
	return s.DB.Model(&models.RaidBoss{}).
		Where("id = ?", bossID).
		Update("status", models.BossStatusExpired).Error
}

func (s *ArenaStore) SetBossWindow(bossID string, startedAt, endsAt time.Time) error {
	return s.DB.Model(&models.RaidBoss{}).Where("id = ?", bossID).Updates(map[string]interface{}{
		"started_at": &startedAt,
		"ends_at":    &endsAt,
	}).Error
}

// SaveBossHP mirrors the in-memory hit points; called by the persistence
// worker, failures are the worker's to log
func (s *ArenaStore) SaveBossHP(bossID string, currentHP int64) error {
	return s.DB.Model(&models.RaidBoss{}).
		Where("id = ? AND status = ?", bossID, models.BossStatusActive).
		Update("current_hp", currentHP).Error
}

// UpsertContribution writes a participant's cumulative damage ledger
func (s *ArenaStore) UpsertContribution(bossID, externalUserID string, damage, attacks int64) error {
	var contrib models.RaidContribution
	err := s.DB.Where("boss_id = ? AND external_user_id = ?", bossID, externalUserID).
		First(&contrib).Error
	if err == gorm.ErrRecordNotFound {
		return s.DB.Create(&models.RaidContribution{
			BossID:         bossID,
			ExternalUserID: externalUserID,
			Damage:         damage,
			Attacks:        attacks,
		}).Error
	}
	if err != nil {
		return err
	}
	contrib.Damage = damage
	contrib.Attacks = attacks
	return s.DB.Save(&contrib).Error
}

// ActivateBoss flips a scheduled boss to active
func (s *ArenaStore) ActivateBoss(bossID string, now time.Time) error {
	return s.DB.Model(&models.RaidBoss{}).Where("id = ?", bossID).Updates(map[string]interface{}{
		"status":     models.BossStatusActive,
		"started_at": &now,
	}).Error
}

// DueScheduledBosses lists scheduled bosses whose spawn time has passed
func (s *ArenaStore) DueScheduledBosses(now time.Time) ([]models.RaidBoss, error) {
	var bosses []models.RaidBoss
	err := s.DB.Where("status = ? AND spawn_at <= ?", models.BossStatusScheduled, now).
		Find(&bosses).Error
	return bosses, err
}

// SweepOverdueBosses expires ACTIVE boss rows whose window lapsed without a
// live room (the in-room expiry timer is authoritative while a room exists)
func (s *ArenaStore) SweepOverdueBosses(now time.Time) (int64, error) {
	result := s.DB.Model(&models.RaidBoss{}).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", models.BossStatusActive, now).
		Update("status", models.BossStatusExpired)
	return result.RowsAffected, result.Error
}
