// services/ledger.go
package services

import (
	"fmt"
	"log"
	"time"

	"quiz-arena-system/models"

	"gorm.io/gorm"
)

// LedgerService is the gorm-backed user-ledger collaborator: profile snapshots
// for the payout engine, and settlement writes. Level-up side effects belong
// to the profile service, not here.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// EnsureLedger creates the mirror row for a first-time player (idempotent).
func (s *LedgerService) EnsureLedger(externalUserID, username string) (*models.PlayerLedger, error) {
	var ledger models.PlayerLedger
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&ledger).Error
	if err == gorm.ErrRecordNotFound {
		ledger = models.PlayerLedger{
			ExternalUserID: externalUserID,
			Username:       username,
			Rating:         1000,
		}
		if err := s.DB.Create(&ledger).Error; err != nil {
			return nil, err
		}
		return &ledger, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// Profile assembles the settlement snapshot: rating, active boosts, equipped
// cosmetic bonuses and study-group multiplier.
func (s *LedgerService) Profile(externalUserID string) (*PlayerProfile, error) {
	var ledger models.PlayerLedger
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&ledger).Error; err != nil {
		return nil, fmt.Errorf("ledger not found for %s: %w", externalUserID, err)
	}

	profile := &PlayerProfile{
		UserID:          externalUserID,
		Name:            ledger.Username,
		Rating:          ledger.Rating,
		GroupMultiplier: 1.0,
	}

	now := time.Now()
	var boosts []models.PlayerBoost
	if err := s.DB.Where("external_user_id = ? AND expires_at > ?", externalUserID, now).
		Find(&boosts).Error; err != nil {
		return nil, err
	}
	for _, b := range boosts {
		switch b.Kind {
		case models.BoostKindXP:
			profile.XPBoostActive = true
		case models.BoostKindCoin:
			profile.CoinBoostActive = true
		}
	}

	var equipped []models.PlayerCosmetic
	if err := s.DB.Preload("Cosmetic").
		Where("external_user_id = ? AND equipped = ?", externalUserID, true).
		Find(&equipped).Error; err != nil {
		return nil, err
	}
	for _, pc := range equipped {
		if pc.Cosmetic.XPBonusPct > 0 || pc.Cosmetic.CoinBonusPct > 0 {
			profile.Cosmetics = append(profile.Cosmetics, CosmeticBonus{
				Name:    pc.Cosmetic.Name,
				XPPct:   pc.Cosmetic.XPBonusPct,
				CoinPct: pc.Cosmetic.CoinBonusPct,
			})
		}
	}

	if ledger.StudyGroupID != nil {
		var group models.StudyGroup
		if err := s.DB.First(&group, "id = ?", *ledger.StudyGroupID).Error; err == nil {
			profile.GroupName = group.Name
			profile.GroupMultiplier = group.CoinMultiplier
		} else {
			log.Printf("⚠️ ledger: study group %s missing for %s: %v", *ledger.StudyGroupID, externalUserID, err)
		}
	}

	return profile, nil
}

// ApplyReward credits the computed totals atomically
func (s *LedgerService) ApplyReward(externalUserID string, xp, coins int) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var ledger models.PlayerLedger
		if err := tx.Where("external_user_id = ?", externalUserID).First(&ledger).Error; err != nil {
			return fmt.Errorf("ledger not found for %s: %w", externalUserID, err)
		}
		ledger.TotalXP += int64(xp)
		ledger.Coins += int64(coins)
		return tx.Save(&ledger).Error
	})
}

// ApplyRatingDelta moves a player's rating, floored at zero
func (s *LedgerService) ApplyRatingDelta(externalUserID string, delta int) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var ledger models.PlayerLedger
		if err := tx.Where("external_user_id = ?", externalUserID).First(&ledger).Error; err != nil {
			return fmt.Errorf("ledger not found for %s: %w", externalUserID, err)
		}
		ledger.Rating += delta
		if ledger.Rating < 0 {
			ledger.Rating = 0
		}
		return tx.Save(&ledger).Error
	})
}
