// services/itembank.go
package services

import (
	"quiz-arena-system/models"

	"gorm.io/gorm"
)

// ItemBank supplies random quiz items from the shared question table
type ItemBank struct {
	DB *gorm.DB
}

func NewItemBank(db *gorm.DB) *ItemBank {
	return &ItemBank{DB: db}
}

// FetchRandomItems draws count random items, skipping excludeIDs
func (b *ItemBank) FetchRandomItems(count int, excludeIDs []string) ([]models.QuizItem, error) {
	var items []models.QuizItem
	query := b.DB.Model(&models.QuizItem{})
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	if err := query.Order("RANDOM()").Limit(count).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// sanitizeItems is the only path from bank items to a client-facing payload
func sanitizeItems(items []models.QuizItem) []ItemView {
	views := make([]ItemView, len(items))
	for i, item := range items {
		views[i] = ItemView{
			ID:         item.ID,
			Prompt:     item.Prompt,
			Choices:    item.ChoiceMap(),
			Difficulty: item.Difficulty,
		}
	}
	return views
}
