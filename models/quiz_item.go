package models

import "encoding/json"

// QuizItem is a question from the item bank. Answer and Explanation never
// leave the server while a session is live.
type QuizItem struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Prompt      string `gorm:"type:text;not null" json:"prompt"`
	Choices     string `gorm:"type:jsonb;not null" json:"choices"` // {"a":"10","b":"125","c":"25"}
	Answer      string `gorm:"not null" json:"-"`                  // option key or literal option text
	Explanation string `gorm:"type:text" json:"-"`
	Difficulty  int    `json:"difficulty" gorm:"default:1"`

	Timestamps
}

// ChoiceMap decodes the stored choices JSON. A malformed row yields an empty
// map rather than an error; the answer check then falls back to literal
// comparison only.
func (q *QuizItem) ChoiceMap() map[string]string {
	choices := map[string]string{}
	if q.Choices != "" {
		_ = json.Unmarshal([]byte(q.Choices), &choices)
	}
	return choices
}
