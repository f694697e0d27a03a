// services/rating.go
package services

import "math"

// EloDelta returns the rating points transferred from loser to winner using
// the logistic expected-score formula. Floored at 1 so every decisive match
// moves both ratings, even heavy-favorite wins.
func EloDelta(winnerRating, loserRating, kFactor int) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(loserRating-winnerRating)/400.0))
	delta := int(math.Round(float64(kFactor) * (1.0 - expected)))
	if delta < 1 {
		delta = 1
	}
	return delta
}
