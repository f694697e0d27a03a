// services/match_session.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"quiz-arena-system/models"

	"github.com/google/uuid"
)

// ItemSource is the question-supply collaborator
type ItemSource interface {
	FetchRandomItems(count int, excludeIDs []string) ([]models.QuizItem, error)
}

// LedgerStore is the user-ledger collaborator consulted at settlement
type LedgerStore interface {
	Profile(userID string) (*PlayerProfile, error)
	ApplyReward(userID string, xp, coins int) error
	ApplyRatingDelta(userID string, delta int) error
}

// MatchStore persists the durable half of a match session. Writes are
// fire-and-forget relative to gameplay broadcasts.
type MatchStore interface {
	CreateMatch(m *models.MatchSession) error
	FinishMatch(m *models.MatchSession) error
}

type sessionPresence interface {
	Notifier
	SetStatus(userID, state string)
}

// MatchConfig holds the tunables for head-to-head matches
type MatchConfig struct {
	ItemCount         int
	Countdown         time.Duration
	Duration          time.Duration
	BasePoints        int
	SpeedBonusCeiling int
	KFactor           int
	WinXP             int
	WinCoins          int
	LoseXP            int
}

type matchParticipant struct {
	userID   string
	score    int
	answered map[string]bool
}

// liveMatch is the ephemeral half of a session. All mutations happen under the
// manager mutex within one call, never across a store round trip.
type liveMatch struct {
	id          string
	status      models.MatchStatus
	items       []models.QuizItem
	players     map[string]*matchParticipant
	p1, p2      string
	startedAt   time.Time
	settleTimer *time.Timer
}

func (lm *liveMatch) item(itemID string) *models.QuizItem {
	for i := range lm.items {
		if lm.items[i].ID == itemID {
			return &lm.items[i]
		}
	}
	return nil
}

func (lm *liveMatch) complete() bool {
	for _, p := range lm.players {
		if len(p.answered) < len(lm.items) {
			return false
		}
	}
	return true
}

// matchOutcome is the settlement snapshot taken when a match leaves the live
// map; everything after that point works off this copy.
type matchOutcome struct {
	id        string
	p1, p2    string
	scores    map[string]int
	itemIDs   []string
	startedAt time.Time
}

// MatchManager owns every live match end-to-end: creation, authoritative
// scoring, timeouts and settlement.
type MatchManager struct {
	mu   sync.Mutex
	live map[string]*liveMatch

	cfg      MatchConfig
	items    ItemSource
	ledger   LedgerStore
	store    MatchStore
	presence sessionPresence
}

func NewMatchManager(cfg MatchConfig, items ItemSource, ledger LedgerStore, store MatchStore, presence sessionPresence) *MatchManager {
	return &MatchManager{
		live:     make(map[string]*liveMatch),
		cfg:      cfg,
		items:    items,
		ledger:   ledger,
		store:    store,
		presence: presence,
	}
}

// CreateSession draws the item set, records the durable half and tells both
// players the match is starting. The item set is fixed here, never re-rolled.
func (m *MatchManager) CreateSession(player1ID, player2ID string) error {
	items, err := m.items.FetchRandomItems(m.cfg.ItemCount, nil)
	if err != nil {
		return fmt.Errorf("failed to draw items: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("item bank is empty")
	}

	lm := &liveMatch{
		id:     uuid.NewString(),
		status: models.MatchStatusPending,
		items:  items,
		p1:     player1ID,
		p2:     player2ID,
		players: map[string]*matchParticipant{
			player1ID: {userID: player1ID, answered: make(map[string]bool)},
			player2ID: {userID: player2ID, answered: make(map[string]bool)},
		},
	}

	m.mu.Lock()
	m.live[lm.id] = lm
	m.mu.Unlock()

	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	idsJSON, _ := json.Marshal(itemIDs)
	record := &models.MatchSession{
		ID:        lm.id,
		Player1ID: player1ID,
		Player2ID: player2ID,
		Status:    models.MatchStatusPending,
		ItemIDs:   string(idsJSON),
	}
	go func() {
		if err := m.store.CreateMatch(record); err != nil {
			log.Printf("match %s: failed to persist creation: %v", lm.id, err)
		}
	}()

	m.presence.SetStatus(player1ID, StateInSession)
	m.presence.SetStatus(player2ID, StateInSession)

	views := sanitizeItems(items)
	startTs := time.Now().Add(m.cfg.Countdown).UnixMilli()
	m.presence.SendTo(player1ID, "match_start", MatchStartPayload{
		MatchID:        lm.id,
		Items:          views,
		Opponent:       m.opponentInfo(player2ID),
		StartTimestamp: startTs,
		DurationMs:     m.cfg.Duration.Milliseconds(),
	})
	m.presence.SendTo(player2ID, "match_start", MatchStartPayload{
		MatchID:        lm.id,
		Items:          views,
		Opponent:       m.opponentInfo(player1ID),
		StartTimestamp: startTs,
		DurationMs:     m.cfg.Duration.Milliseconds(),
	})

	if m.cfg.Countdown <= 0 {
		m.activate(lm.id)
	} else {
		time.AfterFunc(m.cfg.Countdown, func() { m.activate(lm.id) })
	}
	return nil
}

func (m *MatchManager) opponentInfo(userID string) OpponentInfo {
	info := OpponentInfo{UserID: userID}
	if profile, err := m.ledger.Profile(userID); err == nil {
		info.Name = profile.Name
		info.Rating = profile.Rating
	}
	return info
}

// activate flips PENDING → ACTIVE once the countdown elapses and arms the
// wall-clock settle timer.
func (m *MatchManager) activate(matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lm, ok := m.live[matchID]
	if !ok || lm.status != models.MatchStatusPending {
		return
	}
	lm.status = models.MatchStatusActive
	lm.startedAt = time.Now()
	lm.settleTimer = time.AfterFunc(m.cfg.Duration, func() { m.Settle(matchID) })
}

// SubmitAnswer verifies a submission against the server-held answer key,
// credits points and broadcasts the result to both sides. Completing the set
// on both sides settles the match immediately.
func (m *MatchManager) SubmitAnswer(userID string, p SubmitAnswerPayload) error {
	m.mu.Lock()

	lm, ok := m.live[p.MatchID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("match not found or already finished")
	}
	part, ok := lm.players[userID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("you are not a participant of this match")
	}
	if lm.status != models.MatchStatusActive {
		m.mu.Unlock()
		return fmt.Errorf("match is not active")
	}
	item := lm.item(p.ItemID)
	if item == nil {
		m.mu.Unlock()
		return fmt.Errorf("item does not belong to this match")
	}
	if part.answered[p.ItemID] {
		m.mu.Unlock()
		return fmt.Errorf("item already answered")
	}
	// a negative elapsed time would inflate the speed bonus past the ceiling
	if p.ElapsedMs < 0 {
		m.mu.Unlock()
		return fmt.Errorf("invalid elapsed time")
	}

	correct := answerMatches(item.Answer, item.ChoiceMap(), p.Answer)
	points := 0
	if correct {
		points = m.scoreAnswer(p.ElapsedMs)
		part.score += points
	}
	part.answered[p.ItemID] = true

	opponentID := lm.p1
	if userID == lm.p1 {
		opponentID = lm.p2
	}
	score := part.score

	var outcome *matchOutcome
	if lm.complete() {
		outcome = m.finishLocked(lm)
	}
	m.mu.Unlock()

	m.presence.SendTo(userID, "answer_result", AnswerResultPayload{
		MatchID: p.MatchID,
		ItemID:  p.ItemID,
		Correct: correct,
		Points:  points,
		Score:   score,
	})
	m.presence.SendTo(opponentID, "opponent_action", OpponentActionPayload{
		MatchID: p.MatchID,
		UserID:  userID,
		ItemID:  p.ItemID,
		Correct: correct,
		Score:   score,
	})

	if outcome != nil {
		m.settle(outcome)
	}
	return nil
}

func (m *MatchManager) scoreAnswer(elapsedMs int64) int {
	bonus := m.cfg.SpeedBonusCeiling - int(elapsedMs/1000)
	if bonus < 0 {
		bonus = 0
	}
	return m.cfg.BasePoints + bonus
}

// Settle is the timer path: the wall-clock duration elapsed before both sides
// finished. A match that already settled is gone from the live map, so a
// second call is a no-op.
func (m *MatchManager) Settle(matchID string) {
	m.mu.Lock()
	lm, ok := m.live[matchID]
	if !ok {
		m.mu.Unlock()
		return
	}
	outcome := m.finishLocked(lm)
	m.mu.Unlock()

	m.settle(outcome)
}

// finishLocked removes the match from the live map and snapshots everything
// settlement needs. Removal under the lock is what makes settlement
// exactly-once.
func (m *MatchManager) finishLocked(lm *liveMatch) *matchOutcome {
	lm.status = models.MatchStatusFinished
	if lm.settleTimer != nil {
		lm.settleTimer.Stop()
	}
	delete(m.live, lm.id)

	scores := make(map[string]int, 2)
	for id, p := range lm.players {
		scores[id] = p.score
	}
	itemIDs := make([]string, len(lm.items))
	for i, it := range lm.items {
		itemIDs[i] = it.ID
	}
	return &matchOutcome{
		id:        lm.id,
		p1:        lm.p1,
		p2:        lm.p2,
		scores:    scores,
		itemIDs:   itemIDs,
		startedAt: lm.startedAt,
	}
}

func (m *MatchManager) settle(o *matchOutcome) {
	var winnerID, loserID string
	switch {
	case o.scores[o.p1] > o.scores[o.p2]:
		winnerID, loserID = o.p1, o.p2
	case o.scores[o.p2] > o.scores[o.p1]:
		winnerID, loserID = o.p2, o.p1
	}

	profiles := map[string]*PlayerProfile{}
	for _, id := range []string{o.p1, o.p2} {
		profile, err := m.ledger.Profile(id)
		if err != nil {
			log.Printf("match %s: profile lookup failed for %s: %v", o.id, id, err)
			profile = &PlayerProfile{UserID: id, GroupMultiplier: 1.0}
		}
		profiles[id] = profile
	}

	delta := 0
	rewards := map[string]RewardBundle{}
	if winnerID != "" {
		delta = EloDelta(profiles[winnerID].Rating, profiles[loserID].Rating, m.cfg.KFactor)
		if err := m.ledger.ApplyRatingDelta(winnerID, delta); err != nil {
			log.Printf("match %s: rating credit failed for %s: %v", o.id, winnerID, err)
		}
		if err := m.ledger.ApplyRatingDelta(loserID, -delta); err != nil {
			log.Printf("match %s: rating debit failed for %s: %v", o.id, loserID, err)
		}
		rewards[winnerID] = ComputeRewards(profiles[winnerID], m.cfg.WinXP, m.cfg.WinCoins)
		rewards[loserID] = ComputeRewards(profiles[loserID], m.cfg.LoseXP, 0)
	} else {
		// draw: both sides get the consolation payout
		rewards[o.p1] = ComputeRewards(profiles[o.p1], m.cfg.LoseXP, 0)
		rewards[o.p2] = ComputeRewards(profiles[o.p2], m.cfg.LoseXP, 0)
	}

	// one player's ledger failure must not cost the other their payout
	for id, bundle := range rewards {
		if err := m.ledger.ApplyReward(id, bundle.FinalXP, bundle.FinalCoins); err != nil {
			log.Printf("match %s: reward payout failed for %s: %v", o.id, id, err)
		}
	}

	idsJSON, _ := json.Marshal(o.itemIDs)
	now := time.Now()
	record := &models.MatchSession{
		ID:           o.id,
		Player1ID:    o.p1,
		Player2ID:    o.p2,
		Status:       models.MatchStatusFinished,
		ItemIDs:      string(idsJSON),
		Player1Score: o.scores[o.p1],
		Player2Score: o.scores[o.p2],
		RatingDelta:  delta,
		EndedAt:      &now,
	}
	if !o.startedAt.IsZero() {
		started := o.startedAt
		record.StartedAt = &started
	}
	var winner *string
	if winnerID != "" {
		w := winnerID
		winner = &w
		record.WinnerID = &w
	}
	go func() {
		if err := m.store.FinishMatch(record); err != nil {
			log.Printf("match %s: failed to persist result: %v", o.id, err)
		}
	}()

	m.presence.Fanout([]string{o.p1, o.p2}, "match_finished", MatchFinishedPayload{
		MatchID:     o.id,
		WinnerID:    winner,
		RatingDelta: delta,
		Scores:      o.scores,
		Rewards:     rewards,
	})
	m.presence.SetStatus(o.p1, StateIdle)
	m.presence.SetStatus(o.p2, StateIdle)
}

// SettleAll drains every live match, settling each on current scores. Used on
// shutdown so in-flight matches record an outcome instead of vanishing.
func (m *MatchManager) SettleAll() {
	m.mu.Lock()
	var outcomes []*matchOutcome
	for _, lm := range m.live {
		outcomes = append(outcomes, m.finishLocked(lm))
	}
	m.mu.Unlock()

	for _, o := range outcomes {
		m.settle(o)
	}
}

// LiveCount reports how many matches are currently in play
func (m *MatchManager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// answerMatches compares a submission against the canonical answer. The
// canonical value may be stored either as an option key ("b") or as the
// literal option text ("125"); both representations must compare correct, in
// either direction.
func answerMatches(canonical string, choices map[string]string, submission string) bool {
	sub := normalizeAnswer(submission)
	can := normalizeAnswer(canonical)
	if sub == "" || can == "" {
		return false
	}
	if sub == can {
		return true
	}
	for key, text := range choices {
		k := normalizeAnswer(key)
		t := normalizeAnswer(text)
		if k == can && sub == t {
			return true
		}
		if k == sub && t == can {
			return true
		}
	}
	return false
}
