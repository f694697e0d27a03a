package services

import (
	"fmt"
	"sync"
	"time"

	"quiz-arena-system/models"
)

// sentEvent is one message captured by the fake presence layer.
type sentEvent struct {
	userID  string
	event   string
	payload any
}

// fakePresence satisfies both the session and matchmaker presence contracts.
// All recorders are mutex-guarded because settlement touches them from
// goroutines.
type fakePresence struct {
	mu       sync.Mutex
	events   []sentEvent
	statuses map[string]string
	online   map[string]bool
}

func newFakePresence(onlineIDs ...string) *fakePresence {
	online := make(map[string]bool, len(onlineIDs))
	for _, id := range onlineIDs {
		online[id] = true
	}
	return &fakePresence{
		statuses: make(map[string]string),
		online:   online,
	}
}

func (f *fakePresence) SendTo(userID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{userID: userID, event: event, payload: payload})
}

func (f *fakePresence) Fanout(userIDs []string, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range userIDs {
		f.events = append(f.events, sentEvent{userID: id, event: event, payload: payload})
	}
}

func (f *fakePresence) SetStatus(userID, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = state
}

func (f *fakePresence) IsOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakePresence) status(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[userID]
}

// eventsFor returns every captured event of the given type addressed to userID.
func (f *fakePresence) eventsFor(userID, event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.userID == userID && e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakePresence) countEvents(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

// fakeItems serves a fixed item set.
type fakeItems struct {
	items []models.QuizItem
	err   error
}

func (f *fakeItems) FetchRandomItems(count int, excludeIDs []string) ([]models.QuizItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if count > len(f.items) {
		count = len(f.items)
	}
	return f.items[:count], nil
}

type rewardCall struct {
	userID string
	xp     int
	coins  int
}

// fakeLedger serves canned profiles and records every settlement write.
type fakeLedger struct {
	mu           sync.Mutex
	profiles     map[string]*PlayerProfile
	rewards      []rewardCall
	ratingDeltas map[string]int
	failFor      map[string]bool // reward writes for these users fail
}

func newFakeLedger(profiles ...*PlayerProfile) *fakeLedger {
	byID := make(map[string]*PlayerProfile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}
	return &fakeLedger{
		profiles:     byID,
		ratingDeltas: make(map[string]int),
		failFor:      make(map[string]bool),
	}
}

func (f *fakeLedger) Profile(userID string) (*PlayerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("no ledger for %s", userID)
	}
	return p, nil
}

func (f *fakeLedger) setRating(userID string, rating int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID].Rating = rating
}

func (f *fakeLedger) ApplyReward(userID string, xp, coins int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[userID] {
		return fmt.Errorf("ledger write failed for %s", userID)
	}
	f.rewards = append(f.rewards, rewardCall{userID: userID, xp: xp, coins: coins})
	return nil
}

func (f *fakeLedger) ApplyRatingDelta(userID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratingDeltas[userID] += delta
	return nil
}

func (f *fakeLedger) rewardsFor(userID string) []rewardCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rewardCall
	for _, r := range f.rewards {
		if r.userID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeLedger) rewardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rewards)
}

func (f *fakeLedger) delta(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ratingDeltas[userID]
}

// fakeMatchStore records durable match writes (which happen off-goroutine).
type fakeMatchStore struct {
	mu       sync.Mutex
	created  []*models.MatchSession
	finished []*models.MatchSession
}

func (f *fakeMatchStore) CreateMatch(m *models.MatchSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMatchStore) FinishMatch(m *models.MatchSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, m)
	return nil
}

func (f *fakeMatchStore) finishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finished)
}

// fakeRaidStore serves one boss and records terminal-state writes.
type fakeRaidStore struct {
	mu       sync.Mutex
	boss     *models.RaidBoss
	defeated []string
	expired  []string
}

func (f *fakeRaidStore) ActiveBoss() (*models.RaidBoss, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.boss == nil {
		return nil, fmt.Errorf("record not found")
	}
	return f.boss, nil
}

func (f *fakeRaidStore) CreateBoss(b *models.RaidBoss) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boss = b
	return nil
}

func (f *fakeRaidStore) ExpireActiveBosses() error { return nil }

func (f *fakeRaidStore) MarkBossDefeated(bossID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defeated = append(f.defeated, bossID)
	return nil
}

func (f *fakeRaidStore) MarkBossExpired(bossID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, bossID)
	return nil
}

func (f *fakeRaidStore) SetBossWindow(bossID string, startedAt, endsAt time.Time) error {
	return nil
}

func (f *fakeRaidStore) defeatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.defeated)
}

// fakeSessions records matchmaker pairings.
type fakeSessions struct {
	mu    sync.Mutex
	pairs [][2]string
	err   error
}

func (f *fakeSessions) CreateSession(player1ID, player2ID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pairs = append(f.pairs, [2]string{player1ID, player2ID})
	return nil
}

func (f *fakeSessions) pairCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pairs)
}

func quizItems(n int) []models.QuizItem {
	items := make([]models.QuizItem, n)
	for i := range items {
		items[i] = models.QuizItem{
			ID:      fmt.Sprintf("item-%d", i+1),
			Prompt:  fmt.Sprintf("Question %d", i+1),
			Choices: `{"a":"10","b":"125","c":"25"}`,
			Answer:  "b",
		}
	}
	return items
}
