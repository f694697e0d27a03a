package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatchConfig() MatchConfig {
	return MatchConfig{
		ItemCount:         5,
		Countdown:         0, // activate inline, no timer races in tests
		Duration:          time.Minute,
		BasePoints:        10,
		SpeedBonusCeiling: 10,
		KFactor:           32,
		WinXP:             50,
		WinCoins:          25,
		LoseXP:            15,
	}
}

func newTestMatchManager(cfg MatchConfig) (*MatchManager, *fakePresence, *fakeLedger, *fakeMatchStore) {
	presence := newFakePresence("alice", "bob")
	ledger := newFakeLedger(
		&PlayerProfile{UserID: "alice", Name: "Alice", Rating: 1000, GroupMultiplier: 1.0},
		&PlayerProfile{UserID: "bob", Name: "Bob", Rating: 1000, GroupMultiplier: 1.0},
	)
	store := &fakeMatchStore{}
	mgr := NewMatchManager(cfg, &fakeItems{items: quizItems(5)}, ledger, store, presence)
	return mgr, presence, ledger, store
}

func liveMatchID(t *testing.T, presence *fakePresence, userID string) string {
	t.Helper()
	starts := presence.eventsFor(userID, "match_start")
	require.Len(t, starts, 1)
	return starts[0].payload.(MatchStartPayload).MatchID
}

func TestAnswerMatches(t *testing.T) {
	choices := map[string]string{"a": "10", "b": "125", "c": "25"}

	assert.True(t, answerMatches("b", choices, "b"), "literal key match")
	assert.True(t, answerMatches("b", choices, "125"), "key-to-value fallback")
	assert.True(t, answerMatches("b", choices, "B "), "case and whitespace normalized")
	assert.True(t, answerMatches("125", choices, "b"), "value-to-key fallback")
	assert.False(t, answerMatches("b", choices, "25"))
	assert.False(t, answerMatches("b", choices, ""))
	assert.False(t, answerMatches("", choices, "b"))
}

func TestCreateSessionStartsBothSides(t *testing.T) {
	mgr, presence, _, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	assert.Equal(t, 1, mgr.LiveCount())

	aliceStart := presence.eventsFor("alice", "match_start")
	require.Len(t, aliceStart, 1)
	payload := aliceStart[0].payload.(MatchStartPayload)
	assert.Equal(t, "bob", payload.Opponent.UserID)
	assert.Len(t, payload.Items, 5)

	assert.Equal(t, StateInSession, presence.status("alice"))
	assert.Equal(t, StateInSession, presence.status("bob"))
}

func TestMatchStartItemsAreSanitized(t *testing.T) {
	mgr, presence, _, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	payload := presence.eventsFor("alice", "match_start")[0].payload.(MatchStartPayload)

	// the wire shape carries no answer or explanation fields at all; the
	// choices must still be present for rendering
	for _, item := range payload.Items {
		assert.NotEmpty(t, item.Choices)
	}
}

func TestSubmitAnswerBeforeActivation(t *testing.T) {
	cfg := testMatchConfig()
	cfg.Countdown = time.Hour
	mgr, presence, _, _ := newTestMatchManager(cfg)

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	err := mgr.SubmitAnswer("alice", SubmitAnswerPayload{MatchID: matchID, ItemID: "item-1", Answer: "b"})
	assert.ErrorContains(t, err, "not active")
}

func TestSubmitAnswerRejections(t *testing.T) {
	mgr, presence, _, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	err := mgr.SubmitAnswer("mallory", SubmitAnswerPayload{MatchID: matchID, ItemID: "item-1", Answer: "b"})
	assert.ErrorContains(t, err, "not a participant")

	err = mgr.SubmitAnswer("alice", SubmitAnswerPayload{MatchID: "nope", ItemID: "item-1", Answer: "b"})
	assert.ErrorContains(t, err, "not found")

	err = mgr.SubmitAnswer("alice", SubmitAnswerPayload{MatchID: matchID, ItemID: "item-99", Answer: "b"})
	assert.ErrorContains(t, err, "does not belong")

	require.NoError(t, mgr.SubmitAnswer("alice", SubmitAnswerPayload{MatchID: matchID, ItemID: "item-1", Answer: "b"}))
	err = mgr.SubmitAnswer("alice", SubmitAnswerPayload{MatchID: matchID, ItemID: "item-1", Answer: "b"})
	assert.ErrorContains(t, err, "already answered")
}

// A doctored negative elapsed time would score past the speed-bonus ceiling
// (base + ceiling is the true per-answer maximum). The submission is rejected
// outright and the item stays answerable.
func TestSubmitAnswerRejectsNegativeElapsed(t *testing.T) {
	mgr, presence, _, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	err := mgr.SubmitAnswer("alice", SubmitAnswerPayload{
		MatchID: matchID, ItemID: "item-1", Answer: "b", ElapsedMs: -100000,
	})
	assert.ErrorContains(t, err, "elapsed")
	assert.Empty(t, presence.eventsFor("alice", "answer_result"), "rejected submission scores nothing")

	// the honest retry still counts, at the capped maximum
	require.NoError(t, mgr.SubmitAnswer("alice", SubmitAnswerPayload{
		MatchID: matchID, ItemID: "item-1", Answer: "b", ElapsedMs: 0,
	}))
	result := presence.eventsFor("alice", "answer_result")[0].payload.(AnswerResultPayload)
	assert.Equal(t, 20, result.Points)
}

func TestSubmitAnswerBroadcastsBothSides(t *testing.T) {
	mgr, presence, _, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	require.NoError(t, mgr.SubmitAnswer("alice", SubmitAnswerPayload{
		MatchID: matchID, ItemID: "item-1", Answer: "125", ElapsedMs: 500,
	}))

	results := presence.eventsFor("alice", "answer_result")
	require.Len(t, results, 1)
	result := results[0].payload.(AnswerResultPayload)
	assert.True(t, result.Correct)
	assert.Equal(t, 20, result.Points) // base 10 + full speed bonus
	assert.Equal(t, 20, result.Score)

	actions := presence.eventsFor("bob", "opponent_action")
	require.Len(t, actions, 1)
	action := actions[0].payload.(OpponentActionPayload)
	assert.Equal(t, "alice", action.UserID)
	assert.True(t, action.Correct)
	assert.Equal(t, 20, action.Score)
}

func TestScoreAnswerSpeedBonus(t *testing.T) {
	mgr, _, _, _ := newTestMatchManager(testMatchConfig())

	assert.Equal(t, 20, mgr.scoreAnswer(500))    // sub-second: full bonus
	assert.Equal(t, 11, mgr.scoreAnswer(9000))   // 9s: bonus 1
	assert.Equal(t, 10, mgr.scoreAnswer(10000))  // at the ceiling: bonus 0
	assert.Equal(t, 10, mgr.scoreAnswer(120000)) // never below base
}

// Full ranked-match run: alice answers everything fast, bob answers everything
// slowly. Alice wins 100-55, ratings move by the even-match delta and bob still
// gets the consolation payout.
func TestMatchCompletionSettles(t *testing.T) {
	mgr, presence, ledger, store := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	for i := 1; i <= 5; i++ {
		itemID := quizItems(5)[i-1].ID
		require.NoError(t, mgr.SubmitAnswer("alice", SubmitAnswerPayload{
			MatchID: matchID, ItemID: itemID, Answer: "b", ElapsedMs: 500,
		}))
		require.NoError(t, mgr.SubmitAnswer("bob", SubmitAnswerPayload{
			MatchID: matchID, ItemID: itemID, Answer: "b", ElapsedMs: 9000,
		}))
	}

	assert.Equal(t, 0, mgr.LiveCount(), "settled match leaves the live map")

	finished := presence.eventsFor("alice", "match_finished")
	require.Len(t, finished, 1)
	payload := finished[0].payload.(MatchFinishedPayload)
	require.NotNil(t, payload.WinnerID)
	assert.Equal(t, "alice", *payload.WinnerID)
	assert.Equal(t, 100, payload.Scores["alice"])
	assert.Equal(t, 55, payload.Scores["bob"])
	assert.Equal(t, 16, payload.RatingDelta)

	assert.Equal(t, 16, ledger.delta("alice"))
	assert.Equal(t, -16, ledger.delta("bob"))

	aliceRewards := ledger.rewardsFor("alice")
	require.Len(t, aliceRewards, 1)
	assert.Equal(t, rewardCall{userID: "alice", xp: 50, coins: 25}, aliceRewards[0])

	bobRewards := ledger.rewardsFor("bob")
	require.Len(t, bobRewards, 1)
	assert.Equal(t, rewardCall{userID: "bob", xp: 15, coins: 0}, bobRewards[0], "loser keeps the consolation xp, no coins")

	assert.Equal(t, StateIdle, presence.status("alice"))
	assert.Equal(t, StateIdle, presence.status("bob"))

	require.Eventually(t, func() bool { return store.finishedCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestTimerSettlementAndIdempotence(t *testing.T) {
	mgr, presence, ledger, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	require.NoError(t, mgr.SubmitAnswer("alice", SubmitAnswerPayload{
		MatchID: matchID, ItemID: "item-1", Answer: "b", ElapsedMs: 500,
	}))

	mgr.Settle(matchID)
	assert.Equal(t, 0, mgr.LiveCount())
	firstRewards := ledger.rewardCount()
	assert.Equal(t, 2, firstRewards)

	// second settlement attempt is a no-op: no duplicate payouts, no
	// duplicate broadcast
	mgr.Settle(matchID)
	assert.Equal(t, firstRewards, ledger.rewardCount())
	assert.Equal(t, 2, presence.countEvents("match_finished"))
}

func TestDrawPaysConsolationBothSides(t *testing.T) {
	mgr, presence, ledger, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")

	// nobody answers; the duration timer path settles a 0-0 draw
	mgr.Settle(matchID)

	payload := presence.eventsFor("alice", "match_finished")[0].payload.(MatchFinishedPayload)
	assert.Nil(t, payload.WinnerID)
	assert.Equal(t, 0, payload.RatingDelta)

	assert.Equal(t, 0, ledger.delta("alice"))
	assert.Equal(t, 0, ledger.delta("bob"))
	for _, id := range []string{"alice", "bob"} {
		rewards := ledger.rewardsFor(id)
		require.Len(t, rewards, 1)
		assert.Equal(t, rewardCall{userID: id, xp: 15, coins: 0}, rewards[0])
	}
}

func TestSettlementSurvivesOneLedgerFailure(t *testing.T) {
	mgr, presence, ledger, _ := newTestMatchManager(testMatchConfig())
	ledger.failFor["alice"] = true

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	matchID := liveMatchID(t, presence, "alice")
	mgr.Settle(matchID)

	// alice's write failed, bob still got paid and the broadcast went out
	assert.Empty(t, ledger.rewardsFor("alice"))
	require.Len(t, ledger.rewardsFor("bob"), 1)
	assert.Equal(t, 2, presence.countEvents("match_finished"))
}

func TestSettleAllDrainsLiveMatches(t *testing.T) {
	mgr, presence, _, _ := newTestMatchManager(testMatchConfig())

	require.NoError(t, mgr.CreateSession("alice", "bob"))
	require.Equal(t, 1, mgr.LiveCount())

	mgr.SettleAll()
	assert.Equal(t, 0, mgr.LiveCount())
	assert.Equal(t, 2, presence.countEvents("match_finished"))
}
