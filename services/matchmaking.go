// services/matchmaking.go
package services

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// SessionCreator pairs two identities into a live match
type SessionCreator interface {
	CreateSession(player1ID, player2ID string) error
}

type matchmakerPresence interface {
	Notifier
	SetStatus(userID, state string)
	IsOnline(userID string) bool
}

type queueEntry struct {
	userID   string
	rating   int
	queuedAt time.Time
}

// Matchmaker pairs waiting players by rating proximity. Tie-break is the first
// compatible entry in queue order, not the closest rating — a documented
// simplification. Direct challenges bypass the queue; an acceptance is honored
// only against a recorded outstanding invitation.
type Matchmaker struct {
	mu      sync.Mutex
	entries []queueEntry
	invites map[string]string // challenger id → invited target id

	ratingRange int
	presence    matchmakerPresence
	ledger      LedgerStore
	sessions    SessionCreator
}

func NewMatchmaker(ratingRange int, presence matchmakerPresence, ledger LedgerStore, sessions SessionCreator) *Matchmaker {
	return &Matchmaker{
		invites:     make(map[string]string),
		ratingRange: ratingRange,
		presence:    presence,
		ledger:      ledger,
		sessions:    sessions,
	}
}

// currentRating reads the ledger at call time so a player who just won never
// queues with the rating they connected with.
func (m *Matchmaker) currentRating(userID string) int {
	profile, err := m.ledger.Profile(userID)
	if err != nil {
		log.Printf("matchmaker: profile lookup failed for %s: %v", userID, err)
		return 1000
	}
	return profile.Rating
}

// Enqueue either pairs the caller with the first compatible waiting player or
// stores the entry and tells the caller they are waiting.
func (m *Matchmaker) Enqueue(userID string) error {
	rating := m.currentRating(userID)

	m.mu.Lock()
	for _, e := range m.entries {
		if e.userID == userID {
			m.mu.Unlock()
			m.presence.SendTo(userID, "queue_waiting", QueueWaitingPayload{Position: m.position(userID)})
			return nil
		}
	}

	matchIdx := -1
	for i, e := range m.entries {
		diff := e.rating - rating
		if diff < 0 {
			diff = -diff
		}
		if diff <= m.ratingRange {
			matchIdx = i
			break
		}
	}

	if matchIdx < 0 {
		m.entries = append(m.entries, queueEntry{userID: userID, rating: rating, queuedAt: time.Now()})
		position := len(m.entries)
		m.mu.Unlock()

		m.presence.SetStatus(userID, StateSearching)
		m.presence.SendTo(userID, "queue_waiting", QueueWaitingPayload{Position: position})
		return nil
	}

	opponent := m.entries[matchIdx]
	m.entries = append(m.entries[:matchIdx], m.entries[matchIdx+1:]...)
	m.mu.Unlock()

	if err := m.sessions.CreateSession(opponent.userID, userID); err != nil {
		log.Printf("matchmaker: failed to create session for %s vs %s: %v", opponent.userID, userID, err)
		// put the waiting player back where they were
		m.mu.Lock()
		m.entries = append([]queueEntry{opponent}, m.entries...)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Dequeue cancels a pending search and withdraws any challenge the player has
// issued or received. Also the disconnect cleanup path.
func (m *Matchmaker) Dequeue(userID string) {
	m.mu.Lock()
	for i, e := range m.entries {
		if e.userID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	delete(m.invites, userID)
	for challenger, target := range m.invites {
		if target == userID {
			delete(m.invites, challenger)
		}
	}
	m.mu.Unlock()

	m.presence.SetStatus(userID, StateIdle)
}

// Challenge sends a point-to-point invitation, skipping the queue. The
// invitation is recorded so only the invited player can accept it; a newer
// challenge from the same player replaces the previous one.
func (m *Matchmaker) Challenge(fromID, targetID string) error {
	if targetID == fromID {
		return fmt.Errorf("cannot challenge yourself")
	}
	if !m.presence.IsOnline(targetID) {
		return fmt.Errorf("player %s is not online", targetID)
	}

	from := OpponentInfo{UserID: fromID, Rating: 1000}
	if profile, err := m.ledger.Profile(fromID); err == nil {
		from.Name = profile.Name
		from.Rating = profile.Rating
	}

	m.mu.Lock()
	m.invites[fromID] = targetID
	m.mu.Unlock()

	m.presence.SendTo(targetID, "incoming_challenge", IncomingChallengePayload{From: from})
	return nil
}

// Respond handles the challenged player's answer. Only the player the
// invitation names may respond, and the invitation is consumed either way.
// Accepting creates a session exactly like a queue match; rejecting only
// notifies the challenger.
func (m *Matchmaker) Respond(responderID, challengerID string, accept bool) error {
	m.mu.Lock()
	target, ok := m.invites[challengerID]
	if !ok || target != responderID {
		m.mu.Unlock()
		return fmt.Errorf("no pending challenge from %s", challengerID)
	}
	delete(m.invites, challengerID)
	m.mu.Unlock()

	if !accept {
		m.presence.SendTo(challengerID, "challenge_declined", ChallengeDeclinedPayload{By: responderID})
		return nil
	}
	return m.sessions.CreateSession(challengerID, responderID)
}

// QueueLength reports how many players are waiting
func (m *Matchmaker) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Matchmaker) position(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.userID == userID {
			return i + 1
		}
	}
	return 0
}
