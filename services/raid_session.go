// services/raid_session.go
package services

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quiz-arena-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// RaidStore persists the durable half of a raid. Live-gameplay writes flow
// through the RaidUpdate channel instead and are best-effort.
type RaidStore interface {
	ActiveBoss() (*models.RaidBoss, error)
	CreateBoss(b *models.RaidBoss) error
	ExpireActiveBosses() error
	MarkBossDefeated(bossID string) error
	MarkBossExpired(bossID string) error
	SetBossWindow(bossID string, startedAt, endsAt time.Time) error
}

// RaidUpdate is one best-effort persistence unit: the mirrored hit points plus
// the attacker's cumulative contribution.
type RaidUpdate struct {
	BossID    string
	CurrentHP int64
	UserID    string
	Damage    int64
	Attacks   int64
}

// RaidConfig holds the tunables for cooperative boss rooms
type RaidConfig struct {
	Capacity        int
	Duration        time.Duration
	AbilityInterval time.Duration
	MaxHit          int64 // per-attack damage ceiling (anti-cheat clamp)
	RewardXP        int
	RewardCoins     int
	ItemCount       int
}

type raidParticipant struct {
	damage  int64
	attacks int64
}

// raidRoom is the ephemeral aggregate for one boss. Exists only while the
// encounter is live; torn down unconditionally on any terminal transition.
type raidRoom struct {
	id     string
	bossID string
	name   string
	maxHP  int64
	hp     int64
	endsAt time.Time
	status models.BossStatus

	participants map[string]*raidParticipant

	expiry      *time.Timer
	abilityDone chan struct{}
}

var bossAbilities = []RaidBossAbilityPayload{
	{Kind: "scramble_choices", DurationMs: 6000},
	{Kind: "dim_screen", DurationMs: 5000},
	{Kind: "half_points", DurationMs: 8000},
	{Kind: "speed_quiz", DurationMs: 10000},
}

// RaidManager owns every live raid room: joins, concurrent damage, periodic
// boss abilities, victory detection and settlement.
type RaidManager struct {
	mu    sync.Mutex
	rooms map[string]*raidRoom

	cfg      RaidConfig
	items    ItemSource
	ledger   LedgerStore
	store    RaidStore
	presence sessionPresence
	persist  chan<- RaidUpdate
}

func NewRaidManager(cfg RaidConfig, items ItemSource, ledger LedgerStore, store RaidStore, presence sessionPresence, persist chan<- RaidUpdate) *RaidManager {
	return &RaidManager{
		rooms:    make(map[string]*raidRoom),
		cfg:      cfg,
		items:    items,
		ledger:   ledger,
		store:    store,
		presence: presence,
		persist:  persist,
	}
}

// SpawnBoss force-spawns a new boss, expiring any currently active one. A
// future spawnAt leaves the boss scheduled for the gocron job to activate.
func (m *RaidManager) SpawnBoss(name string, maxHP int64, spawnAt *time.Time) (*models.RaidBoss, error) {
	if name == "" || maxHP <= 0 {
		return nil, fmt.Errorf("boss needs a name and positive hit points")
	}

	id := uuid.NewString()
	boss := &models.RaidBoss{
		ID:        id,
		Name:      name,
		Slug:      fmt.Sprintf("%s-%s", slug.Make(name), id[:8]),
		MaxHP:     maxHP,
		CurrentHP: maxHP,
	}

	if spawnAt != nil && spawnAt.After(time.Now()) {
		boss.Status = models.BossStatusScheduled
		boss.SpawnAt = spawnAt
		if err := m.store.CreateBoss(boss); err != nil {
			return nil, err
		}
		return boss, nil
	}

	// tear down any room still running for the previous boss
	m.TeardownLiveRooms()

	if err := m.store.ExpireActiveBosses(); err != nil {
		return nil, fmt.Errorf("failed to expire current boss: %w", err)
	}

	boss.Status = models.BossStatusActive
	now := time.Now()
	boss.StartedAt = &now
	if err := m.store.CreateBoss(boss); err != nil {
		return nil, err
	}
	log.Printf("🗿 raid: spawned boss %q (%s) with %d HP", name, boss.Slug, maxHP)
	return boss, nil
}

// Join registers the caller in the boss room, creating the room on first join.
// Joins beyond capacity are rejected, not queued.
func (m *RaidManager) Join(userID, roomID string) error {
	boss, err := m.store.ActiveBoss()
	if err != nil {
		return fmt.Errorf("no active raid boss")
	}
	if roomID != "" && roomID != boss.Slug {
		return fmt.Errorf("raid room not found")
	}

	m.mu.Lock()
	room, ok := m.rooms[boss.Slug]
	if !ok {
		// the defeat write is async; a join racing the killing blow can
		// still see the boss ACTIVE in the store with zero hit points
		if boss.CurrentHP <= 0 {
			m.mu.Unlock()
			return fmt.Errorf("raid boss is already defeated")
		}
		room = m.openRoomLocked(boss)
	}

	if _, member := room.participants[userID]; !member {
		if len(room.participants) >= m.cfg.Capacity {
			m.mu.Unlock()
			return fmt.Errorf("raid room is full (%d players)", m.cfg.Capacity)
		}
		room.participants[userID] = &raidParticipant{}
	}
	init := RaidInitPayload{
		RoomID:       room.id,
		BossName:     room.name,
		MaxHP:        room.maxHP,
		CurrentHP:    room.hp,
		EndTimestamp: room.endsAt.UnixMilli(),
	}
	m.mu.Unlock()

	if items, err := m.items.FetchRandomItems(m.cfg.ItemCount, nil); err == nil {
		init.Items = sanitizeItems(items)
	} else {
		log.Printf("raid %s: failed to draw items for %s: %v", room.id, userID, err)
	}

	m.presence.SetStatus(userID, StateInSession)
	m.presence.SendTo(userID, "raid_init", init)
	return nil
}

// openRoomLocked creates the ephemeral aggregate for the boss and arms both
// timers. Caller holds the manager mutex.
func (m *RaidManager) openRoomLocked(boss *models.RaidBoss) *raidRoom {
	now := time.Now()
	room := &raidRoom{
		id:           boss.Slug,
		bossID:       boss.ID,
		name:         boss.Name,
		maxHP:        boss.MaxHP,
		hp:           boss.CurrentHP,
		endsAt:       now.Add(m.cfg.Duration),
		status:       models.BossStatusActive,
		participants: make(map[string]*raidParticipant),
		abilityDone:  make(chan struct{}),
	}
	roomID := room.id
	room.expiry = time.AfterFunc(m.cfg.Duration, func() { m.expireRoom(roomID) })
	go m.abilityLoop(room)
	m.rooms[room.id] = room

	go func() {
		if err := m.store.SetBossWindow(room.bossID, now, room.endsAt); err != nil {
			log.Printf("raid %s: failed to persist encounter window: %v", room.id, err)
		}
	}()
	return room
}

// SubmitDamage applies one clamped hit to the shared hit-point pool and
// broadcasts the new state to the whole room. Past the room's end time the
// call is a no-op: the expiry timer is authoritative, not the submission path.
func (m *RaidManager) SubmitDamage(userID string, p RaidDamagePayload) error {
	m.mu.Lock()

	room, ok := m.rooms[p.RoomID]
	if !ok || room.status != models.BossStatusActive {
		m.mu.Unlock()
		return fmt.Errorf("raid room not found")
	}
	part, member := room.participants[userID]
	if !member {
		m.mu.Unlock()
		return fmt.Errorf("join the raid before attacking")
	}
	if time.Now().After(room.endsAt) {
		m.mu.Unlock()
		return nil
	}
	if p.Amount <= 0 {
		m.mu.Unlock()
		return fmt.Errorf("invalid damage amount")
	}

	amount := p.Amount
	if amount > m.cfg.MaxHit {
		amount = m.cfg.MaxHit
	}
	if amount > room.hp {
		amount = room.hp
	}

	room.hp -= amount
	part.damage += amount
	part.attacks++

	update := RaidHPUpdatePayload{
		RoomID:      room.id,
		CurrentHP:   room.hp,
		Attacker:    userID,
		Damage:      amount,
		Leaderboard: leaderboardLocked(room, 3),
	}
	ids := participantIDsLocked(room)
	m.enqueuePersist(RaidUpdate{
		BossID:    room.bossID,
		CurrentHP: room.hp,
		UserID:    userID,
		Damage:    part.damage,
		Attacks:   part.attacks,
	})

	var defeated *raidRoom
	if room.hp == 0 {
		room.status = models.BossStatusDefeated
		m.teardownLocked(room)
		defeated = room
	}
	m.mu.Unlock()

	m.presence.Fanout(ids, "raid_hp_update", update)
	if defeated != nil {
		m.settleVictory(defeated)
	}
	return nil
}

// enqueuePersist hands a durable write to the persistence worker without ever
// blocking the gameplay path.
func (m *RaidManager) enqueuePersist(u RaidUpdate) {
	if m.persist == nil {
		return
	}
	select {
	case m.persist <- u:
	default:
		log.Printf("raid: persistence queue full, dropping update for boss %s", u.BossID)
	}
}

// teardownLocked cancels both timers and removes the room from the live map.
// Caller holds the manager mutex and has already set a terminal status.
func (m *RaidManager) teardownLocked(room *raidRoom) {
	if room.expiry != nil {
		room.expiry.Stop()
	}
	select {
	case <-room.abilityDone:
	default:
		close(room.abilityDone)
	}
	delete(m.rooms, room.id)
}

// settleVictory pays every participant the same base participation reward —
// their own bonuses stack on top — and announces the MVP. Runs exactly once:
// the room left the live map under the lock that zeroed its hit points.
func (m *RaidManager) settleVictory(room *raidRoom) {
	board := leaderboardLocked(room, len(room.participants))
	mvp := ""
	if len(board) > 0 {
		mvp = board[0].UserID
	}

	go func() {
		if err := m.store.MarkBossDefeated(room.bossID); err != nil {
			log.Printf("raid %s: failed to mark boss defeated: %v", room.id, err)
		}
	}()

	// per-identity payouts: one ledger failure must not cost the rest theirs
	for userID := range room.participants {
		profile, err := m.ledger.Profile(userID)
		if err != nil {
			log.Printf("raid %s: profile lookup failed for %s: %v", room.id, userID, err)
			profile = &PlayerProfile{UserID: userID, GroupMultiplier: 1.0}
		}
		bundle := ComputeRewards(profile, m.cfg.RewardXP, m.cfg.RewardCoins)
		if err := m.ledger.ApplyReward(userID, bundle.FinalXP, bundle.FinalCoins); err != nil {
			log.Printf("raid %s: reward payout failed for %s: %v", room.id, userID, err)
		}

		m.presence.SendTo(userID, "raid_victory", RaidVictoryPayload{
			RoomID:      room.id,
			MVP:         mvp,
			Leaderboard: board,
			BaseXP:      m.cfg.RewardXP,
			BaseCoins:   m.cfg.RewardCoins,
			Reward:      &bundle,
		})
		m.presence.SetStatus(userID, StateIdle)
	}
	log.Printf("⚔️ raid %s: boss defeated, MVP %s, %d participants paid", room.id, mvp, len(room.participants))
}

// expireRoom is the expiry-timer callback: nobody zeroed the hit points in
// time. No rewards are paid.
func (m *RaidManager) expireRoom(roomID string) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok || room.status != models.BossStatusActive {
		m.mu.Unlock()
		return
	}
	room.status = models.BossStatusExpired
	m.teardownLocked(room)
	ids := participantIDsLocked(room)
	m.mu.Unlock()

	go func() {
		if err := m.store.MarkBossExpired(room.bossID); err != nil {
			log.Printf("raid %s: failed to mark boss expired: %v", room.id, err)
		}
	}()

	m.presence.Fanout(ids, "raid_timeout", RaidTimeoutPayload{RoomID: roomID})
	for _, id := range ids {
		m.presence.SetStatus(id, StateIdle)
	}
	log.Printf("⌛ raid %s: expired with %d HP remaining", roomID, room.hp)
}

// TeardownLiveRooms expires every live room, broadcasting the timeout notice.
// Used when a new boss displaces the current encounter.
func (m *RaidManager) TeardownLiveRooms() {
	m.mu.Lock()
	liveIDs := make([]string, 0, len(m.rooms))
	for roomID := range m.rooms {
		liveIDs = append(liveIDs, roomID)
	}
	m.mu.Unlock()
	for _, roomID := range liveIDs {
		m.expireRoom(roomID)
	}
}

// RoomCount reports how many raid rooms are live
func (m *RaidManager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *RaidManager) abilityLoop(room *raidRoom) {
	if m.cfg.AbilityInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.AbilityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-room.abilityDone:
			return
		case <-ticker.C:
			ability := bossAbilities[rand.Intn(len(bossAbilities))]
			m.mu.Lock()
			ids := participantIDsLocked(room)
			m.mu.Unlock()
			m.presence.Fanout(ids, "raid_boss_ability", ability)
		}
	}
}

func participantIDsLocked(room *raidRoom) []string {
	ids := make([]string, 0, len(room.participants))
	for id := range room.participants {
		ids = append(ids, id)
	}
	return ids
}

// leaderboardLocked returns the top n damage dealers, ties broken by user id
// for stable output
func leaderboardLocked(room *raidRoom, n int) []LeaderboardEntry {
	board := make([]LeaderboardEntry, 0, len(room.participants))
	for id, p := range room.participants {
		board = append(board, LeaderboardEntry{UserID: id, Damage: p.damage})
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].Damage != board[j].Damage {
			return board[i].Damage > board[j].Damage
		}
		return board[i].UserID < board[j].UserID
	})
	if len(board) > n {
		board = board[:n]
	}
	return board
}
