// workers/raid_persist_worker.go
package workers

import (
	"context"
	"log"

	"quiz-arena-system/services"
)

// RaidPersistWorker drains the best-effort raid persistence queue into the
// durable store. Live combat never waits on the database: the raid manager
// enqueues updates non-blocking and this worker mirrors them. Failed writes
// are logged and skipped; the next update for the same boss/participant
// carries cumulative totals, so a dropped write self-heals.
type RaidPersistWorker struct {
	store   *services.ArenaStore
	updates <-chan services.RaidUpdate
}

func NewRaidPersistWorker(store *services.ArenaStore, updates <-chan services.RaidUpdate) *RaidPersistWorker {
	return &RaidPersistWorker{
		store:   store,
		updates: updates,
	}
}

func (w *RaidPersistWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Raid Persist Worker (live rooms → raid_bosses/raid_contributions)…")
	go w.run(ctx)
}

func (w *RaidPersistWorker) run(ctx context.Context) {
	for {
		select {
		case u := <-w.updates:
			if err := w.store.SaveBossHP(u.BossID, u.CurrentHP); err != nil {
				log.Printf("[RAID] ⚠️ Failed to mirror boss HP (boss=%s hp=%d): %v", u.BossID, u.CurrentHP, err)
			}
			if err := w.store.UpsertContribution(u.BossID, u.UserID, u.Damage, u.Attacks); err != nil {
				log.Printf("[RAID] ⚠️ Failed to upsert contribution (boss=%s user=%s): %v", u.BossID, u.UserID, err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Raid Persist Worker stopped")
			return
		}
	}
}
