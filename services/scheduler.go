// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartBossScheduler runs the coarse raid housekeeping jobs: activating due
// scheduled bosses and sweeping overdue ACTIVE rows that never got a live
// room. Per-room timers stay with the RaidManager.
func StartBossScheduler(store *ArenaStore, raids *RaidManager) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Scheduler] failed to start: %v", err)
		return
	}
	sched.Start()

	// Every minute: activate scheduled bosses whose spawn time has passed
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()
			due, err := store.DueScheduledBosses(now)
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			for _, boss := range due {
				raids.TeardownLiveRooms()
				if err := store.ExpireActiveBosses(); err != nil {
					log.Printf("[Scheduler] failed to expire current boss: %v", err)
					continue
				}
				if err := store.ActivateBoss(boss.ID, now); err != nil {
					log.Printf("[Scheduler] failed to activate boss %s: %v", boss.ID, err)
				} else {
					log.Printf("✅ Auto-spawned boss: %s", boss.Name)
				}
			}
		}),
	)

	// Every minute: expire ACTIVE rows whose window lapsed with no live room
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if raids.RoomCount() > 0 {
				return
			}
			swept, err := store.SweepOverdueBosses(time.Now())
			if err != nil {
				log.Printf("[Scheduler] sweep error: %v", err)
				return
			}
			if swept > 0 {
				log.Printf("[Scheduler] expired %d overdue boss record(s)", swept)
			}
		}),
	)
}
