package server

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/ospreyintel/awardflow/internal/ingest"
)

// Scheduler fires scheduled ingest batches. A redis SetNX lock keeps
// multiple replicas from running the same batch.
type Scheduler struct {
	App  *App
	Cron string
	Rdb  *redis.Client
	Stop chan struct{}

	lastRun *time.Time
}

const schedulerLockKey = "sched:lock:ingest"

// Start launches the scheduler loop. A missing cron spec disables it.
func (s *Scheduler) Start() {
	if s.Cron == "" {
		return
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if !isDue(s.Cron, s.lastRun) {
		return
	}
	ctx := context.Background()

	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, schedulerLockKey, "1", 10*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, schedulerLockKey)
	}

	now := time.Now()
	s.lastRun = &now

	res, err := s.App.Ingestor.Run(ctx, s.App.Ingestor.DefaultFilters(now), ingest.Options{})
	if err != nil {
		s.App.Logger.Printf("scheduled ingest failed: %v", err)
		return
	}
	s.App.Logger.Printf("scheduled ingest %s: saved=%d skipped=%d failed=%d",
		res.BatchID, res.Saved, res.Skipped, res.Failed)

	if _, err := s.App.Enricher.EnrichPending(ctx, 0); err != nil {
		s.App.Logger.Printf("scheduled enrichment failed: %v", err)
	}
	if _, err := s.App.Linker.Run(ctx); err != nil {
		s.App.Logger.Printf("scheduled link pass failed: %v", err)
	}
}

// isDue reports whether the cron spec has a firing time at or before now,
// relative to the last run. Supports "@daily", "@hourly" and standard cron
// expressions; an invalid expression falls back to daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
