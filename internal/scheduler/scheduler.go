// Package scheduler drives the periodic work: the equity tick cycle and
// the nightly prune of recorded ticks.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"equity_monitor/internal/aggregator"
	"equity_monitor/internal/models"
	"equity_monitor/internal/repository"
	"equity_monitor/internal/websocket"
)

// tickRetention is how long recorded equity ticks are kept.
const tickRetention = 90 * 24 * time.Hour

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Aggregator *aggregator.Aggregator
	Hub        *websocket.Hub
	Ticks      *repository.EquityTickRepository
	Ctx        context.Context
}

// NewScheduler creates a new Scheduler. Hub and Ticks may be nil when
// the WebSocket surface or persistence is not wired.
func NewScheduler(ctx context.Context, agg *aggregator.Aggregator, hub *websocket.Hub, ticks *repository.EquityTickRepository) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Aggregator: agg,
		Hub:        hub,
		Ticks:      ticks,
		Ctx:        ctx,
	}
}

// RegisterAll registers the tick and prune tasks.
func (s *Scheduler) RegisterAll(tickCron, pruneCron string) error {
	if _, err := s.Cron.AddFunc(tickCron, s.tickTask); err != nil {
		return fmt.Errorf("register tick task: %w", err)
	}
	if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[Scheduler] started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[Scheduler] stopped")
}

// RunTickNow executes one tick cycle immediately, used at startup so the
// dashboard has data before the first scheduled tick.
func (s *Scheduler) RunTickNow() {
	s.tickTask()
}

// tickTask runs one aggregation cycle: recompute, broadcast, record.
// Snapshot refresh happens inside the aggregator before the recompute.
func (s *Scheduler) tickTask() {
	tick := s.Aggregator.Tick(s.Ctx)
	s.publish(tick)
}

// publish fans a computed tick out to the WebSocket hub and the tick
// repository.
func (s *Scheduler) publish(tick models.EquityTick) {
	if s.Hub != nil {
		s.Hub.BroadcastTick(tick)
	}
	if s.Ticks != nil {
		if err := s.Ticks.Record(tick); err != nil {
			log.Printf("[Scheduler] recording tick: %v", err)
		}
	}
}

func (s *Scheduler) pruneTask() {
	if s.Ticks == nil {
		return
	}
	cutoff := time.Now().Add(-tickRetention)
	pruned, err := s.Ticks.PruneOlderThan(cutoff)
	if err != nil {
		log.Printf("[Scheduler] pruning ticks: %v", err)
		return
	}
	log.Printf("[Scheduler] pruned %d recorded ticks older than %s", pruned, cutoff.Format(time.RFC3339))
}
