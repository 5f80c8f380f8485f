// Package scheduler drives the fetch → parse → persist cycle across pages
// and across time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carwatch/internal/alert"
	"carwatch/internal/fetcher"
	"carwatch/internal/model"
	"carwatch/internal/parser"
	"carwatch/internal/storage"
)

// State describes where the scheduler is in its lifecycle.
type State string

// Scheduler lifecycle states.
const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateSleeping     State = "sleeping"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

// Stats accumulates run statistics across cycles.
type Stats struct {
	TotalRuns      int
	TotalSuccesses int
	TotalFailures  int
	RecordsSeen    int
	Inserted       int
	Updated        int
	Skipped        int
	FailedRecords  int
	PagesFailed    int
	Purged         int64
}

// CycleReport summarizes one sweep over the configured pages.
type CycleReport struct {
	PagesOK       int
	PagesFailed   int
	RecordsSeen   int
	Inserted      int
	Updated       int
	Skipped       int
	FailedRecords int
	Purged        int64
	PolicyBlocked bool
	Aborted       bool
}

// failedCompletely reports whether the cycle did no useful work: aborted
// before the sweep, or every attempted page failed. Only these cycles count
// toward the consecutive-failure escalation.
func (r CycleReport) failedCompletely() bool {
	return r.PolicyBlocked || r.Aborted || (r.PagesOK == 0 && r.PagesFailed > 0)
}

// Config holds the scheduler parameters.
type Config struct {
	BaseURL          string // page URL template with a %d page placeholder
	MaxPages         int
	Interval         time.Duration
	Retention        time.Duration
	CheckPolicy      bool
	MaxCycleFailures int
}

// Scheduler orchestrates repeated ingestion cycles until shutdown.
type Scheduler struct {
	store  storage.Storage
	fetch  *fetcher.Fetcher
	parse  *parser.Parser
	alerts alert.Sink
	log    *slog.Logger
	cfg    Config

	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
	stats Stats
}

// New creates a Scheduler.
func New(store storage.Storage, fetch *fetcher.Fetcher, parse *parser.Parser, alerts alert.Sink, cfg Config, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		fetch:  fetch,
		parse:  parse,
		alerts: alerts,
		log:    log,
		cfg:    cfg,
		sleep:  sleepCtx,
		state:  StateIdle,
	}
}

// Run executes cycles until ctx is cancelled. A clean shutdown returns nil;
// MaxCycleFailures consecutive completely-failed cycles escalate to an alert
// and an error return. This is the only fatal path after startup.
func (s *Scheduler) Run(ctx context.Context) error {
	consecutive := 0
	for {
		s.setState(StateRunning)
		report := s.RunCycle(ctx)
		s.recordCycle(report)

		if report.failedCompletely() {
			consecutive++
			if consecutive >= s.cfg.MaxCycleFailures {
				msg := fmt.Sprintf("carwatch: %d consecutive cycles failed completely, terminating", consecutive)
				s.sendAlert(ctx, msg)
				s.setState(StateStopped)
				return errors.New(msg)
			}
		} else {
			consecutive = 0
		}

		if ctx.Err() != nil {
			s.setState(StateStopped)
			return nil
		}

		s.setState(StateSleeping)
		s.log.Info("sleeping until next cycle", "interval", s.cfg.Interval)
		if err := s.sleep(ctx, s.cfg.Interval); err != nil {
			s.setState(StateShuttingDown)
			s.setState(StateStopped)
			return nil
		}
	}
}

// RunCycle performs one sweep over the configured pages followed by the
// stale-record purge. Page-level failures are alerted once and skipped; a
// shutdown request is honored between pages, letting the in-flight page
// finish.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	var report CycleReport

	if s.cfg.CheckPolicy {
		switch err := s.fetch.CheckPolicy(ctx, s.pageURL(1)); {
		case err == nil:
		case errors.Is(err, fetcher.ErrPolicyDisallowed):
			s.log.Error("cycle refused by robots policy", "error", err)
			s.sendAlert(ctx, fmt.Sprintf("carwatch: cycle aborted: %v", err))
			report.PolicyBlocked = true
			return report
		case ctx.Err() != nil:
			// Shutdown during the policy fetch; not a failure.
			return report
		default:
			s.log.Error("policy check failed", "error", err)
			s.sendAlert(ctx, fmt.Sprintf("carwatch: cycle aborted, policy check failed: %v", err))
			report.Aborted = true
			return report
		}
	}

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			s.setState(StateShuttingDown)
			s.log.Info("shutdown requested, stopping page sweep", "completed_pages", page-1)
			return report
		}
		s.processPage(ctx, page, &report)
	}

	if ctx.Err() == nil {
		purged, err := s.store.PurgeStale(ctx, s.cfg.Retention)
		if err != nil {
			s.log.Error("purge stale listings", "error", err)
		} else {
			report.Purged = purged
			if purged > 0 {
				s.log.Info("purged stale listings", "count", purged)
			}
		}
	}
	return report
}

func (s *Scheduler) processPage(ctx context.Context, page int, report *CycleReport) {
	url := s.pageURL(page)
	s.log.Debug("fetching page", "page", page, "url", url)

	body, err := s.fetch.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		report.PagesFailed++
		s.log.Error("fetch page", "page", page, "error", err)
		s.sendAlert(ctx, fmt.Sprintf("carwatch: page %d fetch failed: %v", page, err))
		return
	}

	listings, pstats, err := s.parse.Parse(body)
	if err != nil {
		report.PagesFailed++
		s.log.Error("parse page", "page", page, "error", err)
		s.sendAlert(ctx, fmt.Sprintf("carwatch: page %d parse failed: %v", page, err))
		return
	}
	report.Skipped += pstats.Skipped

	// Records already parsed are persisted even if shutdown arrives now; the
	// in-flight page is allowed to finish.
	writeCtx := context.WithoutCancel(ctx)
	for i := range listings {
		result, err := s.store.Upsert(writeCtx, &listings[i])
		if err != nil {
			report.FailedRecords++
			s.log.Error("upsert listing", "external_id", listings[i].ExternalID, "error", err)
			continue
		}
		report.RecordsSeen++
		switch result {
		case model.Inserted:
			report.Inserted++
		case model.Updated:
			report.Updated++
		}
	}
	report.PagesOK++
	s.log.Info("page processed",
		"page", page, "records", len(listings), "skipped", pstats.Skipped)
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the accumulated run statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) recordCycle(r CycleReport) {
	s.mu.Lock()
	s.stats.TotalRuns++
	if r.failedCompletely() {
		s.stats.TotalFailures++
	} else {
		s.stats.TotalSuccesses++
	}
	s.stats.RecordsSeen += r.RecordsSeen
	s.stats.Inserted += r.Inserted
	s.stats.Updated += r.Updated
	s.stats.Skipped += r.Skipped
	s.stats.FailedRecords += r.FailedRecords
	s.stats.PagesFailed += r.PagesFailed
	s.stats.Purged += r.Purged
	stats := s.stats
	s.mu.Unlock()

	s.log.Info("cycle complete",
		"run", stats.TotalRuns,
		"successes", stats.TotalSuccesses,
		"failures", stats.TotalFailures,
		"records_seen", stats.RecordsSeen,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed_records", stats.FailedRecords,
		"purged", stats.Purged)
}

// sendAlert delivers best-effort: a failed alert is logged, never escalated.
func (s *Scheduler) sendAlert(ctx context.Context, msg string) {
	if err := s.alerts.Send(context.WithoutCancel(ctx), msg); err != nil {
		s.log.Warn("alert delivery failed", "error", err)
	}
}

func (s *Scheduler) pageURL(page int) string {
	return fmt.Sprintf(s.cfg.BaseURL, page)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
