package main

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepResult tracks separate counters for one analysis sweep.
type SweepResult struct {
	Analyzed int
	Failed   int
}

// RunAnalysisSweep analyzes every session that has conversations but no
// confusion record yet. This is the correctness baseline: it finds sessions
// regardless of what the in-memory tracker remembers, so sessions lost to a
// restart are eventually picked up. One failing session is counted and
// skipped, never aborting the sweep.
func RunAnalysisSweep(db *sql.DB, classifier *Classifier) SweepResult {
	var result SweepResult

	sessions, err := GetUnanalyzedSessionIDs(db)
	if err != nil {
		log.Printf("sweep: list unanalyzed sessions error: %v", err)
		return result
	}
	if len(sessions) == 0 {
		return result
	}
	log.Printf("sweep: %d sessions need analysis", len(sessions))

	for _, sessionID := range sessions {
		if classifier.AnalyzeSession(sessionID) {
			result.Analyzed++
		} else {
			result.Failed++
		}
	}

	log.Printf("sweep complete analyzed=%d failed=%d", result.Analyzed, result.Failed)
	return result
}

// RunExpiredSweep analyzes only the tracked sessions idle beyond timeout, so
// analysis happens soon after a natural pause instead of waiting for the next
// full sweep. Each expired session is cleared from the tracker whether or not
// its analysis succeeded; a transiently-failing session stays in the
// repository's unanalyzed set and the baseline sweep retries it.
func RunExpiredSweep(db *sql.DB, tracker *SessionTracker, classifier *Classifier, timeout time.Duration) SweepResult {
	var result SweepResult

	expired := tracker.Expired(timeout)
	if len(expired) == 0 {
		return result
	}
	log.Printf("expired sweep: %d sessions idle beyond %s", len(expired), timeout)

	for _, sessionID := range expired {
		analyzed, err := HasConfusionRecord(db, sessionID)
		if err != nil {
			log.Printf("expired sweep: record check session=%s error: %v", sessionID, err)
			result.Failed++
			tracker.Clear(sessionID)
			continue
		}
		if analyzed {
			tracker.Clear(sessionID)
			continue
		}
		if classifier.AnalyzeSession(sessionID) {
			result.Analyzed++
		} else {
			result.Failed++
		}
		tracker.Clear(sessionID)
	}

	log.Printf("expired sweep complete analyzed=%d failed=%d", result.Analyzed, result.Failed)
	return result
}

// StartAnalysisScheduler starts the background analysis loops: a ticker that
// sweeps expired tracked sessions at half the session timeout, and an
// optional cron-scheduled full sweep as the durability backstop.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "*/30 * * * *" (every 30 minutes), "0 3 * * *" (daily 3am).
func StartAnalysisScheduler(cfg Config, db *sql.DB, tracker *SessionTracker, classifier *Classifier) {
	timeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
	interval := timeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			RunExpiredSweep(db, tracker, classifier, timeout)
		}
	}()
	log.Printf("Expired-session sweep scheduled every %s (timeout %s)", interval, timeout)

	schedule := strings.TrimSpace(cfg.AnalysisSchedule)
	if schedule == "" {
		log.Println("Full analysis sweep disabled (analysis_schedule not set); trigger it via POST /api/analyze")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid analysis_schedule '%s': %v, full sweep disabled", schedule, err)
		return
	}
	log.Printf("Full analysis sweep scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			log.Printf("Next full sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), next.Sub(now).Round(time.Minute))

			time.Sleep(next.Sub(now))

			RunAnalysisSweep(db, classifier)
		}
	}()
}
