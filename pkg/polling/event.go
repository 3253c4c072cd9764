package polling

import "time"

// EventKind identifies which transition in the escalation table applies.
type EventKind string

const (
	EventConfirm           EventKind = "CONFIRM"
	EventMiss              EventKind = "MISS"
	EventGraceTimeout      EventKind = "GRACE_TIMEOUT"
	EventAdminForceCheckIn EventKind = "ADMIN_FORCE_CHECKIN"
	EventAdminTrigger      EventKind = "ADMIN_TRIGGER"
	EventPause             EventKind = "PAUSE"
	EventResume            EventKind = "RESUME"
)

// Event is the closed sum type Step pattern-matches on. ExpectedMissedCount
// is only meaningful for EventMiss: it is the CurrentMissedCheckIns value
// observed at the moment the escalation that produced this Miss was
// enqueued, and is the race-free guard against stale escalations.
type Event struct {
	Kind                EventKind
	Now                 time.Time
	ExpectedMissedCount int
}

// EffectKind identifies a side effect a worker must carry out after Step
// returns. Step never performs these itself — it is pure.
type EffectKind string

const (
	EffectScheduleNextCheckIn      EffectKind = "SCHEDULE_NEXT_CHECKIN"
	EffectCreateGracePeriodCheckIn EffectKind = "CREATE_GRACE_PERIOD_CHECKIN"
	EffectEnqueueRelease           EffectKind = "ENQUEUE_RELEASE"
	EffectNotifyUser               EffectKind = "NOTIFY_USER"
	EffectAppendAudit              EffectKind = "APPEND_AUDIT"
)

// Effect is a single side-effect descriptor emitted by Step.
type Effect struct {
	Kind       EffectKind
	In         time.Duration // delay for ScheduleNextCheckIn / EnqueueRelease
	ExpiresIn  time.Duration // expiry window for CreateGracePeriodCheckIn
	Level      int           // escalation level, for CreateGracePeriodCheckIn / audit labeling
	NotifyKind string
	AuditKind  string
}

// Step is the pure escalation transition function: given the current config
// and an event, it returns the next config and the effects a caller must
// carry out. It never performs I/O and is deterministic: identical inputs
// always yield identical outputs.
func Step(cfg Config, ev Event) (Config, []Effect) {
	switch ev.Kind {
	case EventConfirm:
		return applyReset(cfg, ev.Now, "CHECK_IN_CONFIRMED", false)
	case EventAdminForceCheckIn:
		return applyReset(cfg, ev.Now, "ADMIN_FORCE_CHECKIN", true)
	case EventMiss:
		return applyMiss(cfg, ev)
	case EventGraceTimeout:
		return applyGraceTimeout(cfg, ev.Now)
	case EventAdminTrigger:
		return applyAdminTrigger(cfg, ev.Now)
	case EventPause:
		return applyPause(cfg, ev.Now)
	case EventResume:
		return applyResume(cfg, ev.Now)
	default:
		return cfg, nil
	}
}

// applyReset implements the "reset" transition shared by Confirm and
// AdminForceCheckIn: both move a non-terminal config to ACTIVE with the
// missed counter cleared. allowFromPaused distinguishes AdminForceCheckIn
// (which may reactivate a paused user) from Confirm (which may not — a
// paused user has no pending check-in to confirm in the first place).
func applyReset(cfg Config, now time.Time, auditKind string, allowFromPaused bool) (Config, []Effect) {
	switch cfg.Status {
	case StatusActive, StatusGrace1, StatusGrace2, StatusGrace3:
	case StatusPaused:
		if !allowFromPaused {
			return cfg, nil
		}
	default:
		return cfg, nil
	}

	next := cfg
	next.Status = StatusActive
	next.CurrentMissedCheckIns = 0
	next.LastCheckInAt = &now
	next.NextCheckInDue = now.Add(cfg.Interval.Duration())
	next.UpdatedAt = now

	return next, []Effect{
		{Kind: EffectAppendAudit, AuditKind: auditKind},
		{Kind: EffectScheduleNextCheckIn, In: cfg.Interval.Duration()},
	}
}

// applyMiss implements the Miss(stale)/Miss(fresh) columns. A Miss is stale
// when its ExpectedMissedCount no longer matches CurrentMissedCheckIns,
// meaning a Confirm (or admin reset) happened after the escalation that
// produced it was enqueued.
func applyMiss(cfg Config, ev Event) (Config, []Effect) {
	switch cfg.Status {
	case StatusPaused, StatusTriggered:
		return cfg, nil
	}

	if ev.ExpectedMissedCount != cfg.CurrentMissedCheckIns {
		return cfg, []Effect{{Kind: EffectAppendAudit, AuditKind: "ESCALATION_SKIPPED_STALE"}}
	}

	next := cfg
	next.CurrentMissedCheckIns++
	next.UpdatedAt = ev.Now

	switch cfg.Status {
	case StatusActive:
		next.Status = StatusGrace1
	case StatusGrace1:
		next.Status = StatusGrace2
	case StatusGrace2, StatusGrace3:
		next.Status = StatusGrace3
	}

	level := levelOf(next.Status)
	grace := next.GracePeriod(level)

	effects := []Effect{
		{Kind: EffectAppendAudit, AuditKind: auditKindForLevel(level), Level: level},
		{Kind: EffectCreateGracePeriodCheckIn, ExpiresIn: grace, Level: level},
		{Kind: EffectNotifyUser, NotifyKind: auditKindForLevel(level)},
	}
	if next.Status == StatusGrace3 {
		effects = append(effects, Effect{Kind: EffectEnqueueRelease, In: next.GracePeriod(3)})
	}

	return next, effects
}

// applyGraceTimeout implements the GRACE_3 → TRIGGERED column. Only valid
// from GRACE_3; every other row is "—" (no-op) in the transition table.
func applyGraceTimeout(cfg Config, now time.Time) (Config, []Effect) {
	if cfg.Status != StatusGrace3 {
		return cfg, nil
	}
	return trigger(cfg, now)
}

// applyAdminTrigger implements the AdminTrigger column: forces TRIGGERED
// from any non-paused, non-terminal state.
func applyAdminTrigger(cfg Config, now time.Time) (Config, []Effect) {
	switch cfg.Status {
	case StatusActive, StatusGrace1, StatusGrace2, StatusGrace3:
		return trigger(cfg, now)
	default:
		return cfg, nil
	}
}

func trigger(cfg Config, now time.Time) (Config, []Effect) {
	next := cfg
	next.Status = StatusTriggered
	next.TriggeredAt = &now
	next.UpdatedAt = now
	return next, []Effect{
		{Kind: EffectAppendAudit, AuditKind: "RELEASE_TRIGGERED"},
		{Kind: EffectEnqueueRelease},
	}
}

// applyPause implements the Pause column: any non-paused, non-terminal
// state moves to PAUSED. The missed counter and due date are left
// untouched — pausing freezes state rather than resetting it.
func applyPause(cfg Config, now time.Time) (Config, []Effect) {
	switch cfg.Status {
	case StatusActive, StatusGrace1, StatusGrace2, StatusGrace3:
	default:
		return cfg, nil
	}

	next := cfg
	next.Status = StatusPaused
	next.UpdatedAt = now
	return next, []Effect{{Kind: EffectAppendAudit, AuditKind: "PAUSED"}}
}

// applyResume implements the Resume column: only valid from PAUSED.
func applyResume(cfg Config, now time.Time) (Config, []Effect) {
	if cfg.Status != StatusPaused {
		return cfg, nil
	}

	next := cfg
	next.Status = StatusActive
	next.CurrentMissedCheckIns = 0
	next.NextCheckInDue = now.Add(cfg.Interval.Duration())
	next.UpdatedAt = now

	return next, []Effect{
		{Kind: EffectAppendAudit, AuditKind: "RESUMED"},
		{Kind: EffectScheduleNextCheckIn, In: cfg.Interval.Duration()},
	}
}

func auditKindForLevel(level int) string {
	switch level {
	case 1:
		return "ESCALATION_LEVEL_1"
	case 2:
		return "ESCALATION_LEVEL_2"
	default:
		return "ESCALATION_LEVEL_3"
	}
}
