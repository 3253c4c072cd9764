package polling

import (
	"testing"
	"time"
)

func baseConfig(status Status) Config {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return Config{
		Interval:            IntervalMonthly,
		GracePeriod1Days:    7,
		GracePeriod2Days:    14,
		GracePeriod3Days:    7,
		MissedBeforeTrigger: 3,
		Status:              status,
		NextCheckInDue:      now,
		UpdatedAt:           now.Add(-time.Hour),
	}
}

func hasEffect(effects []Effect, kind EffectKind) bool {
	for _, e := range effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestStep_Confirm(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		from     Status
		wantNext Status
		wantNoop bool
	}{
		{"from active", StatusActive, StatusActive, false},
		{"from grace1", StatusGrace1, StatusActive, false},
		{"from grace2", StatusGrace2, StatusActive, false},
		{"from grace3", StatusGrace3, StatusActive, false},
		{"from paused is a no-op", StatusPaused, StatusPaused, true},
		{"from triggered is a no-op", StatusTriggered, StatusTriggered, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(tc.from)
			cfg.CurrentMissedCheckIns = 2
			next, effects := Step(cfg, Event{Kind: EventConfirm, Now: now})

			if next.Status != tc.wantNext {
				t.Errorf("status = %v, want %v", next.Status, tc.wantNext)
			}
			if tc.wantNoop {
				if len(effects) != 0 {
					t.Errorf("effects = %v, want none", effects)
				}
				return
			}
			if next.CurrentMissedCheckIns != 0 {
				t.Errorf("CurrentMissedCheckIns = %d, want 0", next.CurrentMissedCheckIns)
			}
			if next.LastCheckInAt == nil || !next.LastCheckInAt.Equal(now) {
				t.Errorf("LastCheckInAt = %v, want %v", next.LastCheckInAt, now)
			}
			wantDue := now.Add(cfg.Interval.Duration())
			if !next.NextCheckInDue.Equal(wantDue) {
				t.Errorf("NextCheckInDue = %v, want %v", next.NextCheckInDue, wantDue)
			}
			if !hasEffect(effects, EffectScheduleNextCheckIn) {
				t.Errorf("effects = %v, want EffectScheduleNextCheckIn", effects)
			}
			if !hasEffect(effects, EffectAppendAudit) {
				t.Errorf("effects = %v, want EffectAppendAudit", effects)
			}
		})
	}
}

func TestStep_AdminForceCheckIn_ReachesPaused(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	cfg := baseConfig(StatusPaused)
	cfg.CurrentMissedCheckIns = 1

	next, effects := Step(cfg, Event{Kind: EventAdminForceCheckIn, Now: now})

	if next.Status != StatusActive {
		t.Errorf("status = %v, want ACTIVE", next.Status)
	}
	if next.CurrentMissedCheckIns != 0 {
		t.Errorf("CurrentMissedCheckIns = %d, want 0", next.CurrentMissedCheckIns)
	}
	if !hasEffect(effects, EffectScheduleNextCheckIn) {
		t.Errorf("effects = %v, want EffectScheduleNextCheckIn", effects)
	}
}

func TestStep_AdminForceCheckIn_NoopFromTriggered(t *testing.T) {
	cfg := baseConfig(StatusTriggered)
	next, effects := Step(cfg, Event{Kind: EventAdminForceCheckIn, Now: time.Now().UTC()})
	if next.Status != StatusTriggered {
		t.Errorf("status = %v, want unchanged TRIGGERED", next.Status)
	}
	if len(effects) != 0 {
		t.Errorf("effects = %v, want none", effects)
	}
}

func TestStep_Miss_Escalates(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		from      Status
		wantNext  Status
		wantLevel int
		wantEnqueueRelease bool
	}{
		{"active to grace1", StatusActive, StatusGrace1, 1, false},
		{"grace1 to grace2", StatusGrace1, StatusGrace2, 2, false},
		{"grace2 to grace3", StatusGrace2, StatusGrace3, 3, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(tc.from)
			cfg.CurrentMissedCheckIns = 0

			next, effects := Step(cfg, Event{Kind: EventMiss, Now: now, ExpectedMissedCount: 0})

			if next.Status != tc.wantNext {
				t.Errorf("status = %v, want %v", next.Status, tc.wantNext)
			}
			if next.CurrentMissedCheckIns != 1 {
				t.Errorf("CurrentMissedCheckIns = %d, want 1", next.CurrentMissedCheckIns)
			}
			var found *Effect
			for i := range effects {
				if effects[i].Kind == EffectCreateGracePeriodCheckIn {
					found = &effects[i]
				}
			}
			if found == nil {
				t.Fatalf("effects = %v, want EffectCreateGracePeriodCheckIn", effects)
			}
			if found.Level != tc.wantLevel {
				t.Errorf("grace level = %d, want %d", found.Level, tc.wantLevel)
			}
			if hasEffect(effects, EffectEnqueueRelease) != tc.wantEnqueueRelease {
				t.Errorf("EnqueueRelease present = %v, want %v", hasEffect(effects, EffectEnqueueRelease), tc.wantEnqueueRelease)
			}
		})
	}
}

func TestStep_Miss_Grace3StaysGrace3(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	cfg := baseConfig(StatusGrace3)
	cfg.CurrentMissedCheckIns = 3

	next, effects := Step(cfg, Event{Kind: EventMiss, Now: now, ExpectedMissedCount: 3})

	if next.Status != StatusGrace3 {
		t.Errorf("status = %v, want GRACE_3", next.Status)
	}
	if !hasEffect(effects, EffectEnqueueRelease) {
		t.Errorf("effects = %v, want EffectEnqueueRelease", effects)
	}
}

func TestStep_Miss_StaleIsIgnored(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	cfg := baseConfig(StatusActive)
	cfg.CurrentMissedCheckIns = 1 // another Miss already advanced the counter since this one was enqueued

	next, effects := Step(cfg, Event{Kind: EventMiss, Now: now, ExpectedMissedCount: 0})

	if next.Status != StatusActive {
		t.Errorf("status = %v, want unchanged ACTIVE", next.Status)
	}
	if next.CurrentMissedCheckIns != 1 {
		t.Errorf("CurrentMissedCheckIns = %d, want unchanged 1", next.CurrentMissedCheckIns)
	}
	if len(effects) != 1 || effects[0].Kind != EffectAppendAudit {
		t.Errorf("effects = %v, want a single EffectAppendAudit", effects)
	}
}

func TestStep_Miss_NoopFromPausedAndTriggered(t *testing.T) {
	for _, status := range []Status{StatusPaused, StatusTriggered} {
		cfg := baseConfig(status)
		next, effects := Step(cfg, Event{Kind: EventMiss, Now: time.Now().UTC(), ExpectedMissedCount: 0})
		if next.Status != status {
			t.Errorf("status = %v, want unchanged %v", next.Status, status)
		}
		if len(effects) != 0 {
			t.Errorf("effects = %v, want none", effects)
		}
	}
}

func TestStep_GraceTimeout_OnlyFromGrace3(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusActive, StatusGrace1, StatusGrace2, StatusPaused, StatusTriggered} {
		cfg := baseConfig(status)
		next, effects := Step(cfg, Event{Kind: EventGraceTimeout, Now: now})
		if next.Status != status {
			t.Errorf("from %v: status = %v, want unchanged", status, next.Status)
		}
		if len(effects) != 0 {
			t.Errorf("from %v: effects = %v, want none", status, effects)
		}
	}

	cfg := baseConfig(StatusGrace3)
	next, effects := Step(cfg, Event{Kind: EventGraceTimeout, Now: now})
	if next.Status != StatusTriggered {
		t.Errorf("status = %v, want TRIGGERED", next.Status)
	}
	if next.TriggeredAt == nil || !next.TriggeredAt.Equal(now) {
		t.Errorf("TriggeredAt = %v, want %v", next.TriggeredAt, now)
	}
	if !hasEffect(effects, EffectEnqueueRelease) {
		t.Errorf("effects = %v, want EffectEnqueueRelease", effects)
	}
}

func TestStep_AdminTrigger_FromAnyNonTerminalState(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusActive, StatusGrace1, StatusGrace2, StatusGrace3} {
		cfg := baseConfig(status)
		next, effects := Step(cfg, Event{Kind: EventAdminTrigger, Now: now})
		if next.Status != StatusTriggered {
			t.Errorf("from %v: status = %v, want TRIGGERED", status, next.Status)
		}
		if !hasEffect(effects, EffectEnqueueRelease) {
			t.Errorf("from %v: effects = %v, want EffectEnqueueRelease", status, effects)
		}
	}

	for _, status := range []Status{StatusPaused, StatusTriggered} {
		cfg := baseConfig(status)
		next, effects := Step(cfg, Event{Kind: EventAdminTrigger, Now: now})
		if next.Status != status {
			t.Errorf("from %v: status = %v, want unchanged", status, next.Status)
		}
		if len(effects) != 0 {
			t.Errorf("from %v: effects = %v, want none", status, effects)
		}
	}
}

func TestStep_PauseAndResume(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	cfg := baseConfig(StatusGrace2)
	cfg.CurrentMissedCheckIns = 2
	paused, effects := Step(cfg, Event{Kind: EventPause, Now: now})
	if paused.Status != StatusPaused {
		t.Errorf("status = %v, want PAUSED", paused.Status)
	}
	if paused.CurrentMissedCheckIns != 2 {
		t.Errorf("CurrentMissedCheckIns = %d, want unchanged 2", paused.CurrentMissedCheckIns)
	}
	if !hasEffect(effects, EffectAppendAudit) {
		t.Errorf("effects = %v, want EffectAppendAudit", effects)
	}

	resumed, effects := Step(paused, Event{Kind: EventResume, Now: now.Add(time.Hour)})
	if resumed.Status != StatusActive {
		t.Errorf("status = %v, want ACTIVE", resumed.Status)
	}
	if resumed.CurrentMissedCheckIns != 0 {
		t.Errorf("CurrentMissedCheckIns = %d, want reset to 0", resumed.CurrentMissedCheckIns)
	}
	if !hasEffect(effects, EffectScheduleNextCheckIn) {
		t.Errorf("effects = %v, want EffectScheduleNextCheckIn", effects)
	}
}

func TestStep_Pause_NoopFromPausedOrTriggered(t *testing.T) {
	for _, status := range []Status{StatusPaused, StatusTriggered} {
		cfg := baseConfig(status)
		next, effects := Step(cfg, Event{Kind: EventPause, Now: time.Now().UTC()})
		if next.Status != status {
			t.Errorf("from %v: status = %v, want unchanged", status, next.Status)
		}
		if len(effects) != 0 {
			t.Errorf("from %v: effects = %v, want none", status, effects)
		}
	}
}

func TestStep_Resume_NoopExceptFromPaused(t *testing.T) {
	for _, status := range []Status{StatusActive, StatusGrace1, StatusGrace2, StatusGrace3, StatusTriggered} {
		cfg := baseConfig(status)
		next, effects := Step(cfg, Event{Kind: EventResume, Now: time.Now().UTC()})
		if next.Status != status {
			t.Errorf("from %v: status = %v, want unchanged", status, next.Status)
		}
		if len(effects) != 0 {
			t.Errorf("from %v: effects = %v, want none", status, effects)
		}
	}
}

func TestStep_IsDeterministic(t *testing.T) {
	cfg := baseConfig(StatusGrace1)
	ev := Event{Kind: EventMiss, Now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), ExpectedMissedCount: 1}

	next1, effects1 := Step(cfg, ev)
	next2, effects2 := Step(cfg, ev)

	if next1 != next2 {
		t.Errorf("Step is not deterministic: %+v != %+v", next1, next2)
	}
	if len(effects1) != len(effects2) {
		t.Errorf("effect count differs across identical calls: %d != %d", len(effects1), len(effects2))
	}
}

func TestInterval_Durations(t *testing.T) {
	cases := []struct {
		interval         Interval
		wantDuration     time.Duration
		wantConfirmation time.Duration
	}{
		{IntervalWeekly, 7 * 24 * time.Hour, 3 * 24 * time.Hour},
		{IntervalBiweekly, 14 * 24 * time.Hour, 5 * 24 * time.Hour},
		{IntervalMonthly, 30 * 24 * time.Hour, 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		if got := tc.interval.Duration(); got != tc.wantDuration {
			t.Errorf("%v.Duration() = %v, want %v", tc.interval, got, tc.wantDuration)
		}
		if got := tc.interval.ConfirmationWindow(); got != tc.wantConfirmation {
			t.Errorf("%v.ConfirmationWindow() = %v, want %v", tc.interval, got, tc.wantConfirmation)
		}
	}
}
