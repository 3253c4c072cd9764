package scheduler

import (
	"testing"

	"github.com/eternalsentinel/sentinel/pkg/polling"
)

func TestEscalationLevel(t *testing.T) {
	tests := []struct {
		name   string
		status polling.Status
		want   int
	}{
		{"active misses first check-in", polling.StatusActive, 1},
		{"grace 1 misses its check-in", polling.StatusGrace1, 2},
		{"grace 2 misses its check-in", polling.StatusGrace2, 3},
		{"grace 3 misses its check-in", polling.StatusGrace3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escalationLevel(tt.status); got != tt.want {
				t.Errorf("escalationLevel(%s) = %d, want %d", tt.status, got, tt.want)
			}
		})
	}
}

func TestChannelsFor(t *testing.T) {
	tests := []struct {
		name string
		cfg  polling.Config
		want []string
	}{
		{"both channels enabled", polling.Config{EmailEnabled: true, SMSEnabled: true}, []string{"EMAIL", "SMS"}},
		{"email only", polling.Config{EmailEnabled: true}, []string{"EMAIL"}},
		{"sms only", polling.Config{SMSEnabled: true}, []string{"SMS"}},
		{"neither enabled", polling.Config{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := channelsFor(tt.cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("channelsFor() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("channelsFor()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
