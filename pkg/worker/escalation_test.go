package worker

import (
	"testing"

	"github.com/eternalsentinel/sentinel/pkg/polling"
)

func TestChannelsFor(t *testing.T) {
	tests := []struct {
		name string
		cfg  polling.Config
		want []string
	}{
		{name: "both disabled", cfg: polling.Config{}, want: nil},
		{name: "email only", cfg: polling.Config{EmailEnabled: true}, want: []string{"EMAIL"}},
		{name: "sms only", cfg: polling.Config{SMSEnabled: true}, want: []string{"SMS"}},
		{name: "both enabled", cfg: polling.Config{EmailEnabled: true, SMSEnabled: true}, want: []string{"EMAIL", "SMS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := channelsFor(tt.cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("channelsFor() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("channelsFor()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
