package checkin

import (
	"testing"
	"time"
)

func TestCheckIn_IsExpired(t *testing.T) {
	expiresAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := CheckIn{ExpiresAt: expiresAt}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before expiry", expiresAt.Add(-time.Second), false},
		{"exactly at expiry counts as expired", expiresAt, true},
		{"after expiry", expiresAt.Add(time.Second), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.IsExpired(tc.now); got != tc.want {
				t.Errorf("IsExpired(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}
