package trustee

import (
	"testing"
	"time"
)

func TestStatus_ReleaseEligible(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusVerified, true},
		{StatusActive, true},
		{StatusRevoked, false},
	}
	for _, tc := range cases {
		if got := tc.status.ReleaseEligible(); got != tc.want {
			t.Errorf("%v.ReleaseEligible() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestTrustee_HasActiveAccess(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	token := "tok"

	cases := []struct {
		name string
		t    Trustee
		want bool
	}{
		{"no token", Trustee{}, false},
		{
			"unexpired",
			Trustee{AccessToken: &token, AccessExpiresAt: timePtr(now.Add(time.Hour))},
			true,
		},
		{
			"expired",
			Trustee{AccessToken: &token, AccessExpiresAt: timePtr(now.Add(-time.Hour))},
			false,
		},
		{
			"expires exactly now is not active",
			Trustee{AccessToken: &token, AccessExpiresAt: timePtr(now)},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.t.HasActiveAccess(now); got != tc.want {
				t.Errorf("HasActiveAccess = %v, want %v", got, tc.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
