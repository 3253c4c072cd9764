package user

import "testing"

func TestDefaultInt(t *testing.T) {
	cases := []struct {
		name string
		v    int
		def  int
		want int
	}{
		{"positive value kept", 5, 7, 5},
		{"zero falls back to default", 0, 7, 7},
		{"negative falls back to default", -1, 7, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := defaultInt(tc.v, tc.def); got != tc.want {
				t.Errorf("defaultInt(%d, %d) = %d, want %d", tc.v, tc.def, got, tc.want)
			}
		})
	}
}
