package cli

import (
	"strings"
	"testing"
)

func TestFormatStats(t *testing.T) {
	tests := []struct {
		name                    string
		w, h, applied, hits     int
		wantContains, wantOmits []string
	}{
		{"fresh", 10, 20, 2, 0, []string{"10×20", "2 effects", "fresh"}, []string{"cached"}},
		{"all cached", 10, 20, 2, 2, []string{"cached"}, []string{"fresh"}},
		{"partly cached", 4, 4, 3, 1, []string{"1 cached"}, []string{"fresh"}},
		{"no size", 0, 0, 1, 0, []string{"1 effects"}, []string{"×"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatStats(tt.w, tt.h, tt.applied, tt.hits)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("%q does not contain %q", got, want)
				}
			}
			for _, omit := range tt.wantOmits {
				if strings.Contains(got, omit) {
					t.Errorf("%q should not contain %q", got, omit)
				}
			}
		})
	}
}
