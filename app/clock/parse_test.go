package clock

import (
	"testing"
	"time"
)

func TestParseInstant(t *testing.T) {
	anchor := NewAnchor(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)) // a Monday

	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{name: "empty", input: "", want: time.Time{}},
		{name: "rfc3339", input: "2025-03-04T09:00:00Z", want: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)},
		{name: "naive in location", input: "2025-03-04 09:00", loc: time.FixedZone("X", -5*3600), want: time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)},
		{name: "relative", input: "in 2 hours", want: time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)},
		{name: "nonsense", input: "zzz qqq", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstant(tt.input, anchor, tt.loc)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseInstant(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAnchor(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	if got := NewAnchor(at).Now(); got.Location() != time.UTC || !got.Equal(at) {
		t.Errorf("NewAnchor().Now() = %v", got)
	}
	if NewAnchor(time.Time{}).Now().IsZero() {
		t.Errorf("zero anchor should fall back to now")
	}
}
