package ledgerdomain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

func TestSubmission_Validate(t *testing.T) {
	digest := consensusdomain.Commit("s1", 50, "abc")

	tests := []struct {
		name    string
		sub     Submission
		wantErr bool
	}{
		{name: "commit", sub: Submission{Kind: KindCommit, Identity: "s1", Commit: digest}},
		{name: "commit uppercase digest normalized", sub: Submission{Kind: "COMMIT", Identity: " s1 ", Commit: strings.ToUpper(digest)}},
		{name: "reveal with empty nonce", sub: Submission{Kind: KindReveal, Identity: "s1", Number: "50"}},
		{name: "reveal non integer is still accepted", sub: Submission{Kind: KindReveal, Identity: "s1", Number: "fifty"}},
		{name: "missing identity", sub: Submission{Kind: KindCommit, Identity: "  ", Commit: digest}, wantErr: true},
		{name: "identity too long", sub: Submission{Kind: KindCommit, Identity: strings.Repeat("x", 65), Commit: digest}, wantErr: true},
		{name: "short digest", sub: Submission{Kind: KindCommit, Identity: "s1", Commit: digest[:10]}, wantErr: true},
		{name: "reveal without number", sub: Submission{Kind: KindReveal, Identity: "s1"}, wantErr: true},
		{name: "unknown kind", sub: Submission{Kind: "vote", Identity: "s1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Normalize().Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSubmission) {
					t.Fatalf("expected ErrInvalidSubmission, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := map[string]string{
		`{"number": 42}`:     "42",
		`{"number": "42"}`:   "42",
		`{"number": -7}`:     "-7",
		`{"number": "4.5"}`:  "4.5",
		`{"number": null}`:   "",
		`{"kind": "reveal"}`: "",
	}
	for body, want := range tests {
		var s Submission
		if err := json.Unmarshal([]byte(body), &s); err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		if string(s.Number) != want {
			t.Errorf("%s: Number = %q, want %q", body, s.Number, want)
		}
	}

	var s Submission
	if err := json.Unmarshal([]byte(`{"number": true}`), &s); err == nil {
		t.Errorf("expected error for boolean number")
	}
}

func TestParseTable(t *testing.T) {
	if tb, err := ParseTable("Reveals"); err != nil || tb != TableReveals {
		t.Fatalf("ParseTable(Reveals) = %v, %v", tb, err)
	}
	if _, err := ParseTable("votes"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestRecord_RowFeedsConsensus(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	commit := NewRecord(Submission{Kind: KindCommit, Identity: "s1", Commit: consensusdomain.Commit("s1", 50, "abc")}, ts)
	reveal := NewRecord(Submission{Kind: KindReveal, Identity: "s1", Number: "50", Nonce: "abc"}, ts.Add(time.Hour))

	if got := strings.Join(reveal.Values(), ","); got != "2025-01-01T01:00:00Z,s1,50,abc" {
		t.Fatalf("Values() = %q", got)
	}

	g := consensusdomain.RunConsensus(
		[]consensusdomain.Row{commit.Row()},
		[]consensusdomain.Row{reveal.Row()},
		consensusdomain.DefaultParams(),
	)
	if len(g.Entries) != 1 || !g.Entries[0].Verified {
		t.Fatalf("expected one verified entry, got %+v", g.Entries)
	}
}

func TestSchedule(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Schedule{
		CommitDeadline: base,
		RevealOpen:     base.Add(time.Hour),
		RevealClose:    base.Add(2 * time.Hour),
	}

	tests := []struct {
		name      string
		now       time.Time
		commitErr error
		revealErr error
		phase     Phase
	}{
		{name: "before deadline", now: base.Add(-time.Minute), revealErr: ErrRevealWindowNotOpen, phase: PhaseCommit},
		{name: "deadline is inclusive", now: base, revealErr: ErrRevealWindowNotOpen, phase: PhaseCommit},
		{name: "between phases", now: base.Add(30 * time.Minute), commitErr: ErrCommitWindowClosed, revealErr: ErrRevealWindowNotOpen, phase: PhaseBetween},
		{name: "reveal open is inclusive", now: base.Add(time.Hour), commitErr: ErrCommitWindowClosed, phase: PhaseReveal},
		{name: "after close", now: base.Add(3 * time.Hour), commitErr: ErrCommitWindowClosed, revealErr: ErrRevealWindowClosed, phase: PhaseClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Check(KindCommit, tt.now); !errors.Is(err, tt.commitErr) {
				t.Errorf("commit: got %v, want %v", err, tt.commitErr)
			}
			if err := s.Check(KindReveal, tt.now); !errors.Is(err, tt.revealErr) {
				t.Errorf("reveal: got %v, want %v", err, tt.revealErr)
			}
			if got := s.StatusAt(tt.now).Phase; got != tt.phase {
				t.Errorf("phase = %s, want %s", got, tt.phase)
			}
		})
	}

	if got := (Schedule{}).StatusAt(base).Phase; got != PhaseOpen {
		t.Errorf("unbounded schedule phase = %s, want %s", got, PhaseOpen)
	}
}
