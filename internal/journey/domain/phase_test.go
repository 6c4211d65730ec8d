package domain

import "testing"

func TestParsePhase(t *testing.T) {
	got, err := ParsePhase(" proposal_sent ")
	if err != nil {
		t.Fatalf("ParsePhase returned error: %v", err)
	}
	if got != PhaseProposalSent {
		t.Fatalf("expected %s, got %s", PhaseProposalSent, got)
	}

	if _, err := ParsePhase("ARCHIVED"); err == nil {
		t.Fatal("expected error for phase outside the enum")
	}
}

func TestFailurePhasesHaveNoRank(t *testing.T) {
	for _, p := range []Phase{PhaseLost, PhaseSkipped, PhaseExpired} {
		if _, ok := p.Rank(); ok {
			t.Fatalf("expected %s to have no rank", p)
		}
		if !p.IsFailure() || !p.Display().Terminal {
			t.Fatalf("expected %s to be a terminal failure", p)
		}
		if p.AtLeast(PhaseDiscovered) {
			t.Fatalf("expected %s not to count as reaching DISCOVERED", p)
		}
	}
}

func TestSuccessPathIsOrdered(t *testing.T) {
	phases := AllPhases()
	prev := -1
	for _, p := range phases[:13] {
		r, ok := p.Rank()
		if !ok || r != prev+1 {
			t.Fatalf("expected %s to have rank %d, got %d (%v)", p, prev+1, r, ok)
		}
		prev = r
	}
	if len(phases) != 16 {
		t.Fatalf("expected 16 phases, got %d", len(phases))
	}
}

func TestConversionRate(t *testing.T) {
	current := []Phase{
		PhaseDiscovered,
		PhaseAnalyzed,
		PhaseProposalSent,
		PhaseWon,
		PhaseLost,
	}

	cases := []struct {
		pair ConversionPair
		want int
	}{
		// 2 of 4 ranked jobs reached PROPOSAL_SENT.
		{ConversionPairs[0], 50},
		// 1 of 2 jobs past PROPOSAL_SENT reached WON.
		{ConversionPairs[1], 50},
		// nobody reached PROJECT_DELIVERED.
		{ConversionPairs[2], 0},
	}
	for _, tc := range cases {
		if got := ConversionRate(current, tc.pair); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.pair.Name, tc.want, got)
		}
	}
}

func TestConversionRateRounds(t *testing.T) {
	current := []Phase{PhaseProposalSent, PhaseDiscovered, PhaseDiscovered}
	if got := ConversionRate(current, ConversionPairs[0]); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := ConversionRate([]Phase{PhaseWon, PhaseWon, PhaseProposalSent}, ConversionPairs[1]); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
}

func TestConversionRateZeroDenominator(t *testing.T) {
	if got := ConversionRate(nil, ConversionPairs[0]); got != 0 {
		t.Fatalf("expected 0 for empty input, got %d", got)
	}
	if got := ConversionRate([]Phase{PhaseLost, PhaseExpired}, ConversionPairs[1]); got != 0 {
		t.Fatalf("expected 0 when no job reached the source phase, got %d", got)
	}
}
