package fishing

import "testing"

func TestAllowedLabelSetMatchesPhaseTable(t *testing.T) {
	cases := []struct {
		phase Phase
		label DetectedLabel
		want  bool
	}{
		{WaitingInitial, LabelWaitingBite, true},
		{WaitingInitial, LabelFishHooked, true},
		{WaitingInitial, LabelStaminaBelow, false},
		{FishHooked, LabelFishHooked, true},
		{FishHooked, LabelStaminaBelow, true},
		{FishHooked, LabelPullRight, false},
		{PullingNormal, LabelPullRight, true},
		{PullingNormal, LabelCatchSuccess, true},
		{Success, LabelCatchSuccess, true},
		{Success, LabelStaminaBelow, false},
		{Casting, LabelCatchSuccess, false},
		{Error, LabelWaitingBite, true},
		{Error, LabelCatchSuccess, true},
	}
	for _, c := range cases {
		if got := AllowedLabelSet(c.phase, c.label); got != c.want {
			t.Errorf("AllowedLabelSet(%v, %v) = %v, want %v", c.phase, c.label, got, c.want)
		}
	}
}

func TestAllowedLabelsReturnsDefensiveCopy(t *testing.T) {
	a := AllowedLabels(PullingNormal)
	a[LabelWaitingBite] = true

	b := AllowedLabels(PullingNormal)
	if b[LabelWaitingBite] {
		t.Fatalf("mutating one copy affected another")
	}
	if !b[LabelCatchSuccess] {
		t.Fatalf("expected catch-success to remain allowed in PullingNormal")
	}
}

func TestAllowedLabelsEmptyForNonPerceptionPhases(t *testing.T) {
	for _, p := range []Phase{Casting, Stopped} {
		got := AllowedLabels(p)
		if got == nil {
			t.Fatalf("AllowedLabels(%v) returned nil, want empty non-nil map", p)
		}
		if len(got) != 0 {
			t.Fatalf("AllowedLabels(%v) = %v, want empty", p, got)
		}
	}
}

func TestShowsLastLabelMatchesPerceptionDrivenPhases(t *testing.T) {
	for _, p := range []Phase{WaitingInitial, WaitingHook, FishHooked, PullingNormal, PullingHalfway, Success} {
		if !showsLastLabel(p) {
			t.Errorf("showsLastLabel(%v) = false, want true", p)
		}
	}
	for _, p := range []Phase{Stopped, Casting, Error} {
		if showsLastLabel(p) {
			t.Errorf("showsLastLabel(%v) = true, want false", p)
		}
	}
}
