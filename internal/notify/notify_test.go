package notify

import (
	"testing"

	"github.com/bailanluo/autofish/internal/fishing"
)

type recordingSink struct {
	calls []fishing.Status
}

func (r *recordingSink) Notify(s fishing.Status) {
	r.calls = append(r.calls, s)
}

func TestEmptyFilterAlwaysMatches(t *testing.T) {
	f, err := CompileFilter("")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(fishing.Status{Phase: fishing.WaitingInitial}) {
		t.Fatalf("expected empty filter to match everything")
	}
}

func TestFilterMatchesErrorPhase(t *testing.T) {
	f, err := CompileFilter(`Phase == "ERROR"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Match(fishing.Status{Phase: fishing.WaitingInitial}) {
		t.Fatalf("expected non-error phase not to match")
	}
	if !f.Match(fishing.Status{Phase: fishing.Error, LastError: "boom"}) {
		t.Fatalf("expected error phase to match")
	}
}

func TestFilterMatchesRoundCountModulo(t *testing.T) {
	f, err := CompileFilter("RoundCount % 10 == 0")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(fishing.Status{RoundCount: 20}) {
		t.Fatalf("expected round 20 to match")
	}
	if f.Match(fishing.Status{RoundCount: 21}) {
		t.Fatalf("expected round 21 not to match")
	}
}

func TestFilteredSinkSkipsNonMatchingStatus(t *testing.T) {
	rec := &recordingSink{}
	f, err := CompileFilter(`Phase == "ERROR"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	sink := NewFilteredSink(rec, f, nil)

	sink.Notify(fishing.Status{Phase: fishing.WaitingInitial})
	sink.Notify(fishing.Status{Phase: fishing.Error})

	if len(rec.calls) != 1 {
		t.Fatalf("expected exactly one delivered notification, got %d", len(rec.calls))
	}
	if rec.calls[0].Phase != fishing.Error {
		t.Fatalf("expected the delivered notification to be the ERROR status")
	}
}

func TestFanoutRecoversFromPanickingSink(t *testing.T) {
	rec := &recordingSink{}
	panicky := sinkFunc(func(fishing.Status) { panic("boom") })
	fanout := NewFanout(nil, panicky, rec)

	fanout.Notify(fishing.Status{Phase: fishing.Success})

	if len(rec.calls) != 1 {
		t.Fatalf("expected the well-behaved sink to still be notified, got %d calls", len(rec.calls))
	}
}

type sinkFunc func(fishing.Status)

func (f sinkFunc) Notify(s fishing.Status) { f(s) }
