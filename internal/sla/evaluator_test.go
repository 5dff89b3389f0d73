package sla

import (
	"testing"
	"time"

	"casedesk.io/internal/cases"
)

func openCase(created time.Time) cases.Case {
	return cases.Case{
		ID:         1,
		CustomerID: 1,
		Status:     cases.StatusOpen,
		Priority:   cases.PriorityHigh,
		CreatedAt:  created,
	}
}

func highThreshold() *Threshold {
	return &Threshold{
		Priority:            cases.PriorityHigh,
		ResponseTimeHours:   4,
		ResolutionTimeHours: 24,
		IsActive:            true,
	}
}

func TestEvaluateResponseBreachBoundaryIsStrict(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := openCase(created)

	atDeadline := Evaluate(c, highThreshold(), created.Add(4*time.Hour))
	if atDeadline.ResponseBreached {
		t.Fatal("evaluation exactly at the deadline must not breach")
	}

	pastDeadline := Evaluate(c, highThreshold(), created.Add(4*time.Hour+time.Minute))
	if !pastDeadline.ResponseBreached {
		t.Fatal("evaluation one minute past the deadline must breach")
	}
	if pastDeadline.ResolutionBreached {
		t.Fatal("resolution deadline not yet reached")
	}
}

func TestEvaluateFirstResponseClearsBreach(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := openCase(created)
	responded := created.Add(time.Hour)
	c.FirstResponseAt = &responded

	ev := Evaluate(c, highThreshold(), created.Add(10*time.Hour))
	if ev.ResponseBreached {
		t.Fatal("a recorded first response must prevent a response breach")
	}
	if ev.ResolutionBreached {
		t.Fatal("resolution not due yet")
	}
}

func TestEvaluateClockStopsOffActiveStates(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(100 * time.Hour)

	for _, status := range []cases.Status{cases.StatusPending, cases.StatusResolved, cases.StatusClosed} {
		c := openCase(created)
		c.Status = status
		ev := Evaluate(c, highThreshold(), now)
		if ev.ResponseBreached || ev.ResolutionBreached {
			t.Fatalf("status %s must never show as breached", status)
		}
		if ev.ResponseDeadline == nil || ev.ResolutionDeadline == nil {
			t.Fatalf("deadlines are still reported for status %s", status)
		}
	}
}

func TestEvaluateWithoutThreshold(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := openCase(created)

	ev := Evaluate(c, nil, created.Add(1000*time.Hour))
	if ev.ResponseBreached || ev.ResolutionBreached {
		t.Fatal("no threshold means nothing to violate")
	}
	if ev.ResponseSLAMinutes != nil || ev.ResolutionSLAMinutes != nil {
		t.Fatal("minutes must stay nil without a threshold")
	}

	inactive := highThreshold()
	inactive.IsActive = false
	ev = Evaluate(c, inactive, created.Add(1000*time.Hour))
	if ev.ResponseBreached || ev.ResponseSLAMinutes != nil {
		t.Fatal("inactive threshold must behave like no threshold")
	}
}

func TestEvaluateResolutionBreach(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := openCase(created)
	c.Status = cases.StatusInProgress
	responded := created.Add(time.Hour)
	c.FirstResponseAt = &responded

	ev := Evaluate(c, highThreshold(), created.Add(25*time.Hour))
	if ev.ResponseBreached {
		t.Fatal("response milestone recorded")
	}
	if !ev.ResolutionBreached {
		t.Fatal("resolution deadline exceeded without ResolvedAt")
	}
	if got := *ev.ResolutionSLAMinutes; got != 24*60 {
		t.Fatalf("unexpected resolution minutes: %d", got)
	}
}
