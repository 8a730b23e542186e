package prism

import (
	"errors"
	"strings"
	"testing"
)

func TestPausableLifecycle(t *testing.T) {
	var p Pausable
	if err := p.EnsureNotPaused(); err != nil {
		t.Fatalf("fresh pausable reports paused: %v", err)
	}
	if err := p.Pause(PauseReasonSecurityIncident); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := p.EnsureNotPaused(); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused error, got %v", err)
	} else if !strings.Contains(err.Error(), "security_incident") {
		t.Fatalf("pause reason missing from error: %v", err)
	}
	if err := p.EnsurePaused(); err != nil {
		t.Fatalf("EnsurePaused while paused: %v", err)
	}
	if err := p.Unpause(); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if p.Reason != PauseReasonNone {
		t.Fatalf("reason not cleared: %s", p.Reason)
	}
}

func TestPausableDoubleTransitions(t *testing.T) {
	var p Pausable
	if err := p.Unpause(); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("unpause while running: %v", err)
	}
	if err := p.EnsurePaused(); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("EnsurePaused while running: %v", err)
	}
	if err := p.Pause(PauseReasonMaintenance); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := p.Pause(PauseReasonUpgrade); !errors.Is(err, ErrAlreadyPaused) {
		t.Fatalf("double pause: %v", err)
	}
	if p.Reason != PauseReasonMaintenance {
		t.Fatalf("failed pause overwrote reason: %s", p.Reason)
	}
}

func TestPauseReasonRoundTrip(t *testing.T) {
	reasons := []PauseReason{
		PauseReasonSecurityIncident,
		PauseReasonMaintenance,
		PauseReasonUpgrade,
		PauseReasonEmergency,
	}
	for _, reason := range reasons {
		got, err := ParsePauseReason(reason.String())
		if err != nil {
			t.Fatalf("round trip %s: %v", reason, err)
		}
		if got != reason {
			t.Fatalf("round trip %s gave %s", reason, got)
		}
	}
}

func TestParsePauseReasonRejectsUnknownLabels(t *testing.T) {
	for _, label := range []string{"nonsense", "", "MAINTENANCE", "security incident"} {
		got, err := ParsePauseReason(label)
		if !errors.Is(err, ErrUnknownPauseReason) {
			t.Fatalf("label %q: got %v, want ErrUnknownPauseReason", label, err)
		}
		if got != PauseReasonNone {
			t.Fatalf("label %q resolved to %s", label, got)
		}
	}
}
