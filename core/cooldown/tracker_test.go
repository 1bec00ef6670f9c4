package cooldown

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestAllowedThenRejectedThenAllowed(t *testing.T) {
	tr := New()
	if d := tr.CheckAndRecord("ping", "U1", 5, epoch); !d.Allowed {
		t.Fatalf("first call rejected: %+v", d)
	}
	d := tr.CheckAndRecord("ping", "U1", 5, epoch.Add(1200*time.Millisecond))
	if d.Allowed {
		t.Fatal("second call inside window allowed")
	}
	// ceil((5000-1200)/1000) = 4
	if d.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4", d.Remaining)
	}
	if d := tr.CheckAndRecord("ping", "U1", 5, epoch.Add(5*time.Second)); !d.Allowed {
		t.Fatalf("call after window rejected: %+v", d)
	}
}

func TestRemainingImmediatelyEqualsCooldown(t *testing.T) {
	tr := New()
	tr.CheckAndRecord("ping", "U1", 5, epoch)
	if d := tr.CheckAndRecord("ping", "U1", 5, epoch); d.Allowed || d.Remaining != 5 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestRejectionDoesNotExtendWindow(t *testing.T) {
	tr := New()
	tr.CheckAndRecord("ping", "U1", 3, epoch)
	tr.CheckAndRecord("ping", "U1", 3, epoch.Add(2*time.Second))
	if d := tr.CheckAndRecord("ping", "U1", 3, epoch.Add(3*time.Second)); !d.Allowed {
		t.Fatalf("window was extended by a rejected call: %+v", d)
	}
}

func TestZeroCooldownAlwaysAllowed(t *testing.T) {
	tr := New()
	for i := 0; i < 3; i++ {
		if d := tr.CheckAndRecord("test", "U1", 0, epoch); !d.Allowed {
			t.Fatalf("call %d rejected", i)
		}
	}
	if tr.Len() != 0 {
		t.Fatalf("zero cooldown recorded state: %d", tr.Len())
	}
}

func TestGranularityPerCommandAndRequester(t *testing.T) {
	tr := New()
	tr.CheckAndRecord("ping", "U1", 10, epoch)
	if d := tr.CheckAndRecord("ping", "U2", 10, epoch); !d.Allowed {
		t.Fatal("cooldown crossed requesters")
	}
	if d := tr.CheckAndRecord("help", "U1", 10, epoch); !d.Allowed {
		t.Fatal("cooldown crossed commands")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	now := epoch
	tr := New(WithClock(func() time.Time { return now }))
	tr.CheckAndRecord("ping", "U1", 5, now)
	tr.CheckAndRecord("status", "U1", 60, now)

	now = now.Add(10 * time.Second)
	if n := tr.Sweep(tr.Now()); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d", tr.Len())
	}
	if d := tr.CheckAndRecord("status", "U1", 60, now); d.Allowed {
		t.Fatal("live entry was swept")
	}
}
