package backoff

import "testing"

func TestBackoff_CapsAtMaxDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JitterFactor = 0
	b := New(cfg)

	d := b.Delay(30) // attempt large enough that initial*2^30 would dwarf MaxDelay
	if d > cfg.MaxDelay {
		t.Fatalf("expected delay capped at %s, got %s", cfg.MaxDelay, d)
	}
	if d != cfg.MaxDelay {
		t.Fatalf("expected delay to equal the cap with no jitter, got %s", d)
	}
}

func TestBackoff_GrowsWithAttempt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JitterFactor = 0
	b := New(cfg)

	d0 := b.Delay(0)
	d1 := b.Delay(1)
	d2 := b.Delay(2)

	if !(d0 <= d1 && d1 <= d2) {
		t.Fatalf("expected non-decreasing delay across attempts, got %s, %s, %s", d0, d1, d2)
	}
	if d0 != cfg.InitialDelay {
		t.Fatalf("expected attempt 0 to equal the initial delay, got %s", d0)
	}
}

func TestBackoff_JitterStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JitterFactor = 0.5
	b := New(cfg)

	base := cfg.InitialDelay
	lower := base / 2
	upper := base + base/2

	for i := 0; i < 20; i++ {
		d := b.Delay(0)
		if d < lower || d > upper {
			t.Fatalf("jittered delay %s outside expected bounds [%s, %s]", d, lower, upper)
		}
	}
}
