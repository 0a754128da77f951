package circuitbreaker

import "testing"

func TestBreaker_TripsAfterFailureThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, ResetTimeoutSeconds: 30})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != Closed {
		t.Fatalf("expected Closed before threshold, got %s", b.State())
	}

	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected Open at threshold, got %s", b.State())
	}
	if b.AllowRequest() {
		t.Fatal("expected Open breaker to refuse requests before reset timeout elapses")
	}
}

func TestBreaker_SuccessInClosedResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, ResetTimeoutSeconds: 30})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess() // should zero the failure count

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != Closed {
		t.Fatalf("expected breaker to still be Closed since the success reset the streak, got %s", b.State())
	}
}

func TestBreaker_DefaultsAppliedForInvalidConfig(t *testing.T) {
	b := New(Config{})
	if b.State() != Closed {
		t.Fatalf("expected a fresh breaker to start Closed, got %s", b.State())
	}
	for i := 0; i < 4; i++ {
		b.RecordFailure()
		if b.State() != Closed {
			t.Fatalf("expected default failure threshold > 4, tripped early at failure %d", i+1)
		}
	}
}
