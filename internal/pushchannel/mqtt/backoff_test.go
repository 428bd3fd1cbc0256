package mqtt

import "testing"

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := newBackoff(5, 1, 8)
	want := []int64{1, 2, 4, 8, 8}
	for i, w := range want {
		d, ok := b.next()
		if !ok {
			t.Fatalf("attempt %d: expected another attempt to be allowed", i)
		}
		if int64(d) != w {
			t.Errorf("attempt %d: delay = %d, want %d", i, d, w)
		}
	}
	if _, ok := b.next(); ok {
		t.Error("expected no further attempts after maxAttempts exhausted")
	}
}

func TestBackoffResetRestartsSequence(t *testing.T) {
	b := newBackoff(3, 1, 100)
	b.next()
	b.next()
	b.reset()
	d, ok := b.next()
	if !ok || d != 1 {
		t.Errorf("after reset, expected first delay 1, got %d (ok=%v)", d, ok)
	}
}
