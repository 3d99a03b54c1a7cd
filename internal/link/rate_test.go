package link

import (
	"testing"

	"telemlink/config"
)

// TestRateBufferOverwrite verifies the ring keeps only the most
// recent samples once full.
func TestRateBufferOverwrite(t *testing.T) {
	b := newRateBuffer(4)
	for i := 1; i <= 10; i++ {
		b.append(int64(i), int64(1000+i))
	}

	got := b.snapshot()
	if len(got) != 4 {
		t.Fatalf("snapshot len = %d, want 4", len(got))
	}
	for i, s := range got {
		want := int64(7 + i) // samples 7,8,9,10 in recency order
		if s.Bytes != want {
			t.Errorf("sample %d bytes = %d, want %d", i, s.Bytes, want)
		}
		if s.StampMillis != 1000+want {
			t.Errorf("sample %d stamp = %d, want %d", i, s.StampMillis, 1000+want)
		}
	}
}

// TestRateBufferPartial verifies order before the ring wraps.
func TestRateBufferPartial(t *testing.T) {
	b := newRateBuffer(8)
	b.append(10, 1)
	b.append(20, 2)

	got := b.snapshot()
	if len(got) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(got))
	}
	if got[0].Bytes != 10 || got[1].Bytes != 20 {
		t.Errorf("snapshot = %v, want [10 20]", got)
	}
}

// TestLinkSamplesBounded verifies the per-link buffers never exceed
// their configured capacity.
func TestLinkSamplesBounded(t *testing.T) {
	l := New("127.0.0.1", 5760, false)

	for i := 0; i < config.DefaultRateWindowSlots*3; i++ {
		l.recordSample(DirectionIn, i, int64(i))
		l.recordSample(DirectionOut, i, int64(i))
	}

	in := l.InSamples()
	out := l.OutSamples()
	if len(in) != config.DefaultRateWindowSlots {
		t.Errorf("in samples = %d, want %d", len(in), config.DefaultRateWindowSlots)
	}
	if len(out) != config.DefaultRateWindowSlots {
		t.Errorf("out samples = %d, want %d", len(out), config.DefaultRateWindowSlots)
	}

	last := in[len(in)-1]
	if last.Bytes != int64(config.DefaultRateWindowSlots*3-1) {
		t.Errorf("newest sample = %d, want %d", last.Bytes, config.DefaultRateWindowSlots*3-1)
	}
}

// TestRateStubs verifies the rate queries stay zero-cost stubs; the
// raw samples are the product here.
func TestRateStubs(t *testing.T) {
	l := New("127.0.0.1", 5760, false)
	l.recordSample(DirectionIn, 512, 1)

	if r := l.CurrentInDataRate(); r != 0 {
		t.Errorf("CurrentInDataRate = %d, want 0", r)
	}
	if r := l.CurrentOutDataRate(); r != 0 {
		t.Errorf("CurrentOutDataRate = %d, want 0", r)
	}
}
