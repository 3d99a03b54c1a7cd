package link

// rate.go - bounded ring buffers of raw traffic samples.
//
// The link only retains (byte count, timestamp) pairs; turning them
// into a moving-average throughput figure is the job of a higher-level
// rate calculator that consumes the snapshots.

// Direction tags a rate sample as inbound or outbound.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// RateSample is one raw accounting record: how many bytes moved and
// when, in Unix milliseconds.
type RateSample struct {
	Bytes       int64
	StampMillis int64
}

// rateBuffer is a fixed-capacity ring of RateSamples.  Appends are
// O(1), never allocate, and overwrite the oldest slot once full.
// Not safe for concurrent use on its own; the Link serializes access
// to both directions through a single accounting mutex.
type rateBuffer struct {
	samples []RateSample
	cursor  int // next slot to write
	count   int // filled slots, capped at len(samples)
}

func newRateBuffer(slots int) rateBuffer {
	return rateBuffer{samples: make([]RateSample, slots)}
}

func (b *rateBuffer) append(bytes, stampMillis int64) {
	b.samples[b.cursor] = RateSample{Bytes: bytes, StampMillis: stampMillis}
	b.cursor = (b.cursor + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
}

// snapshot returns the retained samples oldest to newest.
func (b *rateBuffer) snapshot() []RateSample {
	out := make([]RateSample, 0, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.cursor - b.count + i + len(b.samples)) % len(b.samples)
		out = append(out, b.samples[idx])
	}
	return out
}

// recordSample appends one accounting record for the given direction.
// The lock is held only for the O(1) append, never across I/O.
func (l *Link) recordSample(dir Direction, bytes int, stampMillis int64) {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()
	switch dir {
	case DirectionIn:
		l.inRate.append(int64(bytes), stampMillis)
	case DirectionOut:
		l.outRate.append(int64(bytes), stampMillis)
	}
}

// InSamples returns the retained inbound samples, oldest to newest.
func (l *Link) InSamples() []RateSample {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()
	return l.inRate.snapshot()
}

// OutSamples returns the retained outbound samples, oldest to newest.
func (l *Link) OutSamples() []RateSample {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()
	return l.outRate.snapshot()
}

// CurrentInDataRate is a stable stub; throughput is computed by the
// rate calculator that consumes InSamples.
func (l *Link) CurrentInDataRate() int64 { return 0 }

// CurrentOutDataRate is a stable stub; see CurrentInDataRate.
func (l *Link) CurrentOutDataRate() int64 { return 0 }
