package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// case durations are recorded in milliseconds, up to one hour
const maxCaseMillis = 3_600_000

// Timings aggregates case durations
type Timings struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

type TimingSummary struct {
	Count int64
	Min   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

func NewTimings() *Timings {
	return &Timings{
		histogram: hdrhistogram.New(1, maxCaseMillis, 3),
	}
}

// Record adds one case duration
func (t *Timings) Record(d time.Duration) {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if ms > maxCaseMillis {
		ms = maxCaseMillis
	}

	t.mu.Lock()
	_ = t.histogram.RecordValue(ms)
	t.mu.Unlock()
}

func (t *Timings) Summary() TimingSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.histogram.TotalCount() == 0 {
		return TimingSummary{}
	}

	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
	return TimingSummary{
		Count: t.histogram.TotalCount(),
		Min:   ms(t.histogram.Min()),
		Mean:  time.Duration(t.histogram.Mean() * float64(time.Millisecond)),
		P50:   ms(t.histogram.ValueAtQuantile(50)),
		P95:   ms(t.histogram.ValueAtQuantile(95)),
		Max:   ms(t.histogram.Max()),
	}
}
