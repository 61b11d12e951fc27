package collector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/gpu"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/metrics"
)

func TestNextInterval(t *testing.T) {
	const (
		initial = 30 * time.Second
		max     = 3600 * time.Second
	)

	tests := []struct {
		name     string
		previous time.Duration
		changed  bool
		want     time.Duration
	}{
		{"doubles while stable", 30 * time.Second, false, 60 * time.Second},
		{"keeps doubling", 240 * time.Second, false, 480 * time.Second},
		{"caps at max", 1920 * time.Second, false, max},
		{"stays at max", max, false, max},
		{"resets on change", 1920 * time.Second, true, initial},
		{"reset from max", max, true, initial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextInterval(tt.previous, tt.changed, initial, max)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextIntervalSequence(t *testing.T) {
	const (
		initial = 30 * time.Second
		max     = 3600 * time.Second
	)

	interval := initial
	var got []time.Duration
	for i := 0; i < 9; i++ {
		interval = nextInterval(interval, i == 0, initial, max)
		got = append(got, interval/time.Second)
	}

	assert.Equal(t, []time.Duration{30, 60, 120, 240, 480, 960, 1920, 3600, 3600}, got)
}

// scheduleQuerier reports a scripted device count per discovery pass and
// stamps the clock at each enumeration so tests can verify the pauses
// between discoveries.
type scheduleQuerier struct {
	mu     sync.Mutex
	counts []int
	pass   int

	clk        clock.Clock
	discovered chan time.Time
}

func (q *scheduleQuerier) Init() error     { return nil }
func (q *scheduleQuerier) Shutdown() error { return nil }

func (q *scheduleQuerier) DeviceCount() (int, error) {
	q.mu.Lock()
	index := q.pass
	if index >= len(q.counts) {
		index = len(q.counts) - 1
	}
	q.pass++
	count := q.counts[index]
	q.mu.Unlock()

	if q.discovered != nil {
		q.discovered <- q.clk.Now()
	}

	return count, nil
}

func (q *scheduleQuerier) DeviceByIndex(index int) (gpu.Device, error) {
	return newTestDevice(fmt.Sprintf("GPU-%d", index)), nil
}

// scrapeGate is a hand-driven gate for loop tests.
type scrapeGate struct {
	ch chan chan<- struct{}
}

func newScrapeGate() *scrapeGate {
	return &scrapeGate{ch: make(chan chan<- struct{})}
}

func (g *scrapeGate) Scrapes() <-chan chan<- struct{} { return g.ch }

func awaitDiscovery(t *testing.T, discovered <-chan time.Time) time.Time {
	t.Helper()
	select {
	case stamp := <-discovered:
		return stamp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discovery pass")
		return time.Time{}
	}
}

// advance lets the loop arm its refresh timer before moving the mock clock.
func advance(clk *clock.Mock, d time.Duration) {
	time.Sleep(50 * time.Millisecond)
	clk.Add(d)
}

func TestLoopDoublesRefreshIntervalWhileStable(t *testing.T) {
	clk := clock.NewMock()
	querier := &scheduleQuerier{counts: []int{1}, clk: clk, discovered: make(chan time.Time)}
	registry := metrics.NewRegistry()
	loop := NewLoop(querier, NewSampler(registry), newScrapeGate(), 30*time.Second, 3600*time.Second, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	first := awaitDiscovery(t, querier.discovered)
	advance(clk, 30*time.Second)
	second := awaitDiscovery(t, querier.discovered)
	advance(clk, 60*time.Second)
	third := awaitDiscovery(t, querier.discovered)

	assert.Equal(t, 30*time.Second, second.Sub(first))
	assert.Equal(t, 60*time.Second, third.Sub(second))

	cancel()
	advance(clk, 120*time.Second)
	require.NoError(t, <-done)
}

func TestLoopResetsRefreshIntervalOnCountChange(t *testing.T) {
	clk := clock.NewMock()
	querier := &scheduleQuerier{counts: []int{1, 1, 2}, clk: clk, discovered: make(chan time.Time)}
	registry := metrics.NewRegistry()
	loop := NewLoop(querier, NewSampler(registry), newScrapeGate(), 30*time.Second, 3600*time.Second, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	awaitDiscovery(t, querier.discovered)
	advance(clk, 30*time.Second)
	awaitDiscovery(t, querier.discovered)
	advance(clk, 60*time.Second)

	// Third pass sees a new device, so the pause after it drops back to the
	// initial interval.
	third := awaitDiscovery(t, querier.discovered)
	advance(clk, 30*time.Second)
	fourth := awaitDiscovery(t, querier.discovered)

	assert.Equal(t, 30*time.Second, fourth.Sub(third))

	cancel()
	advance(clk, 60*time.Second)
	require.NoError(t, <-done)
}

func TestLoopSamplesOnScrape(t *testing.T) {
	querier := &scheduleQuerier{counts: []int{1}, clk: clock.New()}
	registry := metrics.NewRegistry()
	gate := newScrapeGate()
	loop := NewLoop(querier, NewSampler(registry), gate, time.Hour, time.Hour, clock.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	reply := make(chan struct{})
	select {
	case gate.ch <- reply:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never accepted the scrape request")
	}

	select {
	case <-reply:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never released the scrape")
	}

	labels := map[string]string{"uuid": "GPU-0", "name": "NVIDIA Test", "pci": "00000000:01:00.0"}
	value, ok := series(t, registry, metrics.Temperature, labels)
	require.True(t, ok)
	assert.Equal(t, 55.0, value)

	cancel()
	require.NoError(t, <-done)
}

// failingQuerier yields a device whose telemetry reads fail after discovery.
type failingQuerier struct {
	scheduleQuerier
	readErr error
}

func (q *failingQuerier) DeviceByIndex(index int) (gpu.Device, error) {
	device := newTestDevice(fmt.Sprintf("GPU-%d", index))
	device.tempErr = q.readErr
	return device, nil
}

func TestLoopSurfacesSamplingError(t *testing.T) {
	readErr := fmt.Errorf("sensor read failed")
	querier := &failingQuerier{
		scheduleQuerier: scheduleQuerier{counts: []int{1}, clk: clock.New()},
		readErr:         readErr,
	}
	registry := metrics.NewRegistry()
	gate := newScrapeGate()
	loop := NewLoop(querier, NewSampler(registry), gate, time.Hour, time.Hour, clock.New())

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	reply := make(chan struct{})
	select {
	case gate.ch <- reply:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never accepted the scrape request")
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, readErr)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not surface the sampling error")
	}
}
