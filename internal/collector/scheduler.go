package collector

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/gpu"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/logger"
)

// ScrapeGate is the synchronization surface of the HTTP responder. Each
// value received is one pending scrape request; closing it releases the
// response after the sampling pass completes.
type ScrapeGate interface {
	Scrapes() <-chan chan<- struct{}
}

// Loop alternates between a discovery phase and a scrape-gated sampling
// phase. Discovery re-initializes the device-query subsystem from scratch;
// the pause between discoveries doubles while the device count is stable and
// resets when it changes.
type Loop struct {
	querier gpu.Querier
	sampler *Sampler
	gate    ScrapeGate
	clock   clock.Clock

	initial time.Duration
	max     time.Duration

	interval  time.Duration
	lastCount int
}

func NewLoop(querier gpu.Querier, sampler *Sampler, gate ScrapeGate, initial, max time.Duration, clk clock.Clock) *Loop {
	return &Loop{
		querier: querier,
		sampler: sampler,
		gate:    gate,
		clock:   clk,
		initial: initial,
		max:     max,
	}
}

// nextInterval computes the refresh interval from the previous one and
// whether the discovered device count changed.
func nextInterval(previous time.Duration, changed bool, initial, max time.Duration) time.Duration {
	if changed {
		return initial
	}

	next := previous * 2
	if next > max {
		next = max
	}

	return next
}

// Run drives the collection loop until the context is canceled or a
// discovery or sampling error occurs. Errors are fatal: the loop does not
// retry, it surfaces them to the caller.
func (l *Loop) Run(ctx context.Context) error {
	l.interval = l.initial

	for {
		handles, err := gpu.Discover(l.querier)
		if err != nil {
			return err
		}

		changed := len(handles) != l.lastCount
		l.interval = nextInterval(l.interval, changed, l.initial, l.max)
		l.lastCount = len(handles)

		logger.Debug().
			Int("devices", len(handles)).
			Bool("changed", changed).
			Dur("refresh_interval", l.interval).
			Msg("Discovery phase complete")

		deadline := l.clock.Now().Add(l.interval)
		if err := l.sample(ctx, handles, deadline); err != nil {
			return err
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// sample serves scrape requests until the refresh deadline passes. Each
// request triggers a full per-device pass before the response is released,
// so the scrape reflects metrics no older than the triggering request.
func (l *Loop) sample(ctx context.Context, handles []*gpu.Handle, deadline time.Time) error {
	for {
		remaining := deadline.Sub(l.clock.Now())
		if remaining <= 0 {
			return nil
		}

		timer := l.clock.Timer(remaining)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			return nil
		case reply := <-l.gate.Scrapes():
			timer.Stop()
			for _, handle := range handles {
				if err := l.sampler.Update(handle); err != nil {
					return err
				}
			}
			close(reply)
		}
	}
}
