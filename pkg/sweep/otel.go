package sweep

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/worldsweep/extension/pkg/sweep"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// otelMetrics bundles the instruments a sweeper records over its
// lifetime. Uses the global OTel meter (no-op if not configured).
type otelMetrics struct {
	started   metric.Int64Counter
	rejected  metric.Int64Counter
	completed metric.Int64Counter
	aborted   metric.Int64Counter
	removed   metric.Int64Counter
	items     metric.Int64Counter
	running   metric.Int64ObservableGauge
}

func newOtelMetrics(s *Sweeper) (*otelMetrics, error) {
	m := meter()
	om := &otelMetrics{}

	var err error

	om.started, err = m.Int64Counter(
		"sweep.passes.started",
		metric.WithDescription("Total cleanup passes started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}

	om.rejected, err = m.Int64Counter(
		"sweep.passes.rejected",
		metric.WithDescription("Total cleanup requests rejected while a pass was running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	om.completed, err = m.Int64Counter(
		"sweep.passes.completed",
		metric.WithDescription("Total cleanup passes run to completion"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completed counter: %w", err)
	}

	om.aborted, err = m.Int64Counter(
		"sweep.passes.aborted",
		metric.WithDescription("Total cleanup passes aborted or cancelled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating aborted counter: %w", err)
	}

	om.removed, err = m.Int64Counter(
		"sweep.entities.removed",
		metric.WithDescription("Total held entities destroyed by cleanup passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}

	om.items, err = m.Int64Counter(
		"sweep.items.considered",
		metric.WithDescription("Total items inspected during ownership resolution"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating items counter: %w", err)
	}

	om.running, err = m.Int64ObservableGauge(
		"sweep.running",
		metric.WithDescription("1 while a cleanup pass is in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating running gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			var v int64
			if s.running.Load() {
				v = 1
			}
			o.ObserveInt64(om.running, v)
			return nil
		},
		om.running,
	)
	if err != nil {
		return nil, fmt.Errorf("registering running gauge: %w", err)
	}

	return om, nil
}

func (m *otelMetrics) addStarted() {
	m.started.Add(context.Background(), 1)
}

func (m *otelMetrics) addRejected() {
	m.rejected.Add(context.Background(), 1)
}

func (m *otelMetrics) recordPass(r *Report) {
	ctx := context.Background()
	if r.Aborted {
		m.aborted.Add(ctx, 1)
	} else {
		m.completed.Add(ctx, 1)
	}
	if r.Removed > 0 {
		m.removed.Add(ctx, int64(r.Removed))
	}
	if r.ItemsConsidered > 0 {
		m.items.Add(ctx, int64(r.ItemsConsidered))
	}
}
