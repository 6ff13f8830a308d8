package provider

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mpapenbr/tm-telemetry-provider/log"
)

type providerMetrics struct {
	reads        metric.Int64Counter
	updates      metric.Int64Counter
	failures     metric.Int64Counter
	registration metric.Registration
	l            *log.Logger
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

//nolint:funlen // by design
func newProviderMetrics(p *Provider) *providerMetrics {
	meter := otel.GetMeterProvider().Meter("tmtp.provider")
	ret := &providerMetrics{l: p.l}
	attrs := metric.WithAttributes(attribute.String("provider", p.id))

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"))
		if err != nil {
			p.l.Error("failed to register metric",
				log.String("metric", name), log.ErrorField(err))
			c = noop.Int64Counter{}
		}
		return boundCounter{c, attrs}
	}
	ret.reads = counter("tmtp.provider.reads", "Number of shared memory reads")
	ret.updates = counter("tmtp.provider.updates", "Number of published snapshots")
	ret.failures = counter("tmtp.provider.failures", "Number of failed reads")

	connected, err := meter.Int64ObservableGauge("tmtp.provider.connected",
		metric.WithDescription("1 if the telemetry region is readable"))
	if err != nil {
		p.l.Error("failed to register metric", log.ErrorField(err))
		return ret
	}
	active, err := meter.Int64ObservableGauge("tmtp.provider.active",
		metric.WithDescription("1 if new telemetry data arrived recently"))
	if err != nil {
		p.l.Error("failed to register metric", log.ErrorField(err))
		return ret
	}
	ret.registration, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(connected, boolToInt(p.IsConnected()), attrs)
			o.ObserveInt64(active, boolToInt(p.IsActive()), attrs)
			return nil
		}, connected, active)
	if err != nil {
		p.l.Error("failed to register metric callback", log.ErrorField(err))
	}
	return ret
}

func (m *providerMetrics) unregister() {
	if m.registration == nil {
		return
	}
	if err := m.registration.Unregister(); err != nil {
		m.l.Warn("failed to unregister metric callback", log.ErrorField(err))
	}
}

// boundCounter adds the provider attributes to every measurement
type boundCounter struct {
	metric.Int64Counter
	attrs metric.AddOption
}

func (c boundCounter) Add(ctx context.Context, incr int64, opts ...metric.AddOption) {
	c.Int64Counter.Add(ctx, incr, append(opts, c.attrs)...)
}
