// Package provider polls the telemetry region and publishes new snapshots.
package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/utils/broadcast"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/values"
)

const (
	DefaultSampleRate   = 100
	DefaultIdleTimeout  = 500 * time.Millisecond
	DefaultRetryBackoff = 1000 * time.Millisecond
)

// SnapshotReader is implemented by shm.Reader
type SnapshotReader interface {
	Read() (*model.Snapshot, error)
	Close() error
}

// StateListener is called whenever connected or active changes.
type StateListener func(connected, active bool)

type Provider struct {
	id            string
	reader        SnapshotReader
	samplePeriod  time.Duration
	idleTimeout   time.Duration
	retryBackoff  time.Duration
	now           func() time.Time
	l             *log.Logger
	stateListener StateListener
	tracer        trace.Tracer

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool

	running   atomic.Bool
	connected atomic.Bool
	active    atomic.Bool
	latest    atomic.Pointer[values.Info]

	// only accessed by the polling goroutine
	previous   *model.Snapshot
	lastChange time.Time
	validated  bool
	// spans one connected period, ended on disconnect
	session trace.Span

	updates chan *values.Info
	bcst    broadcast.BroadcastServer[*values.Info]
	errs    chan error
	metrics *providerMetrics
}

type Option func(*Provider)

func WithReader(r SnapshotReader) Option {
	return func(p *Provider) {
		p.reader = r
	}
}

// WithSampleRate sets the number of polls per second. Values <= 0 are ignored.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.samplePeriod = time.Second / time.Duration(rate)
		}
	}
}

// WithIdleTimeout sets the duration without new data after which the
// provider is no longer considered active.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.idleTimeout = d
	}
}

// WithRetryBackoff sets the pause after a failed read.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Provider) {
		p.retryBackoff = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.l = l
	}
}

// WithTracerProvider sets the provider of session spans. Defaults to the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Provider) {
		p.tracer = tp.Tracer("tmtp.provider")
	}
}

// WithStateListener sets the function called on connected/active changes.
// It runs on the polling goroutine and must not call Start, Stop or Close.
func WithStateListener(listener StateListener) Option {
	return func(p *Provider) {
		p.stateListener = listener
	}
}

func New(opts ...Option) *Provider {
	ret := &Provider{
		id:           uuid.NewString(),
		samplePeriod: time.Second / DefaultSampleRate,
		idleTimeout:  DefaultIdleTimeout,
		retryBackoff: DefaultRetryBackoff,
		now:          time.Now,
		l:            log.Default().Named("provider"),
		updates:      make(chan *values.Info),
		errs:         make(chan error, 16),
		previous:     &model.Snapshot{},
		tracer:       otel.Tracer("tmtp.provider"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.l = ret.l.With(log.String("provider", ret.id))
	ret.bcst = broadcast.NewBroadcastServer("provider", ret.updates,
		broadcast.WithBufferSize[*values.Info](16),
		broadcast.WithSendTimeout[*values.Info](0),
		broadcast.WithLogger[*values.Info](ret.l))
	ret.metrics = newProviderMetrics(ret)
	return ret
}

func (p *Provider) ID() string { return p.id }

// Start launches the polling goroutine. Calling Start on a running provider
// has no effect.
func (p *Provider) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil || p.closed {
		return
	}
	p.l.Debug("Starting provider",
		log.Duration("samplePeriod", p.samplePeriod),
		log.Duration("idleTimeout", p.idleTimeout))
	p.previous = &model.Snapshot{}
	p.lastChange = p.now()
	p.validated = false
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.running.Store(true)
	go p.run(p.stop, p.done)
}

// Stop ends polling and waits for the current cycle to finish. The region
// handle is released. Calling Stop on a stopped provider has no effect.
// Stop must not be called from a StateListener.
func (p *Provider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	p.l.Debug("Stopping provider")
	close(p.stop)
	<-p.done
	p.stop = nil
	p.done = nil
	p.running.Store(false)
	p.setState(false, false)
	if err := p.reader.Close(); err != nil {
		p.l.Warn("error releasing reader", log.ErrorField(err))
	}
}

// Close stops the provider and closes all subscriptions.
func (p *Provider) Close() {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.bcst.Close()
	p.metrics.unregister()
}

func (p *Provider) IsRunning() bool { return p.running.Load() }

func (p *Provider) IsConnected() bool { return p.connected.Load() }
func (p *Provider) IsActive() bool    { return p.active.Load() }

// Latest returns the most recently published snapshot info or nil.
func (p *Provider) Latest() *values.Info {
	return p.latest.Load()
}

// ValueByName resolves name against the latest published snapshot.
func (p *Provider) ValueByName(name string) (values.Value, error) {
	return p.latest.Load().ValueByName(name)
}

// Names lists the names accepted by ValueByName.
func (p *Provider) Names() []string {
	return values.Names()
}

// Subscribe returns a channel receiving every new snapshot.
func (p *Provider) Subscribe() <-chan *values.Info {
	return p.bcst.Subscribe()
}

func (p *Provider) CancelSubscription(ch <-chan *values.Info) {
	p.bcst.CancelSubscription(ch)
}

// Errors reports read failures. Errors are dropped if the channel is not drained.
func (p *Provider) Errors() <-chan error {
	return p.errs
}

func (p *Provider) run(stop, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C
	for {
		select {
		case <-stop:
			return
		default:
		}
		timer.Reset(p.cycle(stop))
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// cycle performs one read-compare-publish step and returns the time to wait
// before the next one.
func (p *Provider) cycle(stop <-chan struct{}) time.Duration {
	ctx := context.Background()
	p.metrics.reads.Add(ctx, 1)
	snap, err := p.reader.Read()
	if err != nil {
		p.metrics.failures.Add(ctx, 1)
		if p.session != nil {
			p.session.RecordError(err)
			p.session.SetStatus(codes.Error, "read failed")
		}
		p.setState(false, false)
		p.validated = false
		p.reportError(err)
		return p.retryBackoff
	}
	if !p.validated {
		if vErr := snap.Validate(); vErr != nil {
			p.l.Warn("unexpected telemetry header", log.ErrorField(vErr))
		}
		p.validated = true
	}

	changed := snap.Object.Timestamp != p.previous.Object.Timestamp
	switch {
	case changed:
		p.lastChange = p.now()
		p.setState(true, true)
	case p.now().Sub(p.lastChange) > p.idleTimeout:
		p.setState(true, false)
	default:
		p.setState(true, p.active.Load())
	}
	if !changed {
		return p.samplePeriod
	}

	info := values.NewInfo(snap)
	p.latest.Store(info)
	p.previous = snap
	p.metrics.updates.Add(ctx, 1)
	select {
	case p.updates <- info:
	case <-stop:
	}
	return p.samplePeriod
}

func (p *Provider) setState(connected, active bool) {
	oldConnected := p.connected.Swap(connected)
	oldActive := p.active.Swap(active)
	if oldConnected == connected && oldActive == active {
		return
	}
	p.l.Info("telemetry state changed",
		log.Bool("connected", connected),
		log.Bool("active", active))
	p.traceState(connected, active, oldConnected)
	if p.stateListener != nil {
		p.stateListener(connected, active)
	}
}

func (p *Provider) reportError(err error) {
	p.l.Debug("error reading telemetry", log.ErrorField(err))
	select {
	case p.errs <- err:
	default:
		p.l.Debug("error channel full, dropping error")
	}
}

func (p *Provider) traceState(connected, active, wasConnected bool) {
	switch {
	case connected && !wasConnected:
		_, p.session = p.tracer.Start(context.Background(), "telemetry session",
			trace.WithAttributes(attribute.String("provider", p.id)))
	case !connected && p.session != nil:
		p.session.End()
		p.session = nil
		return
	}
	if p.session != nil {
		p.session.AddEvent("state changed",
			trace.WithAttributes(attribute.Bool("active", active)))
	}
}
