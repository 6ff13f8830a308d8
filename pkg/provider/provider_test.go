//nolint:funlen // ok for tests
package provider

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/shm"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/values"
)

type fakeReader struct {
	mu     sync.Mutex
	snap   *model.Snapshot
	err    error
	reads  int
	closes int
}

func (f *fakeReader) Read() (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.snap
	return &cp, nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeReader) set(ts uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = nil
	f.snap = model.NewSnapshot(2)
	f.snap.Object.Timestamp = ts
}

func (f *fakeReader) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stateRecorder struct {
	mu      sync.Mutex
	changes [][2]bool
}

func (s *stateRecorder) record(connected, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, [2]bool{connected, active})
}

func (s *stateRecorder) get() [][2]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]bool{}, s.changes...)
}

func receive(t *testing.T, ch <-chan *values.Info) *values.Info {
	t.Helper()
	select {
	case info := <-ch:
		return info
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}
	return nil
}

func assertNoUpdate(t *testing.T, ch <-chan *values.Info) {
	t.Helper()
	select {
	case info := <-ch:
		t.Fatalf("unexpected update %v", info.Snapshot().Object.Timestamp)
	case <-time.After(20 * time.Millisecond):
	}
}

// newTestProvider returns a provider prepared for calling cycle directly
func newTestProvider(r SnapshotReader, opts ...Option) (*Provider, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := New(append([]Option{WithReader(r), WithClock(clock.Now)}, opts...)...)
	p.lastChange = clock.Now()
	return p, clock
}

func TestCycleChangeDetection(t *testing.T) {
	r := &fakeReader{}
	p, clock := newTestProvider(r)
	defer p.Close()
	ch := p.Subscribe()

	r.set(10)
	assert.Equal(t, p.samplePeriod, p.cycle(nil))
	info := receive(t, ch)
	assert.Equal(t, uint32(10), info.Snapshot().Object.Timestamp)
	assert.Same(t, info, p.Latest())
	assert.Equal(t, uint32(10), p.previous.Object.Timestamp)
	assert.True(t, p.IsConnected())
	assert.True(t, p.IsActive())

	clock.Advance(10 * time.Millisecond)
	p.cycle(nil)
	assertNoUpdate(t, ch)

	r.set(11)
	p.cycle(nil)
	info = receive(t, ch)
	assert.Equal(t, uint32(11), info.Snapshot().Object.Timestamp)
	assert.Equal(t, uint32(11), p.previous.Object.Timestamp)
	assertNoUpdate(t, ch)
}

func TestCycleNotSlowedByStalledSubscriber(t *testing.T) {
	r := &fakeReader{}
	p, clock := newTestProvider(r)
	defer p.Close()
	_ = p.Subscribe() // never drained

	start := time.Now()
	for i := range 40 {
		r.set(uint32(i + 1))
		clock.Advance(p.samplePeriod)
		p.cycle(nil)
	}
	elapsed := time.Since(start)
	assert.Less(t, elapsed, 40*p.samplePeriod/2,
		"40 cycles took %v with sample period %v", elapsed, p.samplePeriod)
	assert.Equal(t, uint32(40), p.Latest().Snapshot().Object.Timestamp)
	assert.True(t, p.IsActive())
}

func TestCycleStaleness(t *testing.T) {
	r := &fakeReader{}
	rec := &stateRecorder{}
	p, clock := newTestProvider(r, WithStateListener(rec.record))
	defer p.Close()
	ch := p.Subscribe()

	r.set(1)
	p.cycle(nil)
	receive(t, ch)
	assert.Equal(t, [][2]bool{{true, true}}, rec.get())

	// 10 cycles, 100ms apart, without new data
	for i := range 10 {
		clock.Advance(100 * time.Millisecond)
		p.cycle(nil)
		if i < 5 {
			assert.True(t, p.IsActive(), "cycle %d", i)
		} else {
			assert.False(t, p.IsActive(), "cycle %d", i)
		}
		assert.True(t, p.IsConnected())
	}
	assertNoUpdate(t, ch)
	assert.Equal(t, [][2]bool{{true, true}, {true, false}}, rec.get())

	r.set(2)
	p.cycle(nil)
	receive(t, ch)
	assert.True(t, p.IsActive())
	assert.Equal(t, [][2]bool{{true, true}, {true, false}, {true, true}}, rec.get())
}

func TestCycleFailure(t *testing.T) {
	r := &fakeReader{}
	p, _ := newTestProvider(r, WithRetryBackoff(1234*time.Millisecond))
	defer p.Close()

	r.set(1)
	p.cycle(nil)
	require.True(t, p.IsConnected())

	r.fail(shm.ErrRegionUnavailable)
	assert.Equal(t, 1234*time.Millisecond, p.cycle(nil))
	assert.False(t, p.IsConnected())
	assert.False(t, p.IsActive())
	select {
	case err := <-p.Errors():
		assert.ErrorIs(t, err, shm.ErrRegionUnavailable)
	default:
		t.Fatal("expected error to be reported")
	}

	// errors are dropped once the channel is full
	for range cap(p.errs) + 5 {
		p.cycle(nil)
	}
	assert.Len(t, p.errs, cap(p.errs))
}

func TestStartStop(t *testing.T) {
	r := &fakeReader{}
	r.set(1)
	p := New(WithReader(r), WithSampleRate(1000))
	defer p.Close()

	p.Stop() // not running, no effect
	assert.Equal(t, 0, r.closes)

	p.Start()
	p.Start()
	assert.True(t, p.IsRunning())
	assert.Eventually(t, p.IsConnected, time.Second, time.Millisecond)

	p.Stop()
	assert.False(t, p.IsRunning())
	assert.False(t, p.IsConnected())
	assert.False(t, p.IsActive())
	assert.Equal(t, 1, r.closes)
	p.Stop()
	assert.Equal(t, 1, r.closes)

	// restart after stop
	p.Start()
	assert.Eventually(t, p.IsConnected, time.Second, time.Millisecond)
	p.Stop()
	assert.Equal(t, 2, r.closes)
}

func TestStateListenerQueriesProvider(t *testing.T) {
	r := &fakeReader{}
	r.set(1)
	type observation struct{ running, connected bool }
	seen := make(chan observation, 8)
	var p *Provider
	p = New(WithReader(r), WithSampleRate(1000), WithIdleTimeout(time.Hour),
		WithStateListener(func(connected, _ bool) {
			_ = p.Latest()
			seen <- observation{p.IsRunning(), connected}
		}))
	defer p.Close()

	p.Start()
	assert.Eventually(t, p.IsConnected, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked by state listener")
	}
	assert.Equal(t, observation{running: true, connected: true}, <-seen)
	assert.Equal(t, observation{running: false, connected: false}, <-seen)
}

func TestSessionSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	r := &fakeReader{}
	p, clock := newTestProvider(r, WithTracerProvider(tp))
	defer p.Close()

	r.set(1)
	p.cycle(nil)
	require.Len(t, sr.Started(), 1)
	assert.Empty(t, sr.Ended())

	clock.Advance(time.Second)
	p.cycle(nil) // idle
	r.fail(shm.ErrTruncatedRead)
	p.cycle(nil)

	require.Len(t, sr.Ended(), 1)
	span := sr.Ended()[0]
	assert.Equal(t, "telemetry session", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	names := make([]string, 0, len(span.Events()))
	for _, e := range span.Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"state changed", "state changed", "exception"}, names)

	// a new connection starts a new session
	r.set(2)
	p.cycle(nil)
	assert.Len(t, sr.Started(), 2)
}

func TestStopDuringBackoff(t *testing.T) {
	r := &fakeReader{}
	r.fail(errors.New("boom"))
	p := New(WithReader(r), WithRetryBackoff(time.Hour))
	defer p.Close()

	p.Start()
	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.reads > 0
	}, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked by retry backoff")
	}
}

func TestValueByName(t *testing.T) {
	r := &fakeReader{}
	p, _ := newTestProvider(r)
	defer p.Close()

	_, err := p.ValueByName("RPM")
	require.ErrorIs(t, err, values.ErrUnknownValue, "no data yet")

	r.set(5)
	r.snap.Vehicle.EngineRpm = 4200
	p.cycle(nil)
	v, err := p.ValueByName("RPM")
	require.NoError(t, err)
	assert.InDelta(t, 4200.0, v.Value, 1e-9)

	_, err = p.ValueByName("NotARealField")
	assert.ErrorIs(t, err, values.ErrUnknownValue)
	assert.Equal(t, values.Names(), p.Names())
}

func TestEndToEnd(t *testing.T) {
	reg := shm.NewMemRegistry()
	const name = `Local\ManiaPlanet_Telemetry`
	reader := shm.NewReader(name, shm.WithOpenFunc(reg.Open))
	p := New(WithReader(reader),
		WithSampleRate(200),
		WithRetryBackoff(5*time.Millisecond))
	defer p.Close()
	ch := p.Subscribe()

	p.Start()
	select {
	case err := <-p.Errors():
		assert.ErrorIs(t, err, shm.ErrRegionUnavailable)
	case <-time.After(time.Second):
		t.Fatal("expected region unavailable")
	}
	assert.False(t, p.IsConnected())

	region := shm.NewMemRegion(model.SnapshotSize)
	write := func(ts uint32) {
		s := model.NewSnapshot(2)
		s.Object.Timestamp = ts
		s.Device.Euler = model.Vec3{X: 0.3, Y: math.Pi / 2, Z: 3 * math.Pi / 4}
		s.Device.CenteredYaw = 0.75
		s.Device.CenteredAltitude = -1.25
		s.Vehicle.EngineRpm = 9000
		data, err := model.Encode(s)
		require.NoError(t, err)
		_, err = region.WriteAt(data, 0)
		require.NoError(t, err)
	}
	write(100)
	reg.Add(name, region)

	for ts := uint32(100); ts < 105; ts++ {
		info := receive(t, ch)
		assert.Equal(t, ts, info.Snapshot().Object.Timestamp)
		d := info.Derived()
		assert.InDelta(t, 90.0, d.Pitch, 1e-4)
		assert.InDelta(t, 45.0, d.Roll, 1e-4)
		assert.InDelta(t, 0.75, d.Yaw, 1e-9)
		assert.InDelta(t, -1.25, d.Heave, 1e-9)
		assert.InDelta(t, 9000.0, d.RPM, 1e-9)
		assert.True(t, p.IsConnected())
		assert.True(t, p.IsActive())
		write(ts + 1)
	}

	p.Stop()
	assert.False(t, p.IsConnected())
	assert.True(t, region.Closed())
}
