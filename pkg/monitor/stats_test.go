package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
)

func TestStats(t *testing.T) {
	s := NewStats()
	assert.Empty(t, s.Summaries())

	s.Add(model.Derived{Heave: 1, Pitch: -10, Roll: 5, Yaw: 0, RPM: 2000})
	s.Add(model.Derived{Heave: 3, Pitch: 10, Roll: 5, Yaw: 0, RPM: 4000})

	sums := s.Flush()
	require.Len(t, sums, 5)
	assert.Equal(t, "Heave", sums[0].Name)
	assert.Equal(t, 2, sums[0].Count)
	assert.InDelta(t, 2.0, sums[0].Mean, 1e-9)
	assert.InDelta(t, -10.0, sums[1].Min, 1e-9)
	assert.InDelta(t, 10.0, sums[1].Max, 1e-9)
	assert.InDelta(t, 0.0, sums[2].StdDev, 1e-9)
	assert.InDelta(t, 3000.0, sums[4].Mean, 1e-9)
	assert.Len(t, sums[0].Fields(), 5)

	assert.Empty(t, s.Summaries(), "flush starts a new window")

	s.Add(model.Derived{Heave: 7})
	sums = s.Summaries()
	require.Len(t, sums, 5)
	assert.Equal(t, 1, sums[0].Count)
	assert.Zero(t, sums[0].StdDev)
}

func TestFlushConcurrentAdd(t *testing.T) {
	const n = 5000
	s := NewStats()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			s.Add(model.Derived{Heave: float64(i)})
		}
	}()

	counted := 0
	count := func(sums []Summary) {
		if len(sums) > 0 {
			counted += sums[0].Count
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			count(s.Flush())
		}
	}
	count(s.Flush())
	assert.Equal(t, n, counted, "every sample is part of exactly one window")
}
