// Package monitor collects derived values to summarize the motion signal
// over a time window.
package monitor

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
)

type Summary struct {
	Name   string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

func (s Summary) Fields() []log.Field {
	return []log.Field{
		log.Int("count", s.Count),
		log.Float("min", s.Min),
		log.Float("max", s.Max),
		log.Float("mean", s.Mean),
		log.Float("stddev", s.StdDev),
	}
}

var seriesNames = []string{"Heave", "Pitch", "Roll", "Yaw", "RPM"}

// Stats accumulates derived values until Flush.
type Stats struct {
	mu     sync.Mutex
	series [5][]float64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Add(d model.Derived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range []float64{d.Heave, d.Pitch, d.Roll, d.Yaw, d.RPM} {
		s.series[i] = append(s.series[i], v)
	}
}

// Summaries returns one summary per derived value. Empty series are omitted.
func (s *Stats) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries()
}

// summaries expects s.mu to be held.
func (s *Stats) summaries() []Summary {
	ret := make([]Summary, 0, len(seriesNames))
	for i, x := range s.series {
		if len(x) == 0 {
			continue
		}
		sum := Summary{
			Name:  seriesNames[i],
			Count: len(x),
			Min:   floats.Min(x),
			Max:   floats.Max(x),
			Mean:  stat.Mean(x, nil),
		}
		// the sample deviation of a single value is NaN
		if len(x) > 1 {
			sum.StdDev = stat.StdDev(x, nil)
		}
		ret = append(ret, sum)
	}
	return ret
}

// Flush returns the current summaries and starts a new window.
func (s *Stats) Flush() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := s.summaries()
	for i := range s.series {
		s.series[i] = s.series[i][:0]
	}
	return ret
}
