// Package export writes simulated drive sessions as JSON, CSV or SVG.
package export

import (
	"math"
	"time"

	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/watchdog"
)

type Sample struct {
	T         float64 `json:"t"`
	Tick      int     `json:"tick"`
	Events    int     `json:"events"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
	M1        int     `json:"m1"`
	M2        int     `json:"m2"`
	Watchdog  string  `json:"watchdog"`
	Freewheel bool    `json:"freewheel"`
}

// Summary aggregates a session. Effort is the mean absolute normalized
// wheel command over all ticks.
type Summary struct {
	Ticks    int     `json:"ticks"`
	Duration float64 `json:"duration"`
	Effort   float64 `json:"effort"`
	PeakM1   int     `json:"peak_m1"`
	PeakM2   int     `json:"peak_m2"`
	Changes  int     `json:"changes"`
	Stopped  float64 `json:"stopped"`
}

type Timeline struct {
	Scenario string   `json:"scenario,omitempty"`
	Interval float64  `json:"interval"`
	Samples  []Sample `json:"samples"`
	Summary  Summary  `json:"summary"`
}

// FromReports converts loop reports, timing each sample from the first one.
func FromReports(name string, interval time.Duration, reports []loop.Report) *Timeline {
	tl := &Timeline{
		Scenario: name,
		Interval: interval.Seconds(),
		Samples:  make([]Sample, 0, len(reports)),
	}
	if len(reports) == 0 {
		return tl
	}

	start := reports[0].Time
	var effort float64
	var stopped int
	var prev [2]int
	for i, r := range reports {
		tl.Samples = append(tl.Samples, Sample{
			T:         r.Time.Sub(start).Seconds(),
			Tick:      r.Tick,
			Events:    len(r.Events),
			Left:      r.Command.Left,
			Right:     r.Command.Right,
			M1:        r.Values[0],
			M2:        r.Values[1],
			Watchdog:  r.Watchdog.String(),
			Freewheel: r.Freewheel,
		})
		for _, v := range r.Values {
			effort += math.Abs(float64(v)) / actuator.Range
		}
		tl.Summary.PeakM1 = max(tl.Summary.PeakM1, abs(r.Values[0]))
		tl.Summary.PeakM2 = max(tl.Summary.PeakM2, abs(r.Values[1]))
		if i > 0 && r.Values != prev {
			tl.Summary.Changes++
		}
		prev = r.Values
		if r.Watchdog == watchdog.Stopped {
			stopped++
		}
	}

	n := len(reports)
	tl.Summary.Ticks = n
	tl.Summary.Duration = tl.Samples[n-1].T
	tl.Summary.Effort = effort / float64(2*n)
	tl.Summary.Stopped = float64(stopped) / float64(n)
	return tl
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
