package loop

import (
	"time"

	"github.com/san-kum/robomower/internal/drive"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/watchdog"
)

// Report describes one completed tick.
type Report struct {
	Tick      int
	Time      time.Time
	Events    []input.Event
	Command   drive.Command
	Values    [2]int
	Watchdog  watchdog.State
	Freewheel bool
	Halted    bool
}

type Observer interface {
	OnTick(r Report)
}

type ObserverFunc func(r Report)

func (f ObserverFunc) OnTick(r Report) { f(r) }
