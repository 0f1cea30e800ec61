package loop_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/config"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/watchdog"
)

const quietScenario = `
name: push-and-freeze
description: stick pushed forward, then the pad stops reporting
unavailable: 250ms
events:
  - at: 0s
    kind: axis
    index: 1
    value: 1.0
`

var _ = Describe("Scripted session", func() {
	It("stops once when a frozen pad goes quiet", func() {
		sc, err := input.ParseScenario([]byte(quietScenario))
		Expect(err).NotTo(HaveOccurred())
		sc.Duration = 1500 * time.Millisecond

		start := time.Unix(0, 0)
		clk := loop.NewVirtualClock(start)
		src := input.NewScript(sc, clk.Now)
		rec := actuator.NewRecorder()

		l, err := loop.New(config.DefaultConfig(), src, rec, loop.WithClock(clk))
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var opened time.Time
		var stoppedAt []time.Duration
		prev := watchdog.Stopped
		l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
			if r.Tick == 1 {
				opened = r.Time
			}
			if prev == watchdog.Active && r.Watchdog == watchdog.Stopped {
				stoppedAt = append(stoppedAt, r.Time.Sub(opened))
			}
			prev = r.Watchdog
			if r.Time.Sub(opened) >= sc.Duration {
				cancel()
			}
		}))

		Expect(l.Run(ctx)).To(Succeed())

		Expect(opened.Sub(start)).To(Equal(300 * time.Millisecond))
		Expect(stoppedAt).To(Equal([]time.Duration{time.Second}))
		Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{-1944}))
		Expect(rec.MotorCalls(actuator.Right)).To(Equal([]int{-1944}))
		// watchdog stop plus the shutdown stop
		Expect(rec.Count(actuator.CallStop)).To(Equal(2))
	})
})
