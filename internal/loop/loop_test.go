package loop_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/config"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/watchdog"
)

const (
	throttleAxis = config.DefaultThrottleAxis
	steerAxis    = config.DefaultSteerAxis
	slowBtn      = config.DefaultSlowButton
	turboBtn     = config.DefaultTurboButton
	freeBtn      = config.DefaultFreewheel
	quitBtn      = config.DefaultQuitButton

	// -0.95 full forward at the default power ceiling
	fullForward = -1944
)

var _ = Describe("Loop", func() {
	var (
		cfg  *config.Config
		src  *fakeSource
		rec  *actuator.Recorder
		clk  *loop.VirtualClock
		l    *loop.Loop
		t0   time.Time
		step func()
	)

	build := func() {
		var err error
		l, err = loop.New(cfg, src, rec, loop.WithClock(clk))
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		src = newFakeSource()
		rec = actuator.NewRecorder()
		t0 = time.Unix(1000, 0)
		clk = loop.NewVirtualClock(t0)
		step = func() {
			l.Tick(clk.Now())
			clk.Advance(cfg.Loop.Interval)
		}
	})

	It("rejects an invalid configuration", func() {
		cfg.Loop.Interval = 0
		_, err := loop.New(cfg, src, rec)
		Expect(err).To(MatchError(config.ErrInvalid))
	})

	Describe("Tick", func() {
		JustBeforeEach(func() {
			build()
			Expect(l.Acquire(context.Background())).To(Succeed())
		})

		It("does not move before the first input event", func() {
			src.state.Apply(input.Axis(throttleAxis, 1))
			step()
			step()
			Expect(rec.Calls).To(BeEmpty())
			Expect(l.Watchdog()).To(Equal(watchdog.Stopped))
		})

		It("drives straight at the power ceiling", func() {
			src.push(input.Axis(throttleAxis, 1))
			step()
			Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{fullForward}))
			Expect(rec.MotorCalls(actuator.Right)).To(Equal([]int{fullForward}))
			Expect(l.Values()).To(Equal([2]int{fullForward, fullForward}))
		})

		It("writes each channel once for repeated identical input", func() {
			src.push(input.Axis(throttleAxis, 1))
			step()
			src.push(input.Axis(throttleAxis, 1))
			step()
			step()
			Expect(rec.MotorCalls(actuator.Left)).To(HaveLen(1))
			Expect(rec.MotorCalls(actuator.Right)).To(HaveLen(1))
		})

		It("writes only the channel that changed", func() {
			src.push(input.Axis(throttleAxis, -1), input.Press(turboBtn))
			step()
			src.push(input.Axis(steerAxis, 1))
			step()
			Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{1944, -1944}))
			Expect(rec.MotorCalls(actuator.Right)).To(Equal([]int{1944}))
		})

		It("applies the slow factor while held", func() {
			src.push(input.Axis(throttleAxis, 1), input.Press(slowBtn))
			step()
			Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{-972}))
		})

		It("honours axis inversion", func() {
			cfg.Axes.ThrottleInverted = true
			build()
			Expect(l.Acquire(context.Background())).To(Succeed())
			src.push(input.Axis(throttleAxis, 1))
			step()
			Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{1944}))
		})

		It("retries a failed write on the next tick", func() {
			failed := false
			rec.Fail = func(c actuator.Call) error {
				if c.Kind == actuator.CallMotor && c.Channel == actuator.Right && !failed {
					failed = true
					return errors.New("no ack")
				}
				return nil
			}
			src.push(input.Axis(throttleAxis, 1))
			step()
			Expect(rec.MotorCalls(actuator.Right)).To(BeEmpty())
			Expect(l.Values()).To(Equal([2]int{fullForward, 0}))

			step()
			Expect(rec.MotorCalls(actuator.Left)).To(HaveLen(1))
			Expect(rec.MotorCalls(actuator.Right)).To(Equal([]int{fullForward}))
		})

		Context("watchdog", func() {
			It("stops exactly once when input goes quiet", func() {
				var stops []time.Time
				l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
					if r.Watchdog == watchdog.Stopped && len(stops) == 0 && r.Tick > 1 {
						stops = append(stops, r.Time)
					}
				}))

				src.push(input.Axis(throttleAxis, 1))
				for clk.Now().Sub(t0) <= 1500*time.Millisecond {
					step()
				}

				Expect(rec.Count(actuator.CallStop)).To(Equal(1))
				Expect(stops).To(HaveLen(1))
				Expect(stops[0].Sub(t0)).To(Equal(time.Second))
				Expect(l.Watchdog()).To(Equal(watchdog.Stopped))
				Expect(rec.MotorCalls(actuator.Left)).To(HaveLen(1))
				Expect(rec.Motor(actuator.Left)).To(BeZero())
			})

			It("does not fire before the timeout", func() {
				src.push(input.Axis(throttleAxis, 1))
				for i := 0; i < 10; i++ {
					step()
				}
				Expect(clk.Now().Sub(t0)).To(Equal(time.Second))
				Expect(rec.Count(actuator.CallStop)).To(BeZero())
				Expect(l.Watchdog()).To(Equal(watchdog.Active))
			})

			It("resumes driving on the next event", func() {
				src.push(input.Axis(throttleAxis, 1))
				for i := 0; i < 12; i++ {
					step()
				}
				Expect(l.Watchdog()).To(Equal(watchdog.Stopped))

				src.push(input.Axis(throttleAxis, 1))
				step()
				Expect(l.Watchdog()).To(Equal(watchdog.Active))
				Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{fullForward, fullForward}))
			})

			It("ignores buttons outside the control set", func() {
				src.push(input.Axis(throttleAxis, 1))
				step()
				for i := 0; i < 12; i++ {
					src.push(input.Press(0), input.Release(0))
					step()
				}
				Expect(rec.Count(actuator.CallStop)).To(Equal(1))
			})
		})

		Context("freewheel", func() {
			It("toggles on press and back on the second press", func() {
				src.push(input.Press(freeBtn))
				step()
				Expect(l.Freewheel()).To(BeTrue())
				src.push(input.Release(freeBtn))
				step()
				src.push(input.Press(freeBtn))
				step()
				src.push(input.Release(freeBtn))
				step()

				Expect(l.Freewheel()).To(BeFalse())
				var toggles []bool
				for _, c := range rec.Calls {
					if c.Kind == actuator.CallFreewheel {
						toggles = append(toggles, c.Enabled)
					}
				}
				Expect(toggles).To(Equal([]bool{true, true, false, false}))
			})

			It("does not retrigger while held", func() {
				src.push(input.Press(freeBtn))
				for i := 0; i < 5; i++ {
					step()
				}
				Expect(l.Freewheel()).To(BeTrue())
				Expect(rec.Count(actuator.CallFreewheel)).To(Equal(2))
			})

			It("ignores buttons already held when the device opens", func() {
				src.hide(input.Press(freeBtn), input.Press(quitBtn))
				Expect(l.Tick(clk.Now())).To(BeFalse())
				clk.Advance(cfg.Loop.Interval)
				step()
				Expect(l.Freewheel()).To(BeFalse())
				Expect(l.Halted()).To(BeFalse())
				Expect(rec.Calls).To(BeEmpty())

				src.push(input.Release(freeBtn))
				step()
				src.push(input.Press(freeBtn))
				step()
				Expect(l.Freewheel()).To(BeTrue())
			})

			It("suppresses drive commands while enabled", func() {
				src.push(input.Press(freeBtn))
				step()
				rec.Reset()
				src.push(input.Axis(throttleAxis, 1))
				step()
				Expect(rec.Calls).To(BeEmpty())

				src.push(input.Release(freeBtn))
				step()
				src.push(input.Press(freeBtn))
				step()
				Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{0, fullForward}))
			})
		})

		Context("termination", func() {
			It("stops and terminates on the quit button", func() {
				src.push(input.Axis(throttleAxis, 1))
				step()
				src.push(input.Press(quitBtn))
				Expect(l.Tick(clk.Now())).To(BeTrue())
				Expect(rec.Count(actuator.CallStop)).To(Equal(1))
				Expect(l.Halted()).To(BeTrue())
			})

			It("stops and terminates on a quit request", func() {
				src.push(input.Event{Kind: input.QuitRequested})
				Expect(l.Tick(clk.Now())).To(BeTrue())
				Expect(rec.Count(actuator.CallStop)).To(Equal(1))
			})

			It("stops and releases the device when it is removed", func() {
				src.push(input.Axis(throttleAxis, 1))
				step()
				src.push(input.Event{Kind: input.DeviceRemoved})
				Expect(l.Tick(clk.Now())).To(BeFalse())
				Expect(rec.Count(actuator.CallStop)).To(Equal(1))
				Expect(l.Connected()).To(BeFalse())
				Expect(l.Watchdog()).To(Equal(watchdog.Stopped))
			})
		})

		It("retries a failed stop and holds dispatch until it lands", func() {
			stopFails := 1
			rec.Fail = func(c actuator.Call) error {
				if c.Kind == actuator.CallStop && stopFails > 0 {
					stopFails--
					return errors.New("no ack")
				}
				return nil
			}
			src.push(input.Axis(throttleAxis, 1))
			for i := 0; i < 11; i++ {
				step()
			}
			Expect(rec.Count(actuator.CallStop)).To(BeZero())

			src.push(input.Axis(throttleAxis, 1))
			step()
			Expect(rec.Count(actuator.CallStop)).To(Equal(1))
			Expect(rec.MotorCalls(actuator.Left)).To(Equal([]int{fullForward, fullForward}))
		})
	})

	Describe("Run", func() {
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)

		BeforeEach(func() {
			ctx, cancel = context.WithCancel(context.Background())
		})

		AfterEach(func() {
			cancel()
		})

		It("waits for the device and stops on cancellation", func() {
			src.openErr = []error{input.ErrDeviceUnavailable, input.ErrDeviceUnavailable, input.ErrDeviceUnavailable}
			build()

			var first time.Time
			l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
				if r.Tick == 1 {
					first = r.Time
				}
				if r.Tick == 3 {
					cancel()
				}
			}))

			Expect(l.Run(ctx)).To(Succeed())
			Expect(src.opens).To(Equal(4))
			Expect(first.Sub(t0)).To(Equal(300 * time.Millisecond))
			Expect(rec.Count(actuator.CallStop)).To(Equal(1))
			Expect(l.Halted()).To(BeTrue())
		})

		It("returns a fatal open error after stopping", func() {
			src.openErr = []error{errors.New("permission denied")}
			build()
			err := l.Run(ctx)
			Expect(err).To(MatchError(ContainSubstring("permission denied")))
			Expect(rec.Count(actuator.CallStop)).To(Equal(1))
		})

		It("returns cleanly on quit with a single stop", func() {
			build()
			src.push(input.Event{Kind: input.QuitRequested})
			Expect(l.Run(ctx)).To(Succeed())
			Expect(rec.Count(actuator.CallStop)).To(Equal(1))
		})

		It("reports a shutdown stop that never lands", func() {
			attempts := 0
			rec.Fail = func(c actuator.Call) error {
				if c.Kind == actuator.CallStop {
					attempts++
					return errors.New("no ack")
				}
				return nil
			}
			build()
			l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
				switch r.Tick {
				case 1:
					src.push(input.Axis(throttleAxis, 1))
				case 2:
					cancel()
				}
			}))

			err := l.Run(ctx)
			Expect(err).To(HaveOccurred())
			var linkErr *actuator.LinkError
			Expect(errors.As(err, &linkErr)).To(BeTrue())
			Expect(attempts).To(Equal(3))
			Expect(l.Halted()).To(BeTrue())
			Expect(rec.Motor(actuator.Left)).To(Equal(fullForward))
		})

		It("reports a failed stop on quit", func() {
			rec.Fail = func(c actuator.Call) error {
				if c.Kind == actuator.CallStop {
					return errors.New("no ack")
				}
				return nil
			}
			build()
			src.push(input.Event{Kind: input.QuitRequested})
			Expect(l.Run(ctx)).To(MatchError(ContainSubstring("no ack")))
		})

		It("holds the cadence and re-anchors after an overrun", func() {
			build()
			var times []time.Duration
			l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
				times = append(times, r.Time.Sub(t0))
				if r.Tick == 2 {
					clk.Advance(250 * time.Millisecond)
				}
				if r.Tick == 4 {
					cancel()
				}
			}))

			Expect(l.Run(ctx)).To(Succeed())
			Expect(times).To(Equal([]time.Duration{
				0,
				100 * time.Millisecond,
				350 * time.Millisecond,
				450 * time.Millisecond,
			}))
		})

		It("reacquires the device after removal", func() {
			src.openErr = []error{nil, input.ErrDeviceUnavailable, nil}
			build()
			l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
				switch r.Tick {
				case 1:
					src.push(input.Axis(throttleAxis, 1))
				case 2:
					src.push(input.Event{Kind: input.DeviceRemoved})
				case 5:
					cancel()
				}
			}))

			Expect(l.Run(ctx)).To(Succeed())
			Expect(src.opens).To(Equal(3))
			// removal stop, then shutdown stop
			Expect(rec.Count(actuator.CallStop)).To(Equal(2))
		})
	})
})
