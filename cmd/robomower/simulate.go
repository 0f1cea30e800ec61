package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/drive"
	"github.com/san-kum/robomower/internal/export"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/sabertooth"
	"github.com/spf13/cobra"
)

func simulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := input.LoadScenario(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	logger, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	start := time.Unix(0, 0).UTC()
	clk := loop.NewVirtualClock(start)
	src := input.NewScript(sc, clk.Now)
	rec := actuator.NewRecorder()

	l, err := loop.New(cfg, src, rec, loop.WithClock(clk), loop.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reports []loop.Report
	l.AddObserver(loop.ObserverFunc(func(r loop.Report) {
		reports = append(reports, r)
		if r.Time.Sub(reports[0].Time) >= sc.Duration {
			cancel()
		}
	}))

	if sc.Name != "" {
		fmt.Printf("scenario %s", sc.Name)
		if sc.Description != "" {
			fmt.Printf(": %s", sc.Description)
		}
		fmt.Println()
	}
	if err := l.Run(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "T\tTICK\tEVENTS\tLEFT\tRIGHT\tM1\tM2\tWATCHDOG\tFREEWHEEL")
	left := make([]float64, 0, len(reports))
	right := make([]float64, 0, len(reports))
	var prev loop.Report
	for i, r := range reports {
		left = append(left, float64(r.Values[0]))
		right = append(right, float64(r.Values[1]))
		changed := i == 0 || len(r.Events) > 0 || r.Values != prev.Values ||
			r.Watchdog != prev.Watchdog || r.Freewheel != prev.Freewheel || r.Halted
		prev = r
		if !changed && !allTicks {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%.3f\t%.3f\t%d\t%d\t%s\t%v\n",
			r.Time.Sub(start), r.Tick, eventList(r.Events),
			r.Command.Left, r.Command.Right, r.Values[0], r.Values[1],
			r.Watchdog, r.Freewheel)
	}
	w.Flush()

	tl := export.FromReports(sc.Name, cfg.Loop.Interval, reports)
	fmt.Printf("\n%d ticks, %d motor writes, %d stops, %d freewheel commands\n",
		len(reports), rec.Count(actuator.CallMotor), rec.Count(actuator.CallStop), rec.Count(actuator.CallFreewheel))
	fmt.Printf("effort %.3f  peak m1 %d  peak m2 %d  stopped %.0f%%\n",
		tl.Summary.Effort, tl.Summary.PeakM1, tl.Summary.PeakM2, tl.Summary.Stopped*100)
	for _, path := range exports {
		if err := export.Save(path, tl); err != nil {
			return err
		}
		fmt.Printf("exported %s\n", path)
	}

	if len(reports) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.PlotMany([][]float64{left, right},
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
			asciigraph.Caption("m1 (red) / m2 (green) per tick"),
		))
	}
	return nil
}

func eventList(events []input.Event) string {
	if len(events) == 0 {
		return "-"
	}
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = ev.String()
	}
	return strings.Join(parts, ",")
}

func plotCurve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if points < 2 {
		return fmt.Errorf("need at least 2 points, got %d", points)
	}

	m := drive.Mapper{
		SlowFactor:   cfg.Drive.SlowFactor,
		Deadband:     cfg.Drive.Deadband,
		TurboSteer:   drive.DefaultTurboSteer,
		ThrottleSign: cfg.Drive.ThrottleSign,
	}
	maxPower := cfg.MaxPower()

	left := make([]float64, points)
	right := make([]float64, points)
	for i := 0; i < points; i++ {
		steer := -1 + 2*float64(i)/float64(points-1)
		c := m.Compute(throttle, steer, turbo, slow).Scale(maxPower)
		left[i] = c.Left
		right[i] = c.Right
	}

	fmt.Println(asciigraph.PlotMany([][]float64{left, right},
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.LowerBound(-1),
		asciigraph.UpperBound(1),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("left (red) / right (green) vs steer -1..1, throttle=%.2f turbo=%v slow=%v",
			throttle, turbo, slow)),
	))
	return nil
}

func listPorts(cmd *cobra.Command, args []string) error {
	ports, err := sabertooth.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		id := "-"
		if p.USB {
			id = p.VID + ":" + p.PID
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%s\n", p.Name, p.USB, id, p.Serial, p.Product)
	}
	return w.Flush()
}
