package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/robomower/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configFile string
	preset     string
	verbose    bool
	logFile    string

	backend   string
	device    string
	padIndex  int
	port      string
	interval  time.Duration
	timeout   time.Duration
	broker    string
	dashboard bool

	allTicks bool
	exports  []string
	throttle float64
	turbo    bool
	slow     bool
	points   int
	savePath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "robomower",
		Short:         "gamepad teleoperation for a differential drive mower",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "gamepad layout preset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a file instead of stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "drive the mower from a gamepad",
		Args:  cobra.NoArgs,
		RunE:  runDrive,
	}
	runCmd.Flags().StringVar(&backend, "backend", config.DefaultBackend, "input backend (joydev, sdl)")
	runCmd.Flags().StringVar(&device, "device", config.DefaultDevice, "joystick device node")
	runCmd.Flags().IntVar(&padIndex, "index", 0, "sdl joystick index")
	runCmd.Flags().StringVar(&port, "port", "", "motor controller serial port (empty: discover)")
	runCmd.Flags().DurationVar(&interval, "interval", config.DefaultInterval, "control loop period")
	runCmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "stop after this long without input")
	runCmd.Flags().StringVar(&broker, "broker", "", "mqtt broker url for telemetry")
	runCmd.Flags().BoolVar(&dashboard, "dashboard", false, "show the live terminal dashboard")

	simulateCmd := &cobra.Command{
		Use:   "simulate [scenario.yaml]",
		Short: "replay a scripted input session against a recording actuator",
		Args:  cobra.ExactArgs(1),
		RunE:  simulate,
	}
	simulateCmd.Flags().BoolVar(&allTicks, "all", false, "print every tick, not only changes")
	simulateCmd.Flags().StringSliceVar(&exports, "export", nil, "write the timeline to .json, .csv or .svg files")

	curveCmd := &cobra.Command{
		Use:   "curve",
		Short: "plot wheel output across the steering range",
		Args:  cobra.NoArgs,
		RunE:  plotCurve,
	}
	curveCmd.Flags().Float64Var(&throttle, "throttle", 1.0, "stick throttle deflection")
	curveCmd.Flags().BoolVar(&turbo, "turbo", false, "hold turbo")
	curveCmd.Flags().BoolVar(&slow, "slow", false, "hold slow")
	curveCmd.Flags().IntVar(&points, "points", 81, "samples across steer [-1, 1]")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "list serial ports",
		Args:  cobra.NoArgs,
		RunE:  listPorts,
	}

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "read temperature and battery from the motor controller",
		Args:  cobra.NoArgs,
		RunE:  probe,
	}
	probeCmd.Flags().StringVar(&port, "port", "", "motor controller serial port (empty: discover)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  showConfig,
	}
	configCmd.Flags().StringVar(&savePath, "save", "", "write the configuration to a file")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list gamepad layout presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTHROTTLE\tSTEER\tSLOW\tTURBO\tFREEWHEEL\tQUIT\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n", name,
					p.Axes.Throttle, p.Axes.Steer,
					p.Buttons.Slow, p.Buttons.Turbo, p.Buttons.Freewheel, p.Buttons.Quit,
					p.Description)
			}
			w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, simulateCmd, curveCmd, portsCmd, probeCmd, configCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves defaults, then preset, then config file, then flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if preset != "" {
			config.Presets[preset].Apply(loaded)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Input.Backend = backend
	}
	if flags.Changed("device") {
		cfg.Input.Device = device
	}
	if flags.Changed("index") {
		cfg.Input.Index = padIndex
	}
	if flags.Changed("port") {
		cfg.Serial.Port = port
	}
	if flags.Changed("interval") {
		cfg.Loop.Interval = interval
	}
	if flags.Changed("timeout") {
		cfg.Loop.Timeout = timeout
	}
	if flags.Changed("broker") {
		cfg.Telemetry.Broker = broker
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(quiet bool) (*log.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closer := func() {}
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closer = func() { f.Close() }
	case quiet:
		out = io.Discard
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          "robomower",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger, closer, nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if savePath != "" {
		if err := config.Save(savePath, cfg); err != nil {
			return err
		}
		fmt.Printf("saved to %s\n", savePath)
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	fmt.Printf("# max power: %.3f\n", cfg.MaxPower())
	return nil
}
