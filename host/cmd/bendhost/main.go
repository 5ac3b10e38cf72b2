package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bendlink/host/autobend"
	"bendlink/host/config"
	"bendlink/host/link"
	"bendlink/host/rig"
	"bendlink/host/serial"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", serial.DefaultBaud, "Baud rate")
	driver     = flag.String("driver", serial.DriverTarm, "Serial driver (tarm or bugst)")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	wireLog    = flag.Bool("wire-log", false, "Log raw serial traffic at debug level")
	simulate   = flag.Bool("simulate", false, "Talk to an in-process simulated device")
	listPorts  = flag.Bool("list", false, "List serial ports and exit")
)

func main() {
	flag.Parse()

	if *listPorts {
		ports, err := serial.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad -log-level: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads -config if given, then applies the explicitly set flags
func loadConfig() (*config.Config, error) {
	cfg := config.Default(*device)
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Serial.Device = *device
		case "baud":
			cfg.Serial.Baud = *baud
		case "driver":
			cfg.Serial.Driver = *driver
		case "wire-log":
			cfg.Serial.WireLog = *wireLog
		}
	})
	if cfg.Serial.Device == "" {
		cfg.Serial.Device = *device
	}
	return cfg, config.Validate(cfg)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	opts := []link.Option{
		link.WithLogger(logger),
		link.WithDriver(cfg.Serial.Driver),
		link.WithReadTimeout(time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond),
		link.WithAccumulatorLimit(cfg.AccumulatorLimit),
	}
	if cfg.Serial.WireLog {
		opts = append(opts, link.WithWireLogging(serial.LogAll))
	}
	if *simulate {
		sim := newSimulator(cfg.DeviceConfig(), logger, nil)
		defer sim.Close()
		opts = append(opts, link.WithOpener(sim.open))
	}

	l, err := link.New(cfg.Payload.TxLen, cfg.Payload.RxLen, opts...)
	if err != nil {
		return err
	}
	l.SetErrorHandler(func(err error) {
		logger.Debug("receive error", "error", err)
	})

	ctrl := autobend.NewController(cfg.Axes.X.Controller(), cfg.Axes.Y.Controller(), nil)
	r, err := rig.New(l, ctrl, rig.Config{
		MinAngle:       cfg.Angles.Min,
		MaxAngle:       cfg.Angles.Max,
		Step:           cfg.Angles.Step,
		Initial:        cfg.Angles.Initial,
		ResendInterval: cfg.ResendInterval(),
	}, rig.WithLogger(logger))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Connecting to %s at %d baud...\n", cfg.Serial.Device, cfg.Serial.Baud)
	if err := l.Open(cfg.Serial.Device, cfg.Serial.Baud); err != nil {
		return err
	}
	defer l.Close()

	if err := r.Start(); err != nil {
		return fmt.Errorf("initial send: %w", err)
	}
	go r.Run(ctx)

	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	return interact(ctx, r, l, in, out)
}

// interact reads commands from in until quit, EOF or ctx is done
func interact(ctx context.Context, r *rig.Rig, l *link.Link, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			quit, err := execute(r, l, line, out)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			if quit {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
		}
	}
}
