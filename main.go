// ABOUTME: Entry point for the Veepa audio probe
// ABOUTME: Parses CLI flags, wires the controller and runs TUI or headless
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mpriessner/veepa-audio-probe/internal/app"
	"github.com/mpriessner/veepa-audio-probe/internal/config"
	"github.com/mpriessner/veepa-audio-probe/internal/engine"
	"github.com/mpriessner/veepa-audio-probe/internal/logstream"
	"github.com/mpriessner/veepa-audio-probe/internal/report"
	"github.com/mpriessner/veepa-audio-probe/internal/sdk"
	"github.com/mpriessner/veepa-audio-probe/internal/session"
	"github.com/mpriessner/veepa-audio-probe/internal/ui"
	"github.com/mpriessner/veepa-audio-probe/internal/version"
)

var (
	configPath   = flag.String("config", "", "YAML config file path (defaults apply when empty)")
	strategyFlag = flag.String("strategy", "", "Override the configured session strategy")
	targetRate   = flag.Float64("rate", 0, "Override the narrowband target sample rate")
	simMode      = flag.Bool("sim", false, "Use the simulated host and camera instead of real hardware")
	selfTest     = flag.Bool("self-test", false, "Play the test source through the output path and exit")
	testFile     = flag.String("file", "", "MP3/FLAC file for -self-test (empty: built-in tone)")
	streamAddr   = flag.String("stream", "", "Override the report stream listen address")
	logFile      = flag.String("log-file", "veepa-probe.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	useTUI := !*noTUI && !*selfTest

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file, the screen belongs to bubbletea.
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("%s %s starting (strategy=%s, target=%gHz, sim=%v)",
		version.Product, version.Version, cfg.Session.Strategy, cfg.Session.TargetSampleRate, *simMode)

	host, closeHost, err := buildHost(cfg)
	if err != nil {
		log.Fatalf("audio host: %v", err)
	}
	defer closeHost()

	client := sdk.NewSim(sdk.SimConfig{
		SampleRate: int(cfg.Session.TargetSampleRate),
		Frequency:  cfg.Sim.ToneFrequency,
		Ulaw:       cfg.Capture.Ulaw,
	})

	out := engine.NewOtoOutput()
	ctrl := app.New(cfg, host, client, out)
	ctrl.Reporter().Recordf(report.StageConfigure, "%s %s session %s", version.Product, version.Version, ctrl.Reporter().SessionID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Stream.ListenAddr != "" {
		go func() {
			if err := logstream.New(ctrl.Reporter()).Run(ctx, cfg.Stream.ListenAddr); err != nil {
				log.Printf("log stream stopped: %v", err)
			}
		}()
	}

	if *selfTest {
		runSelfTest(ctx, ctrl)
		return
	}

	granted, err := ctrl.ApplyStrategy(ctx, cfg.Session.Strategy)
	if err != nil {
		log.Printf("initial strategy %q failed: %v", cfg.Session.Strategy, err)
	} else {
		log.Printf("session active: strategy=%s granted=%s", cfg.Session.Strategy, granted)
	}

	if useTUI {
		runTUI(ctx, ctrl)
	} else {
		runHeadless(ctx, ctrl)
	}

	ctrl.Shutdown(context.Background())
	log.Printf("probe stopped")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if *strategyFlag != "" {
		cfg.Session.Strategy = *strategyFlag
	}
	if *targetRate > 0 {
		cfg.Session.TargetSampleRate = *targetRate
	}
	if *streamAddr != "" {
		cfg.Stream.ListenAddr = *streamAddr
	}
	if *simMode {
		cfg.Sim.Enabled = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildHost(cfg *config.Config) (session.Host, func(), error) {
	if cfg.Sim.Enabled {
		h := session.NewNullHost()
		h.NativeRate = cfg.Sim.NativeRate
		h.HonorPreferredRate = cfg.Sim.HonorPreferredRate
		return h, func() {}, nil
	}

	h, err := session.NewMalgoHost()
	if err != nil {
		return nil, nil, err
	}
	return h, func() {
		if err := h.Close(); err != nil {
			log.Printf("host close: %v", err)
		}
	}, nil
}

func runSelfTest(ctx context.Context, ctrl *app.Controller) {
	log.Printf("self-test: rendering local source for 3s")
	if err := ctrl.SelfTest(ctx, *testFile, 3*time.Second); err != nil {
		log.Fatalf("self-test failed: %v", err)
	}
	log.Printf("self-test complete: output path works")
	ctrl.Shutdown(context.Background())
}

func runTUI(ctx context.Context, ctrl *app.Controller) {
	prog := ui.Run(ctrl)
	if _, err := prog.Run(); err != nil {
		log.Printf("TUI error: %v", err)
	}
}

// runHeadless starts voice immediately and runs until a signal arrives,
// then dumps the full report to the log.
func runHeadless(ctx context.Context, ctrl *app.Controller) {
	if err := ctrl.StartVoice(ctx); err != nil {
		log.Printf("start voice failed: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Printf("shutdown signal received")

	if err := ctrl.StopVoice(ctx); err != nil {
		log.Printf("stop voice: %v", err)
	}
	if _, err := ctrl.Reporter().WriteTo(log.Writer()); err != nil {
		log.Printf("report dump failed: %v", err)
	}
}
