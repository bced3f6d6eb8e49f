package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/yegors/radar-pi/internal/adsb"
	"github.com/yegors/radar-pi/internal/config"
	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/internal/radar"
	"github.com/yegors/radar-pi/internal/render"
	"github.com/yegors/radar-pi/pkg/logger"
)

const usage = `Usage:
  radar-pi [run] [flags]      render the nearest aircraft to the output image
  radar-pi flights [flags]    list the aircraft in range without rendering
  radar-pi serve -port N -data FILE
                              serve the display page (started by run)

Run "radar-pi <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		return runRender(args, stderr)
	case "flights":
		return runFlights(args, stdout, stderr)
	case "serve":
		return runServe(args, stderr)
	case "help":
		fmt.Fprint(stdout, usage)
		return radar.ExitOK
	default:
		fmt.Fprintf(stderr, "radar-pi: unknown command %q\n\n%s", cmd, usage)
		return radar.ExitUsage
	}
}

// cliOptions are the flags shared by run and flights. Only flags given on the
// command line override the configuration.
type cliOptions struct {
	configPath string
	latitude   float64
	longitude  float64
	radius     float64
	output     string
	port       int
	quiet      bool

	set map[string]bool
}

func parseFlags(name string, args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{set: map[string]bool{}}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "radar.toml", "Path to the TOML config file")
	fs.Float64Var(&opts.latitude, "lat", 0, "Waypoint latitude")
	fs.Float64Var(&opts.longitude, "lon", 0, "Waypoint longitude")
	fs.Float64Var(&opts.radius, "radius", 0, "Search radius in nautical miles")
	fs.StringVar(&opts.output, "output", "", "Output PNG path")
	fs.IntVar(&opts.port, "port", 0, "Render server port (0 picks a free port)")
	fs.BoolVar(&opts.quiet, "quiet", false, "Only log warnings and errors, without the missing config notice")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// loadConfig resolves file, environment and flags, in that order
func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.set["lat"] {
		cfg.Station.Latitude = opts.latitude
	}
	if opts.set["lon"] {
		cfg.Station.Longitude = opts.longitude
	}
	if opts.set["radius"] {
		cfg.Station.RadiusNM = opts.radius
	}
	if opts.set["output"] {
		cfg.Render.OutputPath = opts.output
	}
	if opts.set["port"] {
		cfg.Render.ServerPort = opts.port
	}
	if opts.quiet {
		cfg.Logging.Level = "warn"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup parses flags and builds the config and logger. code is non-zero
// when the command should exit right away.
func setup(name string, args []string, logOutput, stderr io.Writer) (*config.Config, *logger.Logger, int) {
	opts, err := parseFlags(name, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, radar.ExitOK
		}
		fmt.Fprintf(stderr, "radar-pi %s: %v\n", name, err)
		return nil, nil, radar.ExitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "radar-pi %s: %v\n", name, err)
		return nil, nil, radar.ExitUsage
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: logOutput,
	})
	if err != nil {
		fmt.Fprintf(stderr, "radar-pi %s: failed to create logger: %v\n", name, err)
		return nil, nil, radar.ExitUsage
	}

	if cfg.Source == "" && !opts.quiet {
		log.Warn("No config file found, using default station",
			logger.String("path", opts.configPath),
			logger.String("waypoint", cfg.Waypoint().String()))
	}
	return cfg, log, -1
}

func runRender(args []string, stderr io.Writer) int {
	cfg, log, code := setup("run", args, nil, stderr)
	if code >= 0 {
		return code
	}
	defer log.Sync()

	command := cfg.Render.ServerCommand
	if len(command) == 0 {
		var err error
		if command, err = render.DefaultServerCommand(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			log.Error("Cannot build render server command", logger.Error(err))
			return radar.ExitFailure
		}
	}

	client := adsb.NewClient(cfg.ADSB.SourceURL, cfg.ADSB.UserAgent, cfg.ADSB.FetchTimeout(), log)
	pipeline := render.NewPipeline(
		render.OptionsFromConfig(&cfg.Render),
		render.NewProcessLauncher(command, nil, log),
		render.NewChromeFactory(cfg.Render.BrowserPath, cfg.Render.BrowserNoSandbox, log),
		log,
	)
	svc := radar.NewService(client, pipeline, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := svc.RunOnce(ctx, cfg.Waypoint(), cfg.Render.OutputPath)
	return out.ExitCode()
}

func runFlights(args []string, stdout, stderr io.Writer) int {
	// Logs go to stderr so stdout only carries the summary
	cfg, log, code := setup("flights", args, stderr, stderr)
	if code >= 0 {
		return code
	}
	defer log.Sync()

	client := adsb.NewClient(cfg.ADSB.SourceURL, cfg.ADSB.UserAgent, cfg.ADSB.FetchTimeout(), log)
	svc := radar.NewService(client, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wp := cfg.Waypoint()
	nearby, fetched, err := svc.Nearby(ctx, wp)
	if err != nil {
		log.Error("Failed to fetch flight data", logger.Error(err))
		fmt.Fprintln(stdout, display.Summary(display.Unavailable(err, time.Now()), wp, 0))
		return radar.ExitFailure
	}

	var nearest *adsb.Candidate
	if len(nearby) > 0 {
		nearest = &nearby[0]
	}
	rec := display.Assemble(nearest, len(nearby), time.Now())
	fmt.Fprintln(stdout, display.Summary(rec, wp, fetched))
	if len(nearby) > 0 {
		fmt.Fprintln(stdout, display.AircraftList(nearby, cfg.Display.MaxAircraft))
	}
	return radar.ExitOK
}
