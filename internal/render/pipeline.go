package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/yegors/radar-pi/internal/config"
	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/pkg/logger"
)

const loopback = "127.0.0.1"

// Options are the pipeline timings and placement
type Options struct {
	// Port 0 picks a free port for every run
	Port    int
	DataDir string

	StartupTimeout time.Duration
	PollInterval   time.Duration
	RenderTimeout  time.Duration
	SettleDelay    time.Duration
	StopGrace      time.Duration
}

// OptionsFromConfig builds pipeline options from the render configuration
func OptionsFromConfig(c *config.RenderConfig) Options {
	return Options{
		Port:           c.ServerPort,
		DataDir:        c.DataDir,
		StartupTimeout: c.StartupTimeout(),
		PollInterval:   c.PollInterval(),
		RenderTimeout:  c.RenderTimeout(),
		SettleDelay:    c.SettleDelay(),
		StopGrace:      c.StopGrace(),
	}
}

// Job is the per-run render request
type Job struct {
	OutputPath string
	Width      int
	Height     int
	Port       int
	DataFile   string
	Deadline   time.Time
}

// Result describes a finished run
type Result struct {
	Job         Job
	State       State
	Transitions []Transition
	Warnings    []TeardownWarning
	Duration    time.Duration
	Err         error
}

// Pipeline renders a display record to a PNG through a short-lived render
// server and a headless browser. Each Run owns all of its resources and
// releases them before returning.
type Pipeline struct {
	opts     Options
	launcher Launcher
	browsers BrowserFactory
	client   *http.Client
	logger   *logger.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(opts Options, launcher Launcher, browsers BrowserFactory, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		opts:     opts,
		launcher: launcher,
		browsers: browsers,
		client:   &http.Client{},
		logger:   logger.Named("render-pipeline"),
	}
}

// run is the state of one Pipeline.Run call
type run struct {
	p       *Pipeline
	log     *logger.Logger
	res     *Result
	server  Server
	browser Browser
}

// Run renders rec into outputPath. On failure the returned error is an *Error
// and outputPath is left as it was. Teardown always runs before Run returns.
func (p *Pipeline) Run(ctx context.Context, rec display.Record, outputPath string) (res *Result, err error) {
	start := time.Now()
	r := &run{
		p:   p,
		log: p.logger,
		res: &Result{
			State: Idle,
			Job: Job{
				OutputPath: outputPath,
				Width:      Width,
				Height:     Height,
			},
		},
	}
	res = r.res

	defer func() {
		if v := recover(); v != nil {
			r.log.Error("Render pipeline panicked", logger.Any("panic", v))
			err = r.fail(KindUpstream, fmt.Errorf("panic: %v", v))
		}

		r.teardown()

		if err != nil {
			r.transition(Failed)
		} else {
			r.transition(Succeeded)
		}
		res.Err = err
		res.Duration = time.Since(start)
	}()

	if err := r.startServer(ctx, rec); err != nil {
		return res, err
	}
	if err := r.awaitReady(ctx); err != nil {
		return res, err
	}

	renderCtx, cancel := context.WithTimeout(ctx, p.opts.RenderTimeout)
	defer cancel()
	r.res.Job.Deadline, _ = renderCtx.Deadline()

	if err := r.render(renderCtx); err != nil {
		return res, err
	}
	if err := r.capture(renderCtx); err != nil {
		return res, err
	}

	return res, nil
}

func (r *run) transition(to State) {
	from := r.res.State
	r.res.State = to
	r.res.Transitions = append(r.res.Transitions, Transition{From: from, To: to, At: time.Now()})
	r.log.Debug("Render state changed",
		logger.String("from", from.String()),
		logger.String("to", to.String()))
}

func (r *run) fail(kind FailureKind, err error) error {
	return &Error{Kind: kind, State: r.res.State, Err: err}
}

func (r *run) startServer(ctx context.Context, rec display.Record) error {
	r.transition(ServerStarting)

	if err := rec.Validate(); err != nil {
		return r.fail(KindUpstream, err)
	}

	port, err := r.p.resolvePort()
	if err != nil {
		return r.fail(KindStartup, err)
	}
	r.res.Job.Port = port
	r.log = r.log.With(logger.Int("port", port))

	dataFile, err := createDataFile(r.p.opts.DataDir)
	if err != nil {
		return r.fail(KindUpstream, err)
	}
	r.res.Job.DataFile = dataFile

	if err := display.WriteFile(dataFile, rec); err != nil {
		return r.fail(KindUpstream, err)
	}

	server, err := r.p.launcher.Launch(ctx, ServerSpec{Port: port, DataFile: dataFile})
	if err != nil {
		return r.fail(KindStartup, err)
	}
	r.server = server
	return nil
}

// resolvePort returns the configured port after checking it can be bound, or
// a free port when none is configured. An occupied port fails at once.
func (p *Pipeline) resolvePort() (int, error) {
	addr := net.JoinHostPort(loopback, strconv.Itoa(p.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrPortInUse, addr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("failed to release port probe: %w", err)
	}
	return port, nil
}

func createDataFile(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "flight-data-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create data file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to create data file: %w", err)
	}
	return name, nil
}

func (r *run) baseURL() string {
	return "http://" + net.JoinHostPort(loopback, strconv.Itoa(r.res.Job.Port)) + "/"
}

func (r *run) awaitReady(ctx context.Context) error {
	r.transition(AwaitingReady)

	timeout := r.p.opts.StartupTimeout
	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(r.p.opts.PollInterval)
	defer ticker.Stop()

	url := r.baseURL()
	attempts := 0
	for {
		attempts++
		if r.p.probe(readyCtx, url) {
			r.log.Info("Render server ready", logger.Int("attempts", attempts))
			return nil
		}

		select {
		case <-r.server.Done():
			return r.fail(KindStartup, errors.New("render server exited before becoming ready"))
		case <-readyCtx.Done():
			if errors.Is(readyCtx.Err(), context.DeadlineExceeded) {
				return r.fail(KindStartup, fmt.Errorf("render server not ready after %s (%d attempts)", timeout, attempts))
			}
			return r.fail(KindStartup, readyCtx.Err())
		case <-ticker.C:
		}
	}
}

// probe reports whether GET url answers 200 within one poll interval
func (p *Pipeline) probe(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.opts.PollInterval)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (r *run) render(ctx context.Context) error {
	r.transition(Rendering)

	browser, err := r.p.browsers.NewBrowser(ctx)
	if err != nil {
		return r.fail(KindRender, err)
	}
	r.browser = browser

	err = browser.Load(ctx, r.baseURL(), r.res.Job.Width, r.res.Job.Height, r.p.opts.SettleDelay)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("page not loaded within %s: %w", r.p.opts.RenderTimeout, err)
		}
		return r.fail(KindRender, err)
	}
	return nil
}

func (r *run) capture(ctx context.Context) error {
	r.transition(Capturing)

	data, err := r.browser.Capture(ctx)
	if err != nil {
		return r.fail(KindCapture, err)
	}
	if err := WriteOutput(r.res.Job.OutputPath, data, r.res.Job.Width, r.res.Job.Height); err != nil {
		return r.fail(KindCapture, err)
	}

	r.log.Info("Display image written",
		logger.String("path", r.res.Job.OutputPath),
		logger.Int("bytes", len(data)))
	return nil
}

// teardown releases everything the run acquired, in reverse order. Problems
// become warnings.
func (r *run) teardown() {
	r.transition(TearingDown)

	if r.browser != nil {
		r.cleanup("browser", r.browser.Close)
	}
	if r.server != nil {
		grace := r.p.opts.StopGrace
		r.cleanup("server", func() error { return r.server.Stop(grace) })
	}
	if r.res.Job.DataFile != "" {
		r.cleanup("data-file", func() error {
			err := os.Remove(r.res.Job.DataFile)
			if os.IsNotExist(err) {
				return nil
			}
			return err
		})
	}
}

func (r *run) cleanup(resource string, fn func() error) {
	defer func() {
		if v := recover(); v != nil {
			r.warn(resource, fmt.Errorf("panic: %v", v))
		}
	}()
	if err := fn(); err != nil {
		r.warn(resource, err)
	}
}

func (r *run) warn(resource string, err error) {
	w := TeardownWarning{Resource: resource, Err: err}
	r.res.Warnings = append(r.res.Warnings, w)
	r.log.Warn("Teardown problem", logger.String("resource", resource), logger.Error(err))
}
