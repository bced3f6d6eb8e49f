package render_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/radar-pi/internal/api"
	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/internal/render"
	"github.com/yegors/radar-pi/internal/render/rendertest"
	"github.com/yegors/radar-pi/pkg/logger"
)

// TestHelperProcess is not a real test. It is the render server child started
// by the launcher tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: -- mode port data")
		os.Exit(2)
	}
	mode, port, data := args[1], args[2], args[3]

	// Placeholders and environment must agree
	if port != os.Getenv("PORT") || data != os.Getenv("RADAR_DATA_FILE") {
		fmt.Fprintln(os.Stderr, "placeholder mismatch")
		os.Exit(3)
	}

	switch mode {
	case "exit":
		os.Exit(1)
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
	}

	fmt.Println("helper serving on", port)
	handler := api.NewRouter(data, logger.NewNop()).Routes()
	err := http.ListenAndServe("127.0.0.1:"+port, handler)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func helperLauncher(mode string) *render.ProcessLauncher {
	return render.NewProcessLauncher(
		[]string{os.Args[0], "-test.run=^TestHelperProcess$", "--", mode, "{port}", "{data}"},
		[]string{"GO_WANT_HELPER_PROCESS=1"},
		logger.NewNop(),
	)
}

// recordingLauncher keeps the servers it launched
type recordingLauncher struct {
	render.Launcher

	mu      sync.Mutex
	servers []render.Server
}

func (l *recordingLauncher) Launch(ctx context.Context, spec render.ServerSpec) (render.Server, error) {
	s, err := l.Launcher.Launch(ctx, spec)
	if err == nil {
		l.mu.Lock()
		l.servers = append(l.servers, s)
		l.mu.Unlock()
	}
	return s, err
}

func (l *recordingLauncher) only(t *testing.T) render.Server {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.servers, 1)
	return l.servers[0]
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func assertPortFree(t *testing.T, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err, "port %d still bound", port)
	ln.Close()
}

func assertExited(t *testing.T, s render.Server) {
	t.Helper()
	select {
	case <-s.Done():
	default:
		t.Fatalf("server process %d still running", s.Pid())
	}
}

func TestPipeline_ChildProcessTornDownAfterCaptureFault(t *testing.T) {
	opts := testOptions(t)
	opts.Port = freePort(t)
	launcher := &recordingLauncher{Launcher: helperLauncher("serve")}
	browser := &rendertest.Browser{CaptureErr: errors.New("injected capture fault")}
	p := render.NewPipeline(opts, launcher, &rendertest.BrowserFactory{Browser: browser}, logger.NewNop())

	out := outputPath(t)
	res, err := p.Run(context.Background(), testRecord(), out)
	require.Error(t, err)

	assert.ErrorIs(t, err, render.ErrCapture)
	assert.Equal(t, render.Failed, res.State)
	assert.Empty(t, res.Warnings)

	// The child served the data file before the fault
	assert.Equal(t, "UAL123", browser.Record().FlightNumber)

	assertExited(t, launcher.only(t))
	assertPortFree(t, opts.Port)
	assertNoDataFiles(t, opts.DataDir)
	assert.NoFileExists(t, out)
	assert.True(t, browser.Closed())
}

func TestPipeline_ChildProcessSucceeds(t *testing.T) {
	opts := testOptions(t)
	launcher := &recordingLauncher{Launcher: helperLauncher("serve")}
	browser := &rendertest.Browser{}
	p := render.NewPipeline(opts, launcher, &rendertest.BrowserFactory{Browser: browser}, logger.NewNop())

	out := outputPath(t)
	res, err := p.Run(context.Background(), testRecord(), out)
	require.NoError(t, err)

	assert.FileExists(t, out)
	assertExited(t, launcher.only(t))
	assertPortFree(t, res.Job.Port)
}

func TestPipeline_ChildProcessExitsEarly(t *testing.T) {
	opts := testOptions(t)
	opts.StartupTimeout = 30 * time.Second
	launcher := &recordingLauncher{Launcher: helperLauncher("exit")}
	p := render.NewPipeline(opts, launcher,
		&rendertest.BrowserFactory{Browser: &rendertest.Browser{}}, logger.NewNop())

	start := time.Now()
	_, err := p.Run(context.Background(), testRecord(), outputPath(t))
	require.Error(t, err)

	assert.ErrorIs(t, err, render.ErrServerStartupTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
	assertExited(t, launcher.only(t))
}

func TestPipeline_MissingServerBinary(t *testing.T) {
	opts := testOptions(t)
	launcher := render.NewProcessLauncher(
		[]string{filepath.Join(t.TempDir(), "no-such-server"), "{port}"}, nil, logger.NewNop())
	p := render.NewPipeline(opts, launcher,
		&rendertest.BrowserFactory{Browser: &rendertest.Browser{}}, logger.NewNop())

	_, err := p.Run(context.Background(), testRecord(), outputPath(t))
	assert.ErrorIs(t, err, render.ErrServerStartupTimeout)
	assertNoDataFiles(t, opts.DataDir)
}

func TestProcessLauncher_KillsServerIgnoringTerminate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no terminate signal on windows")
	}

	port := freePort(t)
	dataFile := filepath.Join(t.TempDir(), "flight-data.json")
	require.NoError(t, display.WriteFile(dataFile, testRecord()))

	srv, err := helperLauncher("ignore-term").Launch(context.Background(), render.ServerSpec{Port: port, DataFile: dataFile})
	require.NoError(t, err)

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond)

	err = srv.Stop(300 * time.Millisecond)
	assert.ErrorIs(t, err, render.ErrForcedKill)
	assertExited(t, srv)
	assertPortFree(t, port)
}

func TestProcessLauncher_EmptyCommand(t *testing.T) {
	_, err := render.NewProcessLauncher(nil, nil, logger.NewNop()).
		Launch(context.Background(), render.ServerSpec{Port: 1})
	assert.Error(t, err)
}

func TestDefaultServerCommand_PassesLogSettings(t *testing.T) {
	command, err := render.DefaultServerCommand("warn", "json")
	require.NoError(t, err)

	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Equal(t, []string{
		exe, "serve",
		"--port", "{port}",
		"--data", "{data}",
		"--log-level", "warn",
		"--log-format", "json",
	}, command)
}
