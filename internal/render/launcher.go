package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/yegors/radar-pi/pkg/logger"
)

// ServerSpec describes the render server for one run
type ServerSpec struct {
	Port     int
	DataFile string
}

// Server is a running render server
type Server interface {
	// Done is closed once the server has exited
	Done() <-chan struct{}
	// Stop asks the server to exit and forces it after grace
	Stop(grace time.Duration) error
	Pid() int
}

// Launcher starts render servers
type Launcher interface {
	Launch(ctx context.Context, spec ServerSpec) (Server, error)
}

// ErrForcedKill is returned by Stop when the server ignored the terminate
// signal and had to be killed
var ErrForcedKill = errors.New("server did not exit after terminate signal, killed")

// Bounds the wait for output pipes held open by grandchildren
const pipeWaitDelay = 2 * time.Second

// DefaultServerCommand re-executes the running binary as the render server.
// The child logs with the given level and format so its output matches the
// parent's.
func DefaultServerCommand(logLevel, logFormat string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return []string{
		exe, "serve",
		"--port", "{port}",
		"--data", "{data}",
		"--log-level", logLevel,
		"--log-format", logFormat,
	}, nil
}

// ProcessLauncher runs the render server as a child process. Command arguments
// may contain {port} and {data}, which are replaced per run.
type ProcessLauncher struct {
	command []string
	env     []string
	logger  *logger.Logger
}

// NewProcessLauncher creates a launcher for command. Extra env entries are
// appended to the parent's environment.
func NewProcessLauncher(command []string, env []string, logger *logger.Logger) *ProcessLauncher {
	return &ProcessLauncher{
		command: command,
		env:     env,
		logger:  logger.Named("render-launcher"),
	}
}

// Launch starts the server process and returns without waiting for it to be
// ready
func (l *ProcessLauncher) Launch(ctx context.Context, spec ServerSpec) (Server, error) {
	if len(l.command) == 0 {
		return nil, errors.New("empty server command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := expandArgs(l.command, spec)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Env = append(cmd.Env,
		"PORT="+strconv.Itoa(spec.Port),
		"RADAR_DATA_FILE="+spec.DataFile,
	)
	cmd.WaitDelay = pipeWaitDelay
	configureProcess(cmd)

	childLog := l.logger.Named("render-child")
	stdout := childLog.Writer(zapcore.DebugLevel)
	stderr := childLog.Writer(zapcore.WarnLevel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	l.logger.Info("Render server started",
		logger.Int("pid", cmd.Process.Pid),
		logger.Int("port", spec.Port),
		logger.Strings("args", args))

	p := &processServer{
		cmd:     cmd,
		done:    make(chan struct{}),
		writers: []io.Closer{stdout, stderr},
		logger:  l.logger,
	}
	go p.wait()

	return p, nil
}

func expandArgs(command []string, spec ServerSpec) []string {
	r := strings.NewReplacer(
		"{port}", strconv.Itoa(spec.Port),
		"{data}", spec.DataFile,
	)
	args := make([]string, len(command))
	for i, arg := range command {
		args[i] = r.Replace(arg)
	}
	return args
}

type processServer struct {
	cmd     *exec.Cmd
	done    chan struct{}
	writers []io.Closer
	logger  *logger.Logger
}

func (p *processServer) wait() {
	err := p.cmd.Wait()
	for _, w := range p.writers {
		w.Close()
	}

	fields := []logger.Field{
		logger.Int("pid", p.cmd.Process.Pid),
		logger.String("state", p.cmd.ProcessState.String()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	p.logger.Debug("Render server exited", fields...)
	close(p.done)
}

func (p *processServer) Done() <-chan struct{} {
	return p.done
}

func (p *processServer) Pid() int {
	return p.cmd.Process.Pid
}

func (p *processServer) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := terminate(p.cmd); err != nil {
		p.logger.Warn("Failed to signal render server", logger.Error(err))
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	if err := kill(p.cmd); err != nil {
		return fmt.Errorf("failed to kill render server %d: %w", p.Pid(), err)
	}

	select {
	case <-p.done:
		return ErrForcedKill
	case <-time.After(grace):
		return fmt.Errorf("render server %d still running after kill", p.Pid())
	}
}
