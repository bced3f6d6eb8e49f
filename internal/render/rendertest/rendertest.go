// Package rendertest provides in-process launchers and scripted browsers for
// exercising render.Pipeline without Chrome or child processes.
package rendertest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/radar-pi/internal/api"
	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/internal/render"
	"github.com/yegors/radar-pi/pkg/logger"
)

// SolidPNG returns a white PNG of the given size
func SolidPNG(width, height int) []byte {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Launcher serves the render API in-process on the requested port
type Launcher struct {
	// Err fails every Launch
	Err error
	// NeverReady returns a server that never listens
	NeverReady bool
	// ExitImmediately returns a server that has already exited
	ExitImmediately bool
	// StopErr is returned by Stop after the server has shut down
	StopErr error

	mu      sync.Mutex
	servers []*Server
}

func (l *Launcher) Launch(ctx context.Context, spec render.ServerSpec) (render.Server, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	s := &Server{
		Spec:    spec,
		done:    make(chan struct{}),
		stopErr: l.StopErr,
	}

	l.mu.Lock()
	l.servers = append(l.servers, s)
	l.mu.Unlock()

	switch {
	case l.ExitImmediately:
		close(s.done)
		return s, nil
	case l.NeverReady:
		return s, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", spec.Port))
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{Handler: api.NewRouter(spec.DataFile, logger.NewNop()).Routes()}
	go func() {
		s.srv.Serve(ln)
		close(s.done)
	}()

	return s, nil
}

// Servers returns every server launched so far
func (l *Launcher) Servers() []*Server {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Server(nil), l.servers...)
}

// Server is an in-process render server
type Server struct {
	Spec render.ServerSpec

	srv      *http.Server
	done     chan struct{}
	stopErr  error
	stopOnce sync.Once
	stopped  atomic.Bool
}

func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) Pid() int {
	return os.Getpid()
}

func (s *Server) Stop(grace time.Duration) error {
	s.stopped.Store(true)
	s.stopOnce.Do(func() {
		if s.srv == nil {
			select {
			case <-s.done:
			default:
				close(s.done)
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		s.srv.Shutdown(ctx)
		<-s.done
	})
	return s.stopErr
}

// Stopped reports whether Stop was called
func (s *Server) Stopped() bool {
	return s.stopped.Load()
}

// Browser is a scripted browser. Load fetches the record from the render
// server like the real page does.
type Browser struct {
	PNG []byte

	LoadErr    error
	CaptureErr error
	CloseErr   error

	// BlockLoad makes Load wait for its context
	BlockLoad bool
	// PanicOnCapture makes Capture panic
	PanicOnCapture bool

	mu      sync.Mutex
	record  display.Record
	loadURL string
	closed  atomic.Bool
}

func (b *Browser) Load(ctx context.Context, url string, width, height int, settle time.Duration) error {
	b.mu.Lock()
	b.loadURL = url
	b.mu.Unlock()

	if b.BlockLoad {
		<-ctx.Done()
		return ctx.Err()
	}
	if b.LoadErr != nil {
		return b.LoadErr
	}
	if width != render.Width || height != render.Height {
		return fmt.Errorf("unexpected viewport %dx%d", width, height)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"api/flight-data", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flight data status %d", resp.StatusCode)
	}

	var rec display.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return err
	}

	b.mu.Lock()
	b.record = rec
	b.mu.Unlock()
	return nil
}

func (b *Browser) Capture(ctx context.Context) ([]byte, error) {
	if b.PanicOnCapture {
		panic("capture exploded")
	}
	if b.CaptureErr != nil {
		return nil, b.CaptureErr
	}
	if b.PNG == nil {
		return SolidPNG(render.Width, render.Height), nil
	}
	return b.PNG, nil
}

func (b *Browser) Close() error {
	b.closed.Store(true)
	return b.CloseErr
}

// Record returns the record the page would have drawn
func (b *Browser) Record() display.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record
}

// LoadURL returns the URL passed to Load
func (b *Browser) LoadURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadURL
}

// Closed reports whether Close was called
func (b *Browser) Closed() bool {
	return b.closed.Load()
}

// BrowserFactory hands out Browser, or fails with Err
type BrowserFactory struct {
	Browser *Browser
	Err     error

	created atomic.Int32
}

func (f *BrowserFactory) NewBrowser(ctx context.Context) (render.Browser, error) {
	f.created.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Browser == nil {
		return nil, errors.New("no browser configured")
	}
	return f.Browser, nil
}

// Created returns the number of NewBrowser calls
func (f *BrowserFactory) Created() int {
	return int(f.created.Load())
}
