package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/netutil"

	"github.com/yegors/radar-pi/pkg/logger"
)

// The only client is one headless browser; anything beyond a few connections
// is unexpected
const maxConnections = 16

const shutdownTimeout = 5 * time.Second

// Serve listens on host:port and serves handler until ctx is cancelled
func Serve(ctx context.Context, host string, port int, handler http.Handler, log *logger.Logger) error {
	log = log.Named("render-server")
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, maxConnections)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info("Render server listening", logger.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("render server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down render server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down render server: %w", err)
	}
	return nil
}
