package radar

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/radar-pi/internal/adsb"
	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/internal/render"
	"github.com/yegors/radar-pi/pkg/logger"
)

// TelemetrySource fetches aircraft around a waypoint
type TelemetrySource interface {
	Fetch(ctx context.Context, wp adsb.Waypoint) ([]adsb.AircraftRecord, error)
}

// Renderer turns a display record into the output image
type Renderer interface {
	Run(ctx context.Context, rec display.Record, outputPath string) (*render.Result, error)
}

// Service runs the fetch, select, assemble and render sequence
type Service struct {
	source   TelemetrySource
	renderer Renderer
	logger   *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a service. renderer may be nil when only Nearest is used.
func NewService(source TelemetrySource, renderer Renderer, logger *logger.Logger) *Service {
	return &Service{
		source:   source,
		renderer: renderer,
		logger:   logger.Named("radar-service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Nearest fetches the feed and selects the nearest aircraft. It returns the
// number of usable records fetched alongside the selection.
func (s *Service) Nearest(ctx context.Context, wp adsb.Waypoint) (adsb.Selection, int, error) {
	records, err := s.source.Fetch(ctx, wp)
	if err != nil {
		return adsb.Selection{}, 0, err
	}
	return adsb.Select(records, wp), len(records), nil
}

// Nearby fetches the feed and returns every aircraft inside the radius,
// nearest first, with the number of usable records fetched
func (s *Service) Nearby(ctx context.Context, wp adsb.Waypoint) ([]adsb.Candidate, int, error) {
	records, err := s.source.Fetch(ctx, wp)
	if err != nil {
		return nil, 0, err
	}
	return adsb.InRange(records, wp), len(records), nil
}

// RunOnce produces one display image for wp at outputPath. A failed fetch
// still renders the error placeholder so the display shows what went wrong.
func (s *Service) RunOnce(ctx context.Context, wp adsb.Waypoint, outputPath string) Outcome {
	start := s.now()
	out := Outcome{RunID: s.newID()}
	log := s.logger.WithRunID(out.RunID)

	log.Info("Starting run",
		logger.String("waypoint", wp.String()),
		logger.String("output", outputPath))

	sel, fetched, err := s.Nearest(ctx, wp)
	fetchedAt := s.now()
	out.Selection = sel
	out.Fetched = fetched

	switch {
	case err != nil:
		out.FetchErr = err
		out.Record = display.Unavailable(err, fetchedAt)
		log.Warn("Telemetry fetch failed, rendering placeholder", logger.Error(err))
	case sel.Found():
		out.Record = display.Assemble(sel.Nearest, sel.InRange, fetchedAt)
		log.Info("Nearest aircraft selected",
			logger.String("id", sel.Nearest.Aircraft.ID),
			logger.String("flight", out.Record.FlightNumber),
			logger.Float64("distance_nm", sel.Nearest.DistanceNM),
			logger.Int("in_range", sel.InRange),
			logger.Int("fetched", fetched))
	default:
		out.Record = display.Assemble(nil, 0, fetchedAt)
		log.Info("No aircraft in range", logger.Int("fetched", fetched))
	}

	res, err := s.renderer.Run(ctx, out.Record, outputPath)
	out.Render = res
	out.Duration = s.now().Sub(start)

	switch {
	case err != nil:
		out.Status = StatusFailed
		out.Err = err
	case out.FetchErr != nil:
		out.Status = StatusDegraded
	default:
		out.Status = StatusSucceeded
	}

	fields := []logger.Field{
		logger.String("status", out.Status.String()),
		logger.Int("exit_code", out.ExitCode()),
		logger.Duration("duration", out.Duration),
	}
	if res != nil {
		fields = append(fields, logger.Int("warnings", len(res.Warnings)))
	}
	if out.Err != nil {
		log.Error("Run failed", append(fields, logger.Error(out.Err))...)
	} else {
		log.Info("Run finished", fields...)
	}

	return out
}
