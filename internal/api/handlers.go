package api

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/yegors/radar-pi/internal/display"
	"github.com/yegors/radar-pi/pkg/logger"
)

// Logical size of the display surface
const (
	SurfaceWidth  = 800
	SurfaceHeight = 480
)

//go:embed templates/display.html
var templateFS embed.FS

var displayTemplate = template.Must(template.ParseFS(templateFS, "templates/display.html"))

// Handler serves the display page and the current record
type Handler struct {
	dataFile string
	logger   *logger.Logger
}

// NewHandler creates a handler reading the record from dataFile
func NewHandler(dataFile string, logger *logger.Logger) *Handler {
	return &Handler{
		dataFile: dataFile,
		logger:   logger.Named("api-handler"),
	}
}

// GetDisplayPage renders the 800x480 page. The page fetches the record itself
// and flags <body data-loaded="true"> once it has drawn it.
func (h *Handler) GetDisplayPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct {
		Width  int
		Height int
	}{SurfaceWidth, SurfaceHeight}

	if err := displayTemplate.Execute(w, data); err != nil {
		h.logger.Error("Failed to render display page", logger.Error(err))
	}
}

// GetFlightData returns the current record. The file is read on every request
// so the server always shows what the parent process wrote last.
func (h *Handler) GetFlightData(w http.ResponseWriter, r *http.Request) {
	rec, err := display.ReadFile(h.dataFile)
	if err != nil {
		h.logger.Warn("Display record unavailable",
			logger.String("data_file", h.dataFile),
			logger.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, display.Unavailable(err, time.Now()))
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetHealth reports that the server is up
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
