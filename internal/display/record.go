package display

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/radar-pi/internal/adsb"
)

// Placeholder values shown when the feed gave us nothing to display
const (
	NoDataText  = "NO DATA"
	UnknownText = "Unknown"

	NoAircraftError = "No aircraft in range"
)

// Record is everything the render page shows. A Record built by Assemble or
// Unavailable always has every text field set, so the page never has to deal
// with missing data.
type Record struct {
	FlightNumber  string    `json:"flightNumber"`
	Model         string    `json:"model"`
	Registration  string    `json:"registration"`
	GroundSpeed   float64   `json:"groundSpeed"`
	Altitude      string    `json:"altitude"`
	DistanceNM    float64   `json:"distanceNm"`
	TotalAircraft int       `json:"totalAircraft"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Error         string    `json:"error,omitempty"`
}

// Assemble builds the display record for a selection. A nil nearest produces
// the "no aircraft" placeholder rather than an error.
func Assemble(nearest *adsb.Candidate, totalInRange int, fetchedAt time.Time) Record {
	if nearest == nil {
		rec := placeholder(fetchedAt, NoAircraftError)
		rec.TotalAircraft = totalInRange
		return rec
	}

	ac := nearest.Aircraft
	rec := Record{
		FlightNumber:  flightNumber(ac),
		Model:         orUnknown(ac.Model),
		Registration:  orUnknown(ac.Registration),
		Altitude:      UnknownText,
		DistanceNM:    nearest.DistanceNM,
		TotalAircraft: totalInRange,
		LastUpdated:   fetchedAt,
	}
	if ac.GroundSpeed != nil {
		rec.GroundSpeed = *ac.GroundSpeed
	}
	if ac.Altitude != nil {
		rec.Altitude = ac.Altitude.String()
	}
	return rec
}

// Unavailable builds the placeholder record shown when the feed could not be
// fetched at all
func Unavailable(err error, fetchedAt time.Time) Record {
	msg := "Flight data unavailable"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return placeholder(fetchedAt, msg)
}

// Validate reports whether the record is complete enough to render
func (r Record) Validate() error {
	var missing []string
	if r.FlightNumber == "" {
		missing = append(missing, "flightNumber")
	}
	if r.Model == "" {
		missing = append(missing, "model")
	}
	if r.Registration == "" {
		missing = append(missing, "registration")
	}
	if r.Altitude == "" {
		missing = append(missing, "altitude")
	}
	if r.LastUpdated.IsZero() {
		missing = append(missing, "lastUpdated")
	}
	if len(missing) > 0 {
		return errors.New("display record missing " + strings.Join(missing, ", "))
	}
	return nil
}

func placeholder(fetchedAt time.Time, errMsg string) Record {
	return Record{
		FlightNumber: NoDataText,
		Model:        UnknownText,
		Registration: UnknownText,
		Altitude:     UnknownText,
		LastUpdated:  fetchedAt,
		Error:        errMsg,
	}
}

// flightNumber falls back to AC plus the last four hex digits when the
// aircraft is not broadcasting a callsign
func flightNumber(ac adsb.AircraftRecord) string {
	if ac.FlightNumber != nil && *ac.FlightNumber != "" {
		return *ac.FlightNumber
	}
	hex := strings.ToUpper(ac.ID)
	if len(hex) > 4 {
		hex = hex[len(hex)-4:]
	}
	return "AC" + hex
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return UnknownText
	}
	return *s
}
