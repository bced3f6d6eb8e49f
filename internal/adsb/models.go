package adsb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Waypoint is the fixed reference point a run searches around
type Waypoint struct {
	Latitude  float64
	Longitude float64
	RadiusNM  float64
}

// String formats the waypoint for logs
func (w Waypoint) String() string {
	return fmt.Sprintf("%.4f,%.4f r=%.1fnm", w.Latitude, w.Longitude, w.RadiusNM)
}

// Altitude is a barometric altitude report. The feed sends either a number of
// feet or the string "ground".
type Altitude struct {
	Feet     float64
	OnGround bool
}

// String renders the altitude the way the display shows it
func (a Altitude) String() string {
	if a.OnGround {
		return "ground"
	}
	return strconv.FormatFloat(a.Feet, 'f', 0, 64)
}

// UnmarshalJSON accepts numbers and the "ground" marker
func (a *Altitude) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.EqualFold(s, "ground") {
			*a = Altitude{OnGround: true}
			return nil
		}
		feet, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid altitude %q", s)
		}
		*a = Altitude{Feet: feet}
		return nil
	}

	var feet float64
	if err := json.Unmarshal(data, &feet); err != nil {
		return fmt.Errorf("invalid altitude %s: %w", string(data), err)
	}
	*a = Altitude{Feet: feet}
	return nil
}

// MarshalJSON writes the altitude back in feed form
func (a Altitude) MarshalJSON() ([]byte, error) {
	if a.OnGround {
		return []byte(`"ground"`), nil
	}
	return json.Marshal(a.Feet)
}

// AircraftRecord is one aircraft as reported by the feed for a single fetch.
// Optional fields are nil when the feed did not send them.
type AircraftRecord struct {
	ID        string
	Latitude  float64
	Longitude float64

	FlightNumber *string
	Model        *string
	Registration *string
	GroundSpeed  *float64
	Altitude     *Altitude
	Heading      *float64
	VerticalRate *float64
	Squawk       *string
}

// feedAircraft is the wire shape shared by adsb.lol, airplanes.live and readsb
type feedAircraft struct {
	Hex      string    `json:"hex"`
	Flight   *string   `json:"flight"`
	Type     *string   `json:"t"`
	Reg      *string   `json:"r"`
	Lat      *float64  `json:"lat"`
	Lon      *float64  `json:"lon"`
	GS       *float64  `json:"gs"`
	AltBaro  *Altitude `json:"alt_baro"`
	Track    *float64  `json:"track"`
	BaroRate *float64  `json:"baro_rate"`
	Squawk   *string   `json:"squawk"`
}

// feedResponse covers the object-shaped payloads; some servers use "ac", older
// ones "aircraft"
type feedResponse struct {
	AC       []json.RawMessage `json:"ac"`
	Aircraft []json.RawMessage `json:"aircraft"`
	Total    *int              `json:"total"`
}

// toRecord converts a wire aircraft. ok is false when a mandatory field is
// missing or the position is not a valid coordinate.
func (f feedAircraft) toRecord() (AircraftRecord, bool) {
	hex := strings.TrimSpace(f.Hex)
	if hex == "" || f.Lat == nil || f.Lon == nil {
		return AircraftRecord{}, false
	}
	if *f.Lat < -90 || *f.Lat > 90 || *f.Lon < -180 || *f.Lon > 180 {
		return AircraftRecord{}, false
	}

	return AircraftRecord{
		ID:           strings.ToLower(hex),
		Latitude:     *f.Lat,
		Longitude:    *f.Lon,
		FlightNumber: trimmed(f.Flight),
		Model:        trimmed(f.Type),
		Registration: trimmed(f.Reg),
		GroundSpeed:  f.GS,
		Altitude:     f.AltBaro,
		Heading:      f.Track,
		VerticalRate: f.BaroRate,
		Squawk:       trimmed(f.Squawk),
	}, true
}

// trimmed drops blank strings; the feed pads callsigns with spaces
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
