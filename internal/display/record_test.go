package display

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/radar-pi/internal/adsb"
)

var fetchedAt = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestAssemble_FullRecord(t *testing.T) {
	cand := &adsb.Candidate{
		Aircraft: adsb.AircraftRecord{
			ID:           "a1b2c3",
			FlightNumber: strPtr("UAL123"),
			Model:        strPtr("B738"),
			Registration: strPtr("N12345"),
			GroundSpeed:  floatPtr(251.4),
			Altitude:     &adsb.Altitude{Feet: 3500},
		},
		DistanceNM: 2.1,
	}

	rec := Assemble(cand, 2, fetchedAt)

	assert.Equal(t, "UAL123", rec.FlightNumber)
	assert.Equal(t, "B738", rec.Model)
	assert.Equal(t, "N12345", rec.Registration)
	assert.Equal(t, 251.4, rec.GroundSpeed)
	assert.Equal(t, "3500", rec.Altitude)
	assert.Equal(t, 2.1, rec.DistanceNM)
	assert.Equal(t, 2, rec.TotalAircraft)
	assert.True(t, rec.LastUpdated.Equal(fetchedAt))
	assert.Empty(t, rec.Error)
	assert.NoError(t, rec.Validate())
}

func TestAssemble_MissingOptionalFields(t *testing.T) {
	cand := &adsb.Candidate{Aircraft: adsb.AircraftRecord{ID: "abcdef"}, DistanceNM: 4}

	rec := Assemble(cand, 1, fetchedAt)

	assert.Equal(t, "ACCDEF", rec.FlightNumber)
	assert.Equal(t, UnknownText, rec.Model)
	assert.Equal(t, UnknownText, rec.Registration)
	assert.Equal(t, UnknownText, rec.Altitude)
	assert.Equal(t, 0.0, rec.GroundSpeed)
	assert.Empty(t, rec.Error)
	assert.NoError(t, rec.Validate())
}

func TestAssemble_GroundAltitude(t *testing.T) {
	cand := &adsb.Candidate{Aircraft: adsb.AircraftRecord{ID: "abc", Altitude: &adsb.Altitude{OnGround: true}}}
	rec := Assemble(cand, 1, fetchedAt)
	assert.Equal(t, "ground", rec.Altitude)
	assert.Equal(t, "ACABC", rec.FlightNumber)
}

func TestAssemble_NoneFound(t *testing.T) {
	sel := adsb.Select(nil, adsb.Waypoint{Latitude: 38.8958, Longitude: -77.0931, RadiusNM: 10})

	rec := Assemble(sel.Nearest, sel.InRange, fetchedAt)

	assert.Equal(t, NoDataText, rec.FlightNumber)
	assert.Equal(t, UnknownText, rec.Model)
	assert.Equal(t, 0, rec.TotalAircraft)
	assert.Equal(t, NoAircraftError, rec.Error)
	assert.NoError(t, rec.Validate())
}

func TestUnavailable(t *testing.T) {
	rec := Unavailable(errors.New("connection refused"), fetchedAt)

	assert.Equal(t, NoDataText, rec.FlightNumber)
	assert.Contains(t, rec.Error, "Flight data unavailable")
	assert.Contains(t, rec.Error, "connection refused")
	assert.NoError(t, rec.Validate())

	assert.Equal(t, "Flight data unavailable", Unavailable(nil, fetchedAt).Error)
}

func TestValidate_RejectsEmptyRecord(t *testing.T) {
	err := Record{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flightNumber")
	assert.Contains(t, err.Error(), "lastUpdated")
}

func TestDataFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight_data.json")
	rec := Assemble(&adsb.Candidate{Aircraft: adsb.AircraftRecord{ID: "a1b2c3", Model: strPtr("A320")}, DistanceNM: 1.5}, 3, fetchedAt)

	require.NoError(t, WriteFile(path, rec))
	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, rec.FlightNumber, got.FlightNumber)
	assert.Equal(t, rec.Model, got.Model)
	assert.Equal(t, rec.TotalAircraft, got.TotalAircraft)
	assert.True(t, rec.LastUpdated.Equal(got.LastUpdated))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"flightNumber": "ACB2C3"`)
	assert.Contains(t, string(raw), `"totalAircraft": 3`)
	assert.NotContains(t, string(raw), `"error"`)
}

func TestReadFile_Errors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = ReadFile(path)
	assert.Error(t, err)
}

func TestSummary_IncludesRecordAndError(t *testing.T) {
	wp := adsb.Waypoint{Latitude: 38.8958, Longitude: -77.0931, RadiusNM: 10}

	out := Summary(Assemble(nil, 0, fetchedAt), wp, 5)

	assert.Contains(t, out, NoDataText)
	assert.Contains(t, out, NoAircraftError)
	assert.Contains(t, out, "0 of 5")
	assert.Contains(t, out, "38.8958")
}

func TestAircraftList_NearestFirstAndCapped(t *testing.T) {
	cands := []adsb.Candidate{
		{Aircraft: adsb.AircraftRecord{ID: "ab12cd", FlightNumber: strPtr("UAL77"), Model: strPtr("B39M"), Altitude: &adsb.Altitude{Feet: 3500}}, DistanceNM: 2.1},
		{Aircraft: adsb.AircraftRecord{ID: "a4f2c1", FlightNumber: strPtr("DAL1402")}, DistanceNM: 7.4},
		{Aircraft: adsb.AircraftRecord{ID: "c0ffee"}, DistanceNM: 9.9},
	}

	out := AircraftList(cands, 2)

	assert.Contains(t, out, "UAL77")
	assert.Contains(t, out, "3500 ft")
	assert.Contains(t, out, "DAL1402")
	assert.NotContains(t, out, "ACFFEE")
	assert.Less(t, strings.Index(out, "UAL77"), strings.Index(out, "DAL1402"))
	assert.Contains(t, out, "Showing 2 of 3 aircraft in range")
}

func TestAircraftList_Empty(t *testing.T) {
	out := AircraftList(nil, 10)
	assert.Contains(t, out, "Showing 0 of 0 aircraft in range")
}
