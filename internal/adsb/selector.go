package adsb

import (
	"cmp"
	"slices"
)

// Candidate is an aircraft together with its distance from the waypoint
type Candidate struct {
	Aircraft   AircraftRecord
	DistanceNM float64
}

// Selection is the outcome of ranking one fetch. Nearest is nil when no
// aircraft is inside the radius; that is a valid result, not an error.
type Selection struct {
	Nearest *Candidate
	InRange int
}

// Found reports whether an aircraft was selected
func (s Selection) Found() bool {
	return s.Nearest != nil
}

// Select picks the aircraft closest to the waypoint. Records farther than the
// radius are ignored (the boundary itself counts as inside) and equal
// distances go to the lexically smallest ID, so identical input always yields
// the same pick.
func Select(records []AircraftRecord, wp Waypoint) Selection {
	var sel Selection

	for _, rec := range records {
		d := DistanceNM(wp.Latitude, wp.Longitude, rec.Latitude, rec.Longitude)
		if d > wp.RadiusNM {
			continue
		}
		sel.InRange++

		if sel.Nearest == nil || closer(d, rec.ID, sel.Nearest) {
			sel.Nearest = &Candidate{Aircraft: rec, DistanceNM: d}
		}
	}

	return sel
}

func closer(d float64, id string, best *Candidate) bool {
	if d != best.DistanceNM {
		return d < best.DistanceNM
	}
	return id < best.Aircraft.ID
}

// InRange returns every aircraft inside the radius, nearest first, with the
// same boundary and tie rules as Select
func InRange(records []AircraftRecord, wp Waypoint) []Candidate {
	var out []Candidate
	for _, rec := range records {
		d := DistanceNM(wp.Latitude, wp.Longitude, rec.Latitude, rec.Longitude)
		if d > wp.RadiusNM {
			continue
		}
		out = append(out, Candidate{Aircraft: rec, DistanceNM: d})
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(a.DistanceNM, b.DistanceNM); c != 0 {
			return c
		}
		return cmp.Compare(a.Aircraft.ID, b.Aircraft.ID)
	})
	return out
}
