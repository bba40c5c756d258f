// Package services implements business logic for the application
package services

import (
	"context"
	"errors"

	"med-shift-bot/internal/geo"
	"med-shift-bot/internal/models"
	"med-shift-bot/internal/repository"
)

// ErrFacilityNotFound is returned when a specific facility id is requested
// but no active facility carries it.
var ErrFacilityNotFound = errors.New("facility not found")

// RangeResult describes how a coordinate relates to a facility's geofence
type RangeResult struct {
	Within         bool
	DistanceMeters float64
	Facility       *models.Facility
}

// ProximityEvaluator classifies coordinates against the active facilities
type ProximityEvaluator struct {
	facilities          repository.FacilityStore
	defaultRadiusMeters float64
}

// NewProximityEvaluator creates a new proximity evaluator
func NewProximityEvaluator(facilities repository.FacilityStore, defaultRadiusMeters float64) *ProximityEvaluator {
	return &ProximityEvaluator{
		facilities:          facilities,
		defaultRadiusMeters: defaultRadiusMeters,
	}
}

// NearestFacility returns the active facility closest to coord and the
// distance to it. Ties go to the facility listed first. Returns a nil
// facility when no facility is active.
func (p *ProximityEvaluator) NearestFacility(ctx context.Context, coord models.Coordinate) (*models.Facility, float64, error) {
	facilities, err := p.facilities.ListActive(ctx)
	if err != nil {
		return nil, 0, err
	}

	var nearest *models.Facility
	var best float64
	for i := range facilities {
		d := geo.DistanceMeters(coord, facilities[i].Center)
		if nearest == nil || d < best {
			nearest = &facilities[i]
			best = d
		}
	}
	if nearest == nil {
		return nil, 0, nil
	}
	return nearest, best, nil
}

// Evaluate determines whether coord falls inside a facility's geofence.
// With an empty facilityID the nearest active facility and its radius are
// used; with a concrete facilityID (QR or manual check-in against a known
// site) that facility's own radius is the bound, not the nearest one's.
func (p *ProximityEvaluator) Evaluate(ctx context.Context, coord models.Coordinate, facilityID string) (RangeResult, error) {
	if facilityID == "" {
		facility, dist, err := p.NearestFacility(ctx, coord)
		if err != nil {
			return RangeResult{}, err
		}
		if facility == nil {
			return RangeResult{}, nil
		}
		return RangeResult{
			Within:         dist <= p.radiusOf(facility),
			DistanceMeters: dist,
			Facility:       facility,
		}, nil
	}

	facilities, err := p.facilities.ListActive(ctx)
	if err != nil {
		return RangeResult{}, err
	}
	for i := range facilities {
		if facilities[i].ID != facilityID {
			continue
		}
		dist := geo.DistanceMeters(coord, facilities[i].Center)
		return RangeResult{
			Within:         dist <= p.radiusOf(&facilities[i]),
			DistanceMeters: dist,
			Facility:       &facilities[i],
		}, nil
	}
	return RangeResult{}, ErrFacilityNotFound
}

func (p *ProximityEvaluator) radiusOf(f *models.Facility) float64 {
	if f.RadiusMeters > 0 {
		return f.RadiusMeters
	}
	return p.defaultRadiusMeters
}
