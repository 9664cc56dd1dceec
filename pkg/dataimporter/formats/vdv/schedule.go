package vdv

import (
	"fmt"
	"time"

	"github.com/mpm-tu-berlin/eflips-ingest/pkg/model"

	"github.com/rs/zerolog/log"
)

// DefaultTimezone is the civil timezone all schedule timestamps are
// expressed in. Trip start offsets count from local midnight of the
// operating date.
const DefaultTimezone = "Europe/Berlin"

type rotationKey struct {
	DutyID int64
	Date   time.Time
}

// Schedule expands scheduled trips across the operating calendar and groups
// them into duty rotations.
type Schedule struct {
	resolver *Resolver
	network  *Network
	location *time.Location

	rotations      []*model.Rotation
	rotationsByKey map[rotationKey]*model.Rotation
}

// BuildSchedule assembles one trip per (scheduled trip, operating date)
// pair and attaches it to the rotation of its duty on that date. Stop times
// are reconciled per trip before the trip is accepted.
func BuildSchedule(resolver *Resolver, network *Network, location *time.Location) ([]*model.Rotation, error) {
	s := &Schedule{
		resolver:       resolver,
		network:        network,
		location:       location,
		rotationsByKey: map[rotationKey]*model.Rotation{},
	}

	trips := resolver.ScheduledTrips()
	for i := range trips {
		if err := s.buildTrip(&trips[i]); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("rotations", len(s.rotations)).
		Msg("Assembled schedule")

	return s.rotations, nil
}

func (s *Schedule) buildTrip(record *ScheduledTripRecord) error {
	plan, ok := s.network.Plan(record.Line, record.Variant)
	if !ok {
		if reason, skipped := s.network.Skipped(record.Line, record.Variant); skipped {
			log.Debug().
				Int64("trip", record.TripID).
				Str("reason", reason).
				Msg("Scheduled trip references a skipped line variant")
			return nil
		}
		return &ReferenceError{
			Key:     fmt.Sprintf("line %d variant %s", record.Line, record.Variant),
			Record:  record.Describe(),
			Message: "line variant has no assembled route",
		}
	}

	variant, err := s.resolver.LineVariant(record.Line, record.Variant)
	if err != nil {
		return err
	}

	arrivals, dwells, err := s.relativeStopTimes(record, plan, variant.Region)
	if err != nil {
		return err
	}

	duty, err := s.resolver.Duty(record.DayType, record.DutyID)
	if err != nil {
		return &ReferenceError{
			Key:     fmt.Sprintf("duty %d (day type %d)", record.DutyID, record.DayType),
			Record:  record.Describe(),
			Message: "scheduled trip references an unknown duty",
		}
	}

	category := model.TripCategoryPassenger
	if record.Category != TripCategoryNormal {
		category = model.TripCategoryEmpty
	}

	dates := s.resolver.DatesForDayType(record.DayType)
	if len(dates) == 0 {
		log.Debug().
			Int64("trip", record.TripID).
			Int64("dayType", record.DayType).
			Msg("Day type occurs on no calendar date, trip never runs")
		return nil
	}

	for _, date := range dates {
		midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.location)
		start := midnight.Add(time.Duration(record.StartOffset) * time.Second)

		trip := &model.Trip{
			Category: category,
			Route:    plan.Route,
		}
		for position := range arrivals {
			trip.StopTimes = append(trip.StopTimes, &model.StopTime{
				Position:     position,
				ArrivalTime:  start.Add(time.Duration(arrivals[position]) * time.Second),
				DwellSeconds: int64(dwells[position] / time.Second),
				Station:      plan.Route.Stations[position].Station,
			})
		}

		// Raw boundary times; the reconciler resyncs them after repairing
		// duplicate timestamps.
		trip.DepartureTime = trip.StopTimes[0].ArrivalTime
		trip.ArrivalTime = trip.StopTimes[len(trip.StopTimes)-1].ArrivalTime

		if err := s.attachToRotation(trip, duty, date); err != nil {
			return err
		}
	}

	return nil
}

// relativeStopTimes walks the full variant point sequence, accumulating
// driving seconds between consecutive places and dwell at each kept stop.
// It returns the arrival offset (seconds from trip start) and dwell per
// route position.
func (s *Schedule) relativeStopTimes(record *ScheduledTripRecord, plan *routePlan, region int64) ([]int64, []time.Duration, error) {
	arrivals := make([]int64, len(plan.KeptIndex))
	dwells := make([]time.Duration, len(plan.KeptIndex))

	elapsed := int64(0)
	position := 0

	for i, point := range plan.Points {
		if i > 0 {
			from := plan.Points[i-1].Place
			to := point.Place
			if from != to {
				driving, err := s.resolver.Driving(region, record.Group, from, to)
				if err != nil {
					return nil, nil, err
				}
				elapsed += driving
			}
		}

		if position < len(plan.KeptIndex) && plan.KeptIndex[position] == i {
			arrivals[position] = elapsed
			dwell := s.resolver.Dwell(record.TripID, record.Group, point.Place)
			dwells[position] = dwell
			elapsed += int64(dwell / time.Second)
			position++
		}
	}

	return arrivals, dwells, nil
}

func (s *Schedule) attachToRotation(trip *model.Trip, duty *DutyRecord, date time.Time) error {
	vehicleType, err := s.network.VehicleTypeFor(duty.VehicleTypeNumber)
	if err != nil {
		return err
	}

	key := rotationKey{DutyID: duty.DutyID, Date: date}
	rotation, ok := s.rotationsByKey[key]
	if !ok {
		rotation = &model.Rotation{
			Name:        fmt.Sprintf("Duty %d on %s", duty.DutyID, date.Format("2006-01-02")),
			VehicleType: vehicleType,
		}
		s.rotationsByKey[key] = rotation
		s.rotations = append(s.rotations, rotation)
	} else if rotation.VehicleType != vehicleType {
		return &ConsistencyError{
			Message: fmt.Sprintf(
				"duty %d on %s is assigned conflicting vehicle types (%q vs %q)",
				duty.DutyID, date.Format("2006-01-02"),
				rotation.VehicleType.Name, vehicleType.Name),
		}
	}

	rotation.Trips = append(rotation.Trips, trip)
	return nil
}
