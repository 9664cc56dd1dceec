package database

import (
	"context"
	"fmt"

	"github.com/mpm-tu-berlin/eflips-ingest/pkg/model"

	"gorm.io/gorm"
)

// Store persists an assembled ImportSet. CommitScenario runs as a single
// transaction so an import either lands completely or not at all.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CommitScenario(ctx context.Context, set *model.ImportSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(set.Scenario).Error; err != nil {
			return fmt.Errorf("create scenario: %w", err)
		}
		scenarioID := set.Scenario.ID

		for _, vehicleType := range set.VehicleTypes {
			vehicleType.ScenarioID = scenarioID
		}
		if len(set.VehicleTypes) > 0 {
			if err := tx.Create(set.VehicleTypes).Error; err != nil {
				return fmt.Errorf("create vehicle types: %w", err)
			}
		}

		for _, station := range set.Stations {
			station.ScenarioID = scenarioID
		}
		if len(set.Stations) > 0 {
			if err := tx.Create(set.Stations).Error; err != nil {
				return fmt.Errorf("create stations: %w", err)
			}
		}

		for _, line := range set.Lines {
			line.ScenarioID = scenarioID
		}
		if len(set.Lines) > 0 {
			if err := tx.Create(set.Lines).Error; err != nil {
				return fmt.Errorf("create lines: %w", err)
			}
		}

		for _, route := range set.Routes {
			route.ScenarioID = scenarioID
			route.LineID = route.Line.ID
			route.DepartureStationID = route.DepartureStation.ID
			route.ArrivalStationID = route.ArrivalStation.ID
			for _, routeStation := range route.Stations {
				routeStation.ScenarioID = scenarioID
				routeStation.StationID = routeStation.Station.ID
			}
		}
		if len(set.Routes) > 0 {
			if err := tx.Create(set.Routes).Error; err != nil {
				return fmt.Errorf("create routes: %w", err)
			}
		}

		for _, rotation := range set.Rotations {
			rotation.ScenarioID = scenarioID
			rotation.VehicleTypeID = rotation.VehicleType.ID
			for _, trip := range rotation.Trips {
				trip.ScenarioID = scenarioID
				trip.RouteID = trip.Route.ID
				for _, stopTime := range trip.StopTimes {
					stopTime.ScenarioID = scenarioID
					stopTime.StationID = stopTime.Station.ID
				}
			}
		}
		if len(set.Rotations) > 0 {
			if err := tx.Create(set.Rotations).Error; err != nil {
				return fmt.Errorf("create rotations: %w", err)
			}
		}

		return nil
	})
}

// DeleteEmptyRotations removes rotations that ended up with no trips. This
// runs after the commit, as every scheduled trip referencing a duty may turn
// out not to occur on any calendar date.
func (s *Store) DeleteEmptyRotations(ctx context.Context, scenarioID uint) (int64, error) {
	tripRotations := s.db.Model(&model.Trip{}).
		Select("rotation_id").
		Where("scenario_id = ?", scenarioID)

	result := s.db.WithContext(ctx).
		Where("scenario_id = ? AND id NOT IN (?)", scenarioID, tripRotations).
		Delete(&model.Rotation{})

	return result.RowsAffected, result.Error
}
