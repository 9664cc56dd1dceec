package vdv

import (
	"fmt"
	"strings"

	"github.com/mpm-tu-berlin/eflips-ingest/pkg/model"
	"github.com/mpm-tu-berlin/eflips-ingest/pkg/util"

	"github.com/rs/zerolog/log"
)

// routePlan pairs an assembled route with the full place sequence of the
// variant it came from. The schedule assembler needs the full sequence, not
// just the kept stations, because driving time accrues across waypoints too.
type routePlan struct {
	Route *model.Route

	// Points is the complete ordered variant membership, waypoints included.
	Points []VariantPointRecord

	// KeptIndex maps each RouteStation position to its index in Points.
	KeptIndex []int
}

// Network maps the raw place graph onto target stations, lines and routes.
// Routes with identical station/distance sequences collapse to one.
type Network struct {
	resolver *Resolver
	patterns *DegeneratePatterns

	stations       []*model.Station
	stationsByStop map[int64]*model.Station
	stationsByCode map[string]*model.Station
	stationOrdinal map[*model.Station]int

	lines       []*model.Line
	linesByName map[string]*model.Line

	routes       []*model.Route
	routesByHash map[string]*model.Route

	plans   map[variantKey]*routePlan
	skipped map[variantKey]string

	vehicleTypes       []*model.VehicleType
	vehicleTypesByNum  map[int64]*model.VehicleType
	placeholderVehicle *model.VehicleType
}

// BuildNetwork assembles stations, lines and deduplicated routes for every
// line variant of the active dataset version.
func BuildNetwork(resolver *Resolver, patterns *DegeneratePatterns) (*Network, error) {
	n := &Network{
		resolver:          resolver,
		patterns:          patterns,
		stationsByStop:    map[int64]*model.Station{},
		stationsByCode:    map[string]*model.Station{},
		stationOrdinal:    map[*model.Station]int{},
		linesByName:       map[string]*model.Line{},
		routesByHash:      map[string]*model.Route{},
		plans:             map[variantKey]*routePlan{},
		skipped:           map[variantKey]string{},
		vehicleTypesByNum: map[int64]*model.VehicleType{},
	}

	n.buildStations()
	n.buildVehicleTypes()

	for _, variant := range resolver.LineVariants() {
		if err := n.buildVariant(variant); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("stations", len(n.stations)).
		Int("lines", len(n.lines)).
		Int("routes", len(n.routes)).
		Int("skippedVariants", len(n.skipped)).
		Msg("Assembled network")

	return n, nil
}

// buildStations creates one station per stop-kind place. Stations for the
// other place kinds are synthesized on demand during variant assembly.
func (n *Network) buildStations() {
	for _, place := range n.resolver.Places() {
		if place.Kind != PlaceKindStop {
			continue
		}

		station := &model.Station{
			Name:      place.Name,
			NameShort: place.ShortName,
		}
		if place.HasLocation {
			station.Latitude = place.Latitude
			station.Longitude = place.Longitude
			station.Elevation = place.Elevation
		}

		n.addStation(station)
		n.stationsByStop[place.Number] = station
		if station.NameShort != "" {
			n.stationsByCode[station.NameShort] = station
		}
	}
}

func (n *Network) addStation(station *model.Station) {
	n.stationOrdinal[station] = len(n.stations)
	n.stations = append(n.stations, station)
}

func (n *Network) buildVehicleTypes() {
	for _, record := range n.resolver.VehicleTypes() {
		vehicleType := &model.VehicleType{
			Name:        record.Name,
			NameShort:   record.ShortName,
			Length:      record.Length,
			Consumption: record.Consumption,
		}
		n.vehicleTypes = append(n.vehicleTypes, vehicleType)
		n.vehicleTypesByNum[record.Number] = vehicleType
	}
}

// VehicleTypeFor resolves a duty's vehicle type reference. A nil reference
// falls back to the synthesized placeholder type.
func (n *Network) VehicleTypeFor(number *int64) (*model.VehicleType, error) {
	if number == nil {
		return n.placeholderVehicleType(), nil
	}
	vehicleType, ok := n.vehicleTypesByNum[*number]
	if !ok {
		return nil, &ReferenceError{
			Key:     fmt.Sprintf("vehicle type %d", *number),
			Message: "vehicle type not found",
		}
	}
	return vehicleType, nil
}

func (n *Network) placeholderVehicleType() *model.VehicleType {
	if n.placeholderVehicle == nil {
		n.placeholderVehicle = &model.VehicleType{
			Name:        "Placeholder vehicle type",
			NameShort:   "PLH",
			Placeholder: true,
		}
		n.vehicleTypes = append(n.vehicleTypes, n.placeholderVehicle)
	}
	return n.placeholderVehicle
}

// Plan returns the assembled route plan of a variant.
func (n *Network) Plan(line int64, variant string) (*routePlan, bool) {
	key := variantKey{Line: line, Variant: variant}
	plan, ok := n.plans[key]
	return plan, ok
}

// Skipped reports whether a variant was deliberately not assembled, and why.
func (n *Network) Skipped(line int64, variant string) (string, bool) {
	reason, ok := n.skipped[variantKey{Line: line, Variant: variant}]
	return reason, ok
}

func (n *Network) buildVariant(variant *LineVariantRecord) error {
	key := variantKey{Line: variant.Line, Variant: variant.Variant}

	points, err := n.resolver.VariantPoints(variant.Line, variant.Variant)
	if err != nil {
		return err
	}

	placeNumbers := make([]int64, len(points))
	for i, point := range points {
		placeNumbers[i] = point.Place.Number
	}
	if reason, degenerate := n.patterns.Match(placeNumbers); degenerate {
		log.Warn().
			Int64("line", variant.Line).
			Str("variant", variant.Variant).
			Str("reason", reason).
			Msg("Skipping degenerate line variant")
		n.skipped[key] = reason
		return nil
	}

	line := n.lineFor(variant)

	type keptStop struct {
		Station  *model.Station
		Distance float64
		Index    int
	}
	var kept []keptStop
	elapsed := 0.0

	for i, point := range points {
		if i > 0 {
			from := points[i-1].Place
			to := point.Place
			if from != to {
				length, err := n.resolver.SegmentLength(variant.Region, from, to)
				if err != nil {
					return err
				}
				elapsed += length
			}
		}

		if point.Place.Kind == PlaceKindWaypoint {
			continue
		}

		station, err := n.stationFor(point.Place)
		if err != nil {
			return err
		}

		last := len(kept) - 1
		isLastPoint := i == len(points)-1

		// Every distinct station is kept, even when the elapsed distance did
		// not advance: the monotonicity check below rejects such a route
		// instead of silently thinning it out.
		switch {
		case len(kept) == 0:
			kept = append(kept, keptStop{Station: station, Distance: elapsed, Index: i})
		case station != kept[last].Station:
			kept = append(kept, keptStop{Station: station, Distance: elapsed, Index: i})
		case isLastPoint:
			// A final entry/exit point collapsing onto the previous station
			// still extends the route to its full length.
			kept[last].Distance = elapsed
			kept[last].Index = i
		}
	}

	if len(kept) < 2 {
		log.Warn().
			Int64("line", variant.Line).
			Str("variant", variant.Variant).
			Msg("Skipping line variant with fewer than two distinct stops")
		n.skipped[key] = "fewer than two distinct stops"
		return nil
	}

	for i := 1; i < len(kept); i++ {
		if kept[i].Distance <= kept[i-1].Distance {
			return &ConsistencyError{
				Message: fmt.Sprintf(
					"line %d variant %s: elapsed distance does not increase between %q (%.0f m) and %q (%.0f m)",
					variant.Line, variant.Variant,
					kept[i-1].Station.Name, kept[i-1].Distance,
					kept[i].Station.Name, kept[i].Distance),
			}
		}
	}

	route := &model.Route{
		Line:             line,
		DepartureStation: kept[0].Station,
		ArrivalStation:   kept[len(kept)-1].Station,
		Name:             variant.Name,
		NameShort:        variant.ShortName,
		Distance:         kept[len(kept)-1].Distance,
	}
	if route.Name == "" {
		route.Name = fmt.Sprintf("%s: %s - %s", line.Name, kept[0].Station.Name, kept[len(kept)-1].Station.Name)
	}

	keptIndex := make([]int, len(kept))
	for i, stop := range kept {
		route.Stations = append(route.Stations, &model.RouteStation{
			Position:        i,
			ElapsedDistance: stop.Distance,
			Station:         stop.Station,
		})
		keptIndex[i] = stop.Index
	}

	// Two variants with identical station and distance sequences share one
	// persisted route.
	hash := n.routeFingerprint(route)
	if existing, ok := n.routesByHash[hash]; ok {
		route = existing
	} else {
		n.routesByHash[hash] = route
		n.routes = append(n.routes, route)
	}

	n.plans[key] = &routePlan{Route: route, Points: points, KeptIndex: keptIndex}
	return nil
}

func (n *Network) lineFor(variant *LineVariantRecord) *model.Line {
	name := variant.ShortName
	if name == "" {
		name = fmt.Sprintf("Line %d", variant.Line)
	}

	if line, ok := n.linesByName[name]; ok {
		return line
	}
	line := &model.Line{Name: name}
	n.linesByName[name] = line
	n.lines = append(n.lines, line)
	return line
}

func (n *Network) routeFingerprint(route *model.Route) string {
	var b strings.Builder
	for _, routeStation := range route.Stations {
		fmt.Fprintf(&b, "%d:%.1f;", n.stationOrdinal[routeStation.Station], routeStation.ElapsedDistance)
	}
	return b.String()
}

// stationFor maps one place to a target station following the kind-specific
// rules. Stops must already exist; depots and entry/exit points may have to
// be synthesized.
func (n *Network) stationFor(place PlaceRef) (*model.Station, error) {
	source, err := n.resolver.Place(place)
	if err != nil {
		return nil, err
	}

	switch place.Kind {
	case PlaceKindStop:
		station, ok := n.stationsByStop[place.Number]
		if !ok {
			return nil, &ReferenceError{
				Key:     place.String(),
				Message: "stop has no station entry",
			}
		}
		return station, nil

	case PlaceKindDepot:
		return n.depotStation(source), nil

	case PlaceKindEntry, PlaceKindExit:
		return n.mergedStation(source), nil

	default:
		return nil, &ReferenceError{
			Key:     place.String(),
			Message: fmt.Sprintf("place kind %d cannot appear on a route", place.Kind),
		}
	}
}

// depotStation finds the station behind a depot point via its normalized
// short-name prefix. Depot point codes append a digit to the three-letter
// depot code.
func (n *Network) depotStation(place *Place) *model.Station {
	code := util.TrimString(place.ShortName, 4)
	code = strings.TrimRight(code, "01")
	code = util.TrimString(code, 3)

	if station, ok := n.stationsByCode[code]; ok {
		return station
	}
	return n.synthesizeStation(place, code, place.Name)
}

// mergedStation collapses a matched entry/exit point pair onto one station
// by stripping the trailing marker from both names.
func (n *Network) mergedStation(place *Place) *model.Station {
	marker := "E"
	word := "Einsetzen"
	if place.Kind == PlaceKindExit {
		marker = "A"
		word = "Aussetzen"
	}

	code := strings.TrimSuffix(place.ShortName, marker)
	name := strings.TrimSpace(strings.TrimSuffix(place.Name, word))

	if station, ok := n.stationsByCode[code]; ok {
		return station
	}
	return n.synthesizeStation(place, code, name)
}

func (n *Network) synthesizeStation(place *Place, code, name string) *model.Station {
	log.Warn().
		Str("place", place.Ref().String()).
		Str("code", code).
		Str("name", name).
		Msg("No station found for place, synthesizing one")

	station := &model.Station{
		Name:        name,
		NameShort:   code,
		Synthesized: true,
	}
	if place.HasLocation {
		station.Latitude = place.Latitude
		station.Longitude = place.Longitude
		station.Elevation = place.Elevation
	}

	n.addStation(station)
	if code != "" {
		n.stationsByCode[code] = station
	}
	return station
}

// Stations, Lines, Routes and VehicleTypes hand the assembled entities to
// the pending change-set.
func (n *Network) Stations() []*model.Station { return n.stations }

func (n *Network) Lines() []*model.Line { return n.lines }

func (n *Network) Routes() []*model.Route { return n.routes }

func (n *Network) VehicleTypes() []*model.VehicleType { return n.vehicleTypes }
