package vdv

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

type segmentKey struct {
	Region int64
	From   PlaceRef
	To     PlaceRef
}

type timingKey struct {
	Region int64
	Group  int64
	From   PlaceRef
	To     PlaceRef
}

type groupDwellKey struct {
	Group int64
	Place PlaceRef
}

type tripDwellKey struct {
	TripID int64
	Place  PlaceRef
}

type variantKey struct {
	Line    int64
	Variant string
}

type dutyKey struct {
	DayType int64
	DutyID  int64
}

// Resolver indexes the records of the active dataset version by their
// composite keys. It is built once per import and passed into the assembly
// stages, which only ever read from it.
type Resolver struct {
	Version int64

	places         map[PlaceRef]*Place
	orderedPlaces  []*Place
	vehicleTypes   map[int64]*VehicleTypeRecord
	segments       map[segmentKey]float64
	timingFields   map[timingKey]int64
	groupDwells    map[groupDwellKey]int64
	tripDwells     map[tripDwellKey]int64
	variantPoints  map[variantKey][]VariantPointRecord
	lineVariants   map[variantKey]*LineVariantRecord
	duties         map[dutyKey]*DutyRecord
	calendar       map[int64][]time.Time
	scheduledTrips []ScheduledTripRecord
}

// activeVersion picks the latest dataset version whose validity start is not
// after the reference date.
func activeVersion(versions []VersionValidity, now time.Time) (int64, error) {
	var best *VersionValidity
	for i := range versions {
		v := &versions[i]
		if v.ValidFrom.After(now) {
			continue
		}
		if best == nil || v.ValidFrom.After(best.ValidFrom) ||
			(v.ValidFrom.Equal(best.ValidFrom) && v.Version > best.Version) {
			best = v
		}
	}
	if best == nil {
		return 0, &ConsistencyError{Message: "no dataset version is valid at the current date"}
	}
	return best.Version, nil
}

// NewResolver selects the active dataset version and indexes every record
// belonging to it.
func NewResolver(rs *RecordSet, now time.Time) (*Resolver, error) {
	version, err := activeVersion(rs.Versions, now)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		Version:       version,
		places:        map[PlaceRef]*Place{},
		vehicleTypes:  map[int64]*VehicleTypeRecord{},
		segments:      map[segmentKey]float64{},
		timingFields:  map[timingKey]int64{},
		groupDwells:   map[groupDwellKey]int64{},
		tripDwells:    map[tripDwellKey]int64{},
		variantPoints: map[variantKey][]VariantPointRecord{},
		lineVariants:  map[variantKey]*LineVariantRecord{},
		duties:        map[dutyKey]*DutyRecord{},
		calendar:      map[int64][]time.Time{},
	}

	for i := range rs.Places {
		place := &rs.Places[i]
		if place.Version != version {
			continue
		}
		r.places[place.Ref()] = place
		r.orderedPlaces = append(r.orderedPlaces, place)
	}

	for i := range rs.VehicleTypes {
		vt := &rs.VehicleTypes[i]
		if vt.Version != version {
			continue
		}
		r.vehicleTypes[vt.Number] = vt
	}

	for _, segment := range rs.Segments {
		if segment.Version != version {
			continue
		}
		r.segments[segmentKey{Region: segment.Region, From: segment.From, To: segment.To}] = segment.Length
	}

	for _, field := range rs.TimingFields {
		if field.Version != version {
			continue
		}
		key := timingKey{Region: field.Region, Group: field.Group, From: field.From, To: field.To}
		r.timingFields[key] = field.Driving
	}

	for _, dwell := range rs.GroupDwells {
		if dwell.Version != version {
			continue
		}
		r.groupDwells[groupDwellKey{Group: dwell.Group, Place: dwell.Place}] = dwell.Dwell
	}

	for _, dwell := range rs.TripDwells {
		if dwell.Version != version {
			continue
		}
		r.tripDwells[tripDwellKey{TripID: dwell.TripID, Place: dwell.Place}] = dwell.Dwell
	}

	for _, point := range rs.VariantPoints {
		if point.Version != version {
			continue
		}
		key := variantKey{Line: point.Line, Variant: point.Variant}
		r.variantPoints[key] = append(r.variantPoints[key], point)
	}
	for key := range r.variantPoints {
		points := r.variantPoints[key]
		sort.Slice(points, func(i, j int) bool { return points[i].Sequence < points[j].Sequence })
	}

	for i := range rs.LineVariants {
		variant := &rs.LineVariants[i]
		if variant.Version != version {
			continue
		}
		r.lineVariants[variantKey{Line: variant.Line, Variant: variant.Variant}] = variant
	}

	for i := range rs.Duties {
		duty := &rs.Duties[i]
		if duty.Version != version {
			continue
		}
		r.duties[dutyKey{DayType: duty.DayType, DutyID: duty.DutyID}] = duty
	}

	for _, day := range rs.Calendar {
		if day.Version != version {
			continue
		}
		r.calendar[day.DayType] = append(r.calendar[day.DayType], day.Date)
	}
	for dayType := range r.calendar {
		dates := r.calendar[dayType]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	}

	for _, trip := range rs.ScheduledTrips {
		if trip.Version != version {
			continue
		}
		r.scheduledTrips = append(r.scheduledTrips, trip)
	}

	log.Info().
		Int64("version", version).
		Int("places", len(r.places)).
		Int("trips", len(r.scheduledTrips)).
		Msg("Indexed active dataset version")

	return r, nil
}

func (r *Resolver) Place(ref PlaceRef) (*Place, error) {
	place, ok := r.places[ref]
	if !ok {
		return nil, &ReferenceError{Key: ref.String(), Message: "place not found"}
	}
	return place, nil
}

// Places returns every place of the active version in input order.
func (r *Resolver) Places() []*Place {
	return r.orderedPlaces
}

func (r *Resolver) VehicleType(number int64) (*VehicleTypeRecord, error) {
	vt, ok := r.vehicleTypes[number]
	if !ok {
		return nil, &ReferenceError{Key: fmt.Sprintf("vehicle type %d", number), Message: "vehicle type not found"}
	}
	return vt, nil
}

func (r *Resolver) VehicleTypes() []*VehicleTypeRecord {
	numbers := maps.Keys(r.vehicleTypes)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	types := make([]*VehicleTypeRecord, 0, len(numbers))
	for _, number := range numbers {
		types = append(types, r.vehicleTypes[number])
	}
	return types
}

// SegmentLength resolves the physical length of the edge from→to. An exact
// region match wins; otherwise every region's candidate is considered, and
// they must all agree.
func (r *Resolver) SegmentLength(region int64, from, to PlaceRef) (float64, error) {
	if length, ok := r.segments[segmentKey{Region: region, From: from, To: to}]; ok {
		return length, nil
	}

	var candidates []float64
	for key, length := range r.segments {
		if key.From == from && key.To == to {
			candidates = append(candidates, length)
		}
	}
	return agreeFloat(candidates, fmt.Sprintf("segment %v->%v (region %d)", from, to, region), "segment length")
}

// Driving resolves the driving duration of from→to under a timing group,
// with the same region relaxation as SegmentLength.
func (r *Resolver) Driving(region, group int64, from, to PlaceRef) (int64, error) {
	if driving, ok := r.timingFields[timingKey{Region: region, Group: group, From: from, To: to}]; ok {
		return driving, nil
	}

	var candidates []int64
	for key, driving := range r.timingFields {
		if key.Group == group && key.From == from && key.To == to {
			candidates = append(candidates, driving)
		}
	}
	return agreeInt(candidates, fmt.Sprintf("timing field %v->%v (group %d, region %d)", from, to, group, region), "driving duration")
}

// Dwell resolves the dwell duration at a place. Trip-specific dwell wins,
// then the timing-group dwell, then zero. Only one source is ever populated
// per import, the schema validator enforces that.
func (r *Resolver) Dwell(tripID, group int64, place PlaceRef) time.Duration {
	if dwell, ok := r.tripDwells[tripDwellKey{TripID: tripID, Place: place}]; ok {
		return time.Duration(dwell) * time.Second
	}
	if dwell, ok := r.groupDwells[groupDwellKey{Group: group, Place: place}]; ok {
		return time.Duration(dwell) * time.Second
	}
	return 0
}

// VariantPoints returns the ordered place membership of one line variant.
func (r *Resolver) VariantPoints(line int64, variant string) ([]VariantPointRecord, error) {
	points, ok := r.variantPoints[variantKey{Line: line, Variant: variant}]
	if !ok {
		return nil, &ReferenceError{
			Key:     fmt.Sprintf("line %d variant %s", line, variant),
			Message: "line variant has no route points",
		}
	}
	return points, nil
}

func (r *Resolver) LineVariant(line int64, variant string) (*LineVariantRecord, error) {
	record, ok := r.lineVariants[variantKey{Line: line, Variant: variant}]
	if !ok {
		return nil, &ReferenceError{
			Key:     fmt.Sprintf("line %d variant %s", line, variant),
			Message: "line variant not found",
		}
	}
	return record, nil
}

func (r *Resolver) LineVariants() []*LineVariantRecord {
	keys := maps.Keys(r.lineVariants)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Line != keys[j].Line {
			return keys[i].Line < keys[j].Line
		}
		return keys[i].Variant < keys[j].Variant
	})

	variants := make([]*LineVariantRecord, 0, len(keys))
	for _, key := range keys {
		variants = append(variants, r.lineVariants[key])
	}
	return variants
}

func (r *Resolver) Duty(dayType, dutyID int64) (*DutyRecord, error) {
	duty, ok := r.duties[dutyKey{DayType: dayType, DutyID: dutyID}]
	if !ok {
		return nil, &ReferenceError{
			Key:     fmt.Sprintf("duty %d (day type %d)", dutyID, dayType),
			Message: "duty not found",
		}
	}
	return duty, nil
}

// DatesForDayType returns every concrete operating date of a day type,
// ascending. A day type with no calendar entries yields an empty slice, not
// an error: the corresponding trips simply never occur.
func (r *Resolver) DatesForDayType(dayType int64) []time.Time {
	return r.calendar[dayType]
}

func (r *Resolver) ScheduledTrips() []ScheduledTripRecord {
	return r.scheduledTrips
}

func agreeFloat(candidates []float64, key, what string) (float64, error) {
	if len(candidates) == 0 {
		return 0, &ReferenceError{Key: key, Message: what + " not found"}
	}
	for _, candidate := range candidates[1:] {
		if candidate != candidates[0] {
			return 0, &ReferenceError{
				Key:     key,
				Message: fmt.Sprintf("%s is ambiguous, candidates disagree (%v vs %v)", what, candidates[0], candidate),
			}
		}
	}
	return candidates[0], nil
}

func agreeInt(candidates []int64, key, what string) (int64, error) {
	if len(candidates) == 0 {
		return 0, &ReferenceError{Key: key, Message: what + " not found"}
	}
	for _, candidate := range candidates[1:] {
		if candidate != candidates[0] {
			return 0, &ReferenceError{
				Key:     key,
				Message: fmt.Sprintf("%s is ambiguous, candidates disagree (%d vs %d)", what, candidates[0], candidate),
			}
		}
	}
	return candidates[0], nil
}
