package vdv

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PlaceKind is the functional type of a network node (ONR_TYP_NR). Only the
// kinds below take part in route assembly.
type PlaceKind int64

const (
	PlaceKindStop     PlaceKind = 1
	PlaceKindDepot    PlaceKind = 2
	PlaceKindWaypoint PlaceKind = 5
	PlaceKindEntry    PlaceKind = 6
	PlaceKindExit     PlaceKind = 7
)

// PlaceRef identifies a place within one dataset version.
type PlaceRef struct {
	Kind   PlaceKind
	Number int64
}

func (r PlaceRef) String() string {
	return fmt.Sprintf("place(%d/%d)", r.Kind, r.Number)
}

type VersionValidity struct {
	ValidFrom time.Time
	Version   int64
}

type CalendarDay struct {
	Version int64
	Date    time.Time
	DayType int64
}

type Place struct {
	Version   int64
	Kind      PlaceKind
	Number    int64
	Name      string
	ShortName string

	Latitude    float64
	Longitude   float64
	Elevation   float64
	HasLocation bool
}

func (p *Place) Ref() PlaceRef {
	return PlaceRef{Kind: p.Kind, Number: p.Number}
}

type VehicleTypeRecord struct {
	Version int64
	Number  int64

	Name        string
	ShortName   string
	Length      float64 // metres
	Consumption float64 // Wh/km
}

type SegmentRecord struct {
	Version int64
	Region  int64
	From    PlaceRef
	To      PlaceRef
	Length  float64 // metres
}

type TimingFieldRecord struct {
	Version int64
	Region  int64
	Group   int64
	From    PlaceRef
	To      PlaceRef
	Driving int64 // seconds
}

type GroupDwellRecord struct {
	Version int64
	Group   int64
	Place   PlaceRef
	Dwell   int64 // seconds
}

type TripDwellRecord struct {
	Version int64
	TripID  int64
	Place   PlaceRef
	Dwell   int64 // seconds
}

type VariantPointRecord struct {
	Version  int64
	Sequence int64
	Line     int64
	Variant  string
	Place    PlaceRef
}

type LineVariantRecord struct {
	Version   int64
	Region    int64
	Line      int64
	Variant   string
	ShortName string
	Name      string
}

// TripCategoryNormal is the FAHRTART_NR of a regular passenger trip; all
// other categories (depot exit/entry, positioning) become empty trips.
const TripCategoryNormal int64 = 1

type ScheduledTripRecord struct {
	Version     int64
	TripID      int64
	StartOffset int64 // seconds after local midnight
	Line        int64
	DayType     int64
	Group       int64
	Variant     string
	DutyID      int64
	Category    int64
}

func (r *ScheduledTripRecord) Describe() string {
	return fmt.Sprintf("scheduled trip %d (line %d variant %s)", r.TripID, r.Line, r.Variant)
}

type DutyRecord struct {
	Version int64
	DayType int64
	DutyID  int64
	Start   PlaceRef
	End     PlaceRef

	// VehicleTypeNumber may be absent; such duties get the synthesized
	// placeholder vehicle type.
	VehicleTypeNumber *int64
}

// RecordSet holds every decoded record of one dataset, still covering all
// dataset versions. The resolver narrows it down to the active version.
type RecordSet struct {
	Versions       []VersionValidity
	Calendar       []CalendarDay
	Places         []Place
	VehicleTypes   []VehicleTypeRecord
	Segments       []SegmentRecord
	TimingFields   []TimingFieldRecord
	GroupDwells    []GroupDwellRecord
	TripDwells     []TripDwellRecord
	VariantPoints  []VariantPointRecord
	LineVariants   []LineVariantRecord
	ScheduledTrips []ScheduledTripRecord
	Duties         []DutyRecord
}

// DecodeTables converts the raw rows of every consumed table into typed
// records. Any conversion failure aborts the whole table.
func DecodeTables(tables map[TableName]*Table) (*RecordSet, error) {
	recordSet := &RecordSet{}

	decoders := map[TableName]func(*Table, *RecordSet) error{
		TableBasisVerGueltigkeit: decodeVersions,
		TableFirmenkalender:      decodeCalendar,
		TableRecOrt:              decodePlaces,
		TableMengeFzgTyp:         decodeVehicleTypes,
		TableRecSel:              decodeSegments,
		TableSelFztFeld:          decodeTimingFields,
		TableOrtHztf:             decodeGroupDwells,
		TableRecFrtHzt:           decodeTripDwells,
		TableLidVerlauf:          decodeVariantPoints,
		TableRecLid:              decodeLineVariants,
		TableRecFrt:              decodeScheduledTrips,
		TableRecUmlauf:           decodeDuties,
	}

	for name, table := range tables {
		decode, consumed := decoders[name]
		if !consumed {
			log.Debug().Str("table", string(name)).Msg("Table is not consumed, skipping")
			continue
		}
		if err := decode(table, recordSet); err != nil {
			return nil, err
		}
	}

	return recordSet, nil
}

// row gives named access to the decoded cells of one record.
type row struct {
	table *Table
	cells map[string]Cell
}

func (t *Table) eachDecodedRow(fn func(r row) error) error {
	return t.EachRow(func(fields []string) error {
		cells := make(map[string]Cell, len(fields))
		for i, field := range fields {
			cell, err := DecodeCell(t.Columns[i], field)
			if err != nil {
				return &ParseError{
					File:    t.File,
					Message: fmt.Sprintf("%v in record %v", err, fields),
				}
			}
			cells[t.Columns[i].Name] = cell
		}
		return fn(row{table: t, cells: cells})
	})
}

func (r row) requireInt(name string) (int64, error) {
	cell := r.cells[name]
	if cell.Kind != CellInt {
		return 0, &ParseError{
			File:    r.table.File,
			Message: fmt.Sprintf("column %s is empty or not an integer", name),
		}
	}
	return cell.Int, nil
}

func (r row) optionalInt(name string) (int64, bool) {
	cell := r.cells[name]
	if cell.Kind != CellInt {
		return 0, false
	}
	return cell.Int, true
}

func (r row) optionalText(name string) string {
	cell := r.cells[name]
	if cell.Kind != CellText {
		return ""
	}
	return cell.Text
}

func (r row) requireText(name string) (string, error) {
	cell := r.cells[name]
	if cell.Kind != CellText {
		return "", &ParseError{
			File:    r.table.File,
			Message: fmt.Sprintf("column %s is empty", name),
		}
	}
	return cell.Text, nil
}

// optionalNumber accepts both integer and decimal cells, as exports differ
// in how they declare measure columns.
func (r row) optionalNumber(name string) (float64, bool) {
	cell := r.cells[name]
	switch cell.Kind {
	case CellInt:
		return float64(cell.Int), true
	case CellDecimal:
		return cell.Decimal, true
	}
	return 0, false
}

func (r row) requireNumber(name string) (float64, error) {
	value, ok := r.optionalNumber(name)
	if !ok {
		return 0, &ParseError{
			File:    r.table.File,
			Message: fmt.Sprintf("column %s is empty or not numeric", name),
		}
	}
	return value, nil
}

func (r row) requireDate(name string) (time.Time, error) {
	value, err := r.requireInt(name)
	if err != nil {
		return time.Time{}, err
	}
	date, err := parseVDVDate(value)
	if err != nil {
		return time.Time{}, &ParseError{File: r.table.File, Message: err.Error()}
	}
	return date, nil
}

func (r row) requirePlaceRef(kindColumn, numberColumn string) (PlaceRef, error) {
	kind, err := r.requireInt(kindColumn)
	if err != nil {
		return PlaceRef{}, err
	}
	number, err := r.requireInt(numberColumn)
	if err != nil {
		return PlaceRef{}, err
	}
	return PlaceRef{Kind: PlaceKind(kind), Number: number}, nil
}

// parseVDVDate converts a yyyymmdd integer to a civil date.
func parseVDVDate(value int64) (time.Time, error) {
	year := int(value / 10000)
	month := int(value / 100 % 100)
	day := int(value % 100)

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, fmt.Errorf("%d is not a valid yyyymmdd date", value)
	}
	return date, nil
}

func decodeVersions(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		validFrom, err := r.requireDate("VER_GUELTIGKEIT")
		if err != nil {
			return err
		}
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		rs.Versions = append(rs.Versions, VersionValidity{ValidFrom: validFrom, Version: version})
		return nil
	})
}

func decodeCalendar(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		date, err := r.requireDate("BETRIEBSTAG")
		if err != nil {
			return err
		}
		dayType, err := r.requireInt("TAGESART_NR")
		if err != nil {
			return err
		}
		rs.Calendar = append(rs.Calendar, CalendarDay{Version: version, Date: date, DayType: dayType})
		return nil
	})
}

func decodePlaces(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		ref, err := r.requirePlaceRef("ONR_TYP_NR", "ORT_NR")
		if err != nil {
			return err
		}
		name, err := r.requireText("ORT_NAME")
		if err != nil {
			return err
		}

		place := Place{
			Version:   version,
			Kind:      ref.Kind,
			Number:    ref.Number,
			Name:      name,
			ShortName: r.optionalText("ORT_KUERZEL"),
		}

		// Coordinates are optional in REC_ORT; geocoding of places without
		// them is out of scope here.
		if latitude, ok := r.optionalNumber("ORT_POS_BREITE"); ok {
			if longitude, ok := r.optionalNumber("ORT_POS_LAENGE"); ok {
				place.Latitude = latitude
				place.Longitude = longitude
				place.HasLocation = true
			}
		}
		if elevation, ok := r.optionalNumber("ORT_POS_HOEHE"); ok {
			place.Elevation = elevation
		}

		rs.Places = append(rs.Places, place)
		return nil
	})
}

func decodeVehicleTypes(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		number, err := r.requireInt("FZG_TYP_NR")
		if err != nil {
			return err
		}

		record := VehicleTypeRecord{
			Version:   version,
			Number:    number,
			Name:      r.optionalText("FZG_TYP_TEXT"),
			ShortName: r.optionalText("STR_FZG_TYP"),
		}
		if record.Name == "" {
			record.Name = fmt.Sprintf("Vehicle type %d", number)
		}
		if length, ok := r.optionalNumber("FZG_LAENGE"); ok {
			record.Length = length
		}
		if consumption, ok := r.optionalNumber("VERBRAUCH_DIST_ANZ"); ok {
			record.Consumption = consumption
		}

		rs.VehicleTypes = append(rs.VehicleTypes, record)
		return nil
	})
}

func decodeSegments(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		region, err := r.requireInt("BEREICH_NR")
		if err != nil {
			return err
		}
		from, err := r.requirePlaceRef("ONR_TYP_NR", "ORT_NR")
		if err != nil {
			return err
		}
		to, err := r.requirePlaceRef("SEL_ZIEL_TYP", "SEL_ZIEL")
		if err != nil {
			return err
		}
		length, err := r.requireNumber("SEL_LAENGE")
		if err != nil {
			return err
		}

		rs.Segments = append(rs.Segments, SegmentRecord{
			Version: version,
			Region:  region,
			From:    from,
			To:      to,
			Length:  length,
		})
		return nil
	})
}

func decodeTimingFields(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		region, err := r.requireInt("BEREICH_NR")
		if err != nil {
			return err
		}
		group, err := r.requireInt("FGR_NR")
		if err != nil {
			return err
		}
		from, err := r.requirePlaceRef("ONR_TYP_NR", "ORT_NR")
		if err != nil {
			return err
		}
		to, err := r.requirePlaceRef("SEL_ZIEL_TYP", "SEL_ZIEL")
		if err != nil {
			return err
		}
		driving, err := r.requireInt("SEL_FZT")
		if err != nil {
			return err
		}

		rs.TimingFields = append(rs.TimingFields, TimingFieldRecord{
			Version: version,
			Region:  region,
			Group:   group,
			From:    from,
			To:      to,
			Driving: driving,
		})
		return nil
	})
}

func decodeGroupDwells(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		group, err := r.requireInt("FGR_NR")
		if err != nil {
			return err
		}
		place, err := r.requirePlaceRef("ONR_TYP_NR", "ORT_NR")
		if err != nil {
			return err
		}
		dwell, err := r.requireInt("HP_HZT")
		if err != nil {
			return err
		}

		rs.GroupDwells = append(rs.GroupDwells, GroupDwellRecord{
			Version: version,
			Group:   group,
			Place:   place,
			Dwell:   dwell,
		})
		return nil
	})
}

func decodeTripDwells(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		tripID, err := r.requireInt("FRT_FID")
		if err != nil {
			return err
		}
		place, err := r.requirePlaceRef("ONR_TYP_NR", "ORT_NR")
		if err != nil {
			return err
		}
		dwell, err := r.requireInt("FRT_HZT_ZEIT")
		if err != nil {
			return err
		}

		rs.TripDwells = append(rs.TripDwells, TripDwellRecord{
			Version: version,
			TripID:  tripID,
			Place:   place,
			Dwell:   dwell,
		})
		return nil
	})
}

func decodeVariantPoints(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		sequence, err := r.requireInt("LI_LFD_NR")
		if err != nil {
			return err
		}
		line, err := r.requireInt("LI_NR")
		if err != nil {
			return err
		}
		variant, err := r.requireText("STR_LI_VAR")
		if err != nil {
			return err
		}
		place, err := r.requirePlaceRef("ONR_TYP_NR", "ORT_NR")
		if err != nil {
			return err
		}

		rs.VariantPoints = append(rs.VariantPoints, VariantPointRecord{
			Version:  version,
			Sequence: sequence,
			Line:     line,
			Variant:  variant,
			Place:    place,
		})
		return nil
	})
}

func decodeLineVariants(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		line, err := r.requireInt("LI_NR")
		if err != nil {
			return err
		}
		variant, err := r.requireText("STR_LI_VAR")
		if err != nil {
			return err
		}

		record := LineVariantRecord{
			Version:   version,
			Line:      line,
			Variant:   variant,
			ShortName: r.optionalText("LI_KUERZEL"),
			Name:      r.optionalText("LIDNAME"),
		}
		if region, ok := r.optionalInt("BEREICH_NR"); ok {
			record.Region = region
		}

		rs.LineVariants = append(rs.LineVariants, record)
		return nil
	})
}

func decodeScheduledTrips(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		tripID, err := r.requireInt("FRT_FID")
		if err != nil {
			return err
		}
		start, err := r.requireInt("FRT_START")
		if err != nil {
			return err
		}
		line, err := r.requireInt("LI_NR")
		if err != nil {
			return err
		}
		dayType, err := r.requireInt("TAGESART_NR")
		if err != nil {
			return err
		}
		group, err := r.requireInt("FGR_NR")
		if err != nil {
			return err
		}
		variant, err := r.requireText("STR_LI_VAR")
		if err != nil {
			return err
		}
		dutyID, err := r.requireInt("UM_UID")
		if err != nil {
			return err
		}

		record := ScheduledTripRecord{
			Version:     version,
			TripID:      tripID,
			StartOffset: start,
			Line:        line,
			DayType:     dayType,
			Group:       group,
			Variant:     variant,
			DutyID:      dutyID,
			Category:    TripCategoryNormal,
		}
		if category, ok := r.optionalInt("FAHRTART_NR"); ok {
			record.Category = category
		}

		rs.ScheduledTrips = append(rs.ScheduledTrips, record)
		return nil
	})
}

func decodeDuties(t *Table, rs *RecordSet) error {
	return t.eachDecodedRow(func(r row) error {
		version, err := r.requireInt("BASIS_VERSION")
		if err != nil {
			return err
		}
		dayType, err := r.requireInt("TAGESART_NR")
		if err != nil {
			return err
		}
		dutyID, err := r.requireInt("UM_UID")
		if err != nil {
			return err
		}
		start, err := r.requirePlaceRef("ANF_ONR_TYP", "ANF_ORT")
		if err != nil {
			return err
		}
		end, err := r.requirePlaceRef("END_ONR_TYP", "END_ORT")
		if err != nil {
			return err
		}

		record := DutyRecord{
			Version: version,
			DayType: dayType,
			DutyID:  dutyID,
			Start:   start,
			End:     end,
		}
		if vehicleType, ok := r.optionalInt("FZG_TYP_NR"); ok {
			record.VehicleTypeNumber = &vehicleType
		}

		rs.Duties = append(rs.Duties, record)
		return nil
	})
}
