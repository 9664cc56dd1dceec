package vdv

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type TableName string

const (
	TableBasisVerGueltigkeit TableName = "BASIS_VER_GUELTIGKEIT"
	TableFirmenkalender      TableName = "FIRMENKALENDER"
	TableRecOrt              TableName = "REC_ORT"
	TableMengeFzgTyp         TableName = "MENGE_FZG_TYP"
	TableRecSel              TableName = "REC_SEL"
	TableSelFztFeld          TableName = "SEL_FZT_FELD"
	TableLidVerlauf          TableName = "LID_VERLAUF"
	TableRecLid              TableName = "REC_LID"
	TableRecFrt              TableName = "REC_FRT"
	TableRecUmlauf           TableName = "REC_UMLAUF"

	// Exactly one of the two dwell-time tables must be present per dataset.
	TableOrtHztf   TableName = "ORT_HZTF"
	TableRecFrtHzt TableName = "REC_FRT_HZT"
)

// requiredTables are the tables every dataset must provide, besides exactly
// one of the dwell-time pair.
var requiredTables = []TableName{
	TableBasisVerGueltigkeit,
	TableFirmenkalender,
	TableRecOrt,
	TableMengeFzgTyp,
	TableRecSel,
	TableSelFztFeld,
	TableLidVerlauf,
	TableRecLid,
	TableRecFrt,
	TableRecUmlauf,
}

// knownTableNames also lists tables a VDV 452 export commonly ships but the
// importer does not consume. Their files pass the header check and are then
// skipped, while a genuinely unknown name fails the file.
var knownTableNames = map[TableName]bool{
	TableBasisVerGueltigkeit: true,
	TableFirmenkalender:      true,
	TableRecOrt:              true,
	TableMengeFzgTyp:         true,
	TableRecSel:              true,
	TableSelFztFeld:          true,
	TableLidVerlauf:          true,
	TableRecLid:              true,
	TableRecFrt:              true,
	TableRecUmlauf:           true,
	TableOrtHztf:             true,
	TableRecFrtHzt:           true,

	"MENGE_BASIS_VERSIONEN": true,
	"MENGE_TAGESART":        true,
	"MENGE_ONR_TYP":         true,
	"MENGE_ORT_TYP":         true,
	"MENGE_BEREICH":         true,
	"MENGE_FGR":             true,
	"MENGE_FAHRTART":        true,
	"REC_HP":                true,
	"REC_OM":                true,
	"REC_ANR":               true,
	"REC_ZNR":               true,
	"REC_SEL_ZP":            true,
	"REC_UEB":               true,
	"UEB_FZT":               true,
	"FAHRZEUG":              true,
	"ZUL_VERKEHRSBETRIEB":   true,
}

func lookupTableName(name string) (TableName, bool) {
	tableName := TableName(name)
	return tableName, knownTableNames[tableName]
}

// ScanTables parses the headers of every .x10/.X10 file in the directory on
// a bounded worker pool. Files failing their header check are collected and
// returned alongside the table map; whether a bad file sinks the import or
// is merely skipped is the importer's decision, not made here.
func ScanTables(directory string) (map[TableName]*Table, []*ParseError, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".x10") {
			paths = append(paths, filepath.Join(directory, entry.Name()))
		}
	}
	sort.Strings(paths)

	var mu sync.Mutex
	var tables []*Table
	var failures []*ParseError

	// Header scanning is a pure function per file, so it parallelises
	// safely. Everything after this runs single-threaded per import.
	p := pool.New().WithMaxGoroutines(8)
	for _, path := range paths {
		path := path
		p.Go(func() {
			table, err := ReadTableHeader(path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					parseErr = &ParseError{File: path, Message: err.Error()}
				}
				failures = append(failures, parseErr)
				return
			}
			tables = append(tables, table)
		})
	}
	p.Wait()

	// Failures come back in path order regardless of scan order.
	sort.Slice(failures, func(i, j int) bool { return failures[i].File < failures[j].File })

	byName := map[TableName]*Table{}
	var duplicates []TableName
	for _, table := range tables {
		if _, exists := byName[table.Name]; exists {
			duplicates = append(duplicates, table.Name)
			continue
		}
		byName[table.Name] = table
	}
	if len(duplicates) > 0 {
		return nil, failures, &SchemaError{Duplicate: duplicates}
	}

	return byName, failures, nil
}

// Validate checks a scanned table set against the target schema: all
// mandatory tables present, and exactly one of the two dwell-time tables.
func Validate(tables map[TableName]*Table) error {
	var missing []TableName
	for _, name := range requiredTables {
		if _, exists := tables[name]; !exists {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}

	_, hasGroupDwell := tables[TableOrtHztf]
	_, hasTripDwell := tables[TableRecFrtHzt]

	if hasGroupDwell && hasTripDwell {
		return &SchemaError{Message: "both ORT_HZTF and REC_FRT_HZT are present, exactly one dwell-time table is allowed"}
	}
	if !hasGroupDwell && !hasTripDwell {
		return &SchemaError{Message: "neither ORT_HZTF nor REC_FRT_HZT is present, exactly one dwell-time table is required"}
	}

	log.Info().Int("tables", len(tables)).Msg("All mandatory tables are present")
	return nil
}
