package vdv

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpm-tu-berlin/eflips-ingest/pkg/dataimporter/formats"
	"github.com/mpm-tu-berlin/eflips-ingest/pkg/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is what the importer needs from the persistence layer: an atomic
// commit of the whole change-set and the post-commit cleanup query.
type Store interface {
	CommitScenario(ctx context.Context, set *model.ImportSet) error
	DeleteEmptyRotations(ctx context.Context, scenarioID uint) (int64, error)
}

// Stage tracks the import through its pipeline. RolledBack is reachable
// from every stage on error; Committed only from Committing.
type Stage int

const (
	StageParsing Stage = iota
	StageValidating
	StageDecoding
	StageResolving
	StageAssembling
	StageReconciling
	StageCommitting
	StageCommitted
	StageRolledBack
)

func (s Stage) String() string {
	switch s {
	case StageParsing:
		return "parsing"
	case StageValidating:
		return "validating"
	case StageDecoding:
		return "decoding"
	case StageResolving:
		return "resolving"
	case StageAssembling:
		return "assembling"
	case StageReconciling:
		return "reconciling"
	case StageCommitting:
		return "committing"
	case StageCommitted:
		return "committed"
	case StageRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// workStages is how many stages report progress before the import reaches a
// terminal state.
const workStages = 7

var _ formats.Format = (*Importer)(nil)

// Importer runs the whole pipeline for one dataset directory or archive.
type Importer struct {
	Store    Store
	Patterns *DegeneratePatterns
	Timezone string

	// Now is replaceable for tests; the active dataset version depends on it.
	Now func() time.Time

	prepared map[string]*preparedDataset
}

type preparedDataset struct {
	directory string
	cleanup   func()
	tables    map[TableName]*Table
}

func NewImporter(store Store) *Importer {
	return &Importer{
		Store:    store,
		Patterns: DefaultDegeneratePatterns(),
		Timezone: DefaultTimezone,
		Now:      time.Now,
		prepared: map[string]*preparedDataset{},
	}
}

// Prepare parses and validates a dataset ahead of ingestion and returns a
// handle for it. Splitting preparation from ingestion lets a caller reject
// a bad upload before any database work happens.
func (i *Importer) Prepare(source string) (string, error) {
	directory, cleanup, err := i.resolveSource(source)
	if err != nil {
		return "", err
	}

	tables, err := i.scanAndValidate(directory)
	if err != nil {
		cleanup()
		return "", err
	}

	handle := uuid.NewString()
	i.prepared[handle] = &preparedDataset{
		directory: directory,
		cleanup:   cleanup,
		tables:    tables,
	}
	return handle, nil
}

// Ingest runs the remaining pipeline stages for a prepared dataset. The
// handle is consumed regardless of the outcome.
func (i *Importer) Ingest(ctx context.Context, handle string, progress formats.ProgressFunc) error {
	dataset, ok := i.prepared[handle]
	if !ok {
		return fmt.Errorf("no prepared dataset with handle %s", handle)
	}
	delete(i.prepared, handle)
	defer dataset.cleanup()

	report := progressReporter(progress)
	report(StageParsing)
	report(StageValidating)

	return i.run(ctx, dataset.directory, dataset.tables, report)
}

// Import runs the full pipeline in one go, satisfying the Format interface.
func (i *Importer) Import(ctx context.Context, source string, progress formats.ProgressFunc) error {
	directory, cleanup, err := i.resolveSource(source)
	if err != nil {
		return err
	}
	defer cleanup()

	report := progressReporter(progress)

	tables, err := i.scanAndValidate(directory)
	if err != nil {
		return rolledBack(err)
	}
	report(StageParsing)
	report(StageValidating)

	return i.run(ctx, directory, tables, report)
}

// scanAndValidate applies the importer's bad-file policy: a file failing its
// header check is skipped so the rest of the dataset can still load, but
// when validation then finds the schema incomplete, the parse failures are
// attached as the likely root cause instead of staying buried in a log.
func (i *Importer) scanAndValidate(directory string) (map[TableName]*Table, error) {
	tables, parseFailures, err := ScanTables(directory)
	if err != nil {
		return nil, err
	}
	for _, failure := range parseFailures {
		log.Warn().Err(failure).Str("file", failure.File).Msg("Skipping unreadable table file")
	}

	if err := Validate(tables); err != nil {
		joined := make([]error, 0, len(parseFailures)+1)
		joined = append(joined, err)
		for _, failure := range parseFailures {
			joined = append(joined, failure)
		}
		return nil, errors.Join(joined...)
	}
	return tables, nil
}

// run carries a validated table set through decoding, assembly and commit.
func (i *Importer) run(ctx context.Context, directory string, tables map[TableName]*Table, report func(Stage)) error {
	location, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", i.Timezone, err)
	}

	records, err := DecodeTables(tables)
	if err != nil {
		return rolledBack(err)
	}
	report(StageDecoding)

	resolver, err := NewResolver(records, i.Now())
	if err != nil {
		return rolledBack(err)
	}
	report(StageResolving)

	network, err := BuildNetwork(resolver, i.Patterns)
	if err != nil {
		return rolledBack(err)
	}
	rotations, err := BuildSchedule(resolver, network, location)
	if err != nil {
		return rolledBack(err)
	}
	report(StageAssembling)

	if err := ReconcileRotations(rotations); err != nil {
		return rolledBack(err)
	}
	report(StageReconciling)

	set := &model.ImportSet{
		Scenario: &model.Scenario{
			UUID:             uuid.NewString(),
			Name:             fmt.Sprintf("VDV import of %s", filepath.Base(directory)),
			CreationDateTime: i.Now(),
		},
		VehicleTypes: network.VehicleTypes(),
		Stations:     network.Stations(),
		Lines:        network.Lines(),
		Routes:       network.Routes(),
		Rotations:    rotations,
	}

	if err := i.Store.CommitScenario(ctx, set); err != nil {
		return rolledBack(&CommitError{Err: err})
	}
	report(StageCommitting)

	deleted, err := i.Store.DeleteEmptyRotations(ctx, set.Scenario.ID)
	if err != nil {
		// The scenario itself is already durable; cleanup failure is not a
		// rollback.
		return &CommitError{Err: err}
	}
	if deleted > 0 {
		log.Info().Int64("rotations", deleted).Msg("Deleted rotations without trips")
	}

	log.Info().
		Str("scenario", set.Scenario.UUID).
		Int("trips", set.TripCount()).
		Str("stage", StageCommitted.String()).
		Msg("Import committed")
	return nil
}

func rolledBack(err error) error {
	log.Error().Err(err).Str("stage", StageRolledBack.String()).Msg("Import failed")
	return err
}

func progressReporter(progress formats.ProgressFunc) func(Stage) {
	return func(stage Stage) {
		log.Debug().Str("stage", stage.String()).Msg("Stage complete")
		if progress == nil {
			return
		}
		fraction := float64(stage+1) / workStages
		if fraction > 1 {
			fraction = 1
		}
		progress(fraction)
	}
}

// resolveSource accepts either a directory of table files or a zip archive
// of them. Archives are extracted flat into a temporary directory.
func (i *Importer) resolveSource(source string) (string, func(), error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", nil, err
	}

	if info.IsDir() {
		return source, func() {}, nil
	}

	if !strings.EqualFold(filepath.Ext(source), ".zip") {
		return "", nil, fmt.Errorf("%s is neither a directory nor a zip archive", source)
	}

	directory, err := os.MkdirTemp("", "vdv-import-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(directory) }

	if err := extractTables(source, directory); err != nil {
		cleanup()
		return "", nil, err
	}
	return directory, cleanup, nil
}

func extractTables(archivePath, directory string) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(file.Name), ".x10") {
			continue
		}

		// Flatten the archive layout; table names come from the file
		// headers, not the paths.
		target := filepath.Join(directory, filepath.Base(file.Name))

		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", file.Name, err)
	}
	defer reader.Close()

	writer, err := os.Create(target)
	if err != nil {
		return err
	}
	defer writer.Close()

	if _, err := io.Copy(writer, reader); err != nil {
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	return nil
}
