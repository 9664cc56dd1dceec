package vdv

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanTablesFindsAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeMinimalDataset(t, dir)

	tables, _, err := ScanTables(dir)
	require.NoError(t, err)
	assert.Len(t, tables, 11)
	assert.Contains(t, tables, TableRecFrt)
	assert.Contains(t, tables, TableOrtHztf)
}

func TestScanTablesSkipsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeMinimalDataset(t, dir)
	writeTableFile(t, dir, "broken.x10",
		"tbl; FIRMENKALENDER",
		"chs; UTF-16",
	)

	// A file failing its header check is reported but does not block the
	// scan, and because the table already exists under another file this
	// must not count as a duplicate.
	tables, failures, err := ScanTables(dir)
	require.NoError(t, err)
	assert.Len(t, tables, 11)

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].File, "broken.x10")
	assert.Contains(t, failures[0].Message, "not permitted")
}

func TestScanTablesRejectsDuplicateTable(t *testing.T) {
	dir := t.TempDir()
	writeMinimalDataset(t, dir)
	writeTableFile(t, dir, "calendar_copy.x10",
		"tbl; FIRMENKALENDER",
		"chs; ASCII",
		"atr; BASIS_VERSION; BETRIEBSTAG; TAGESART_NR",
		"frm; num[9.0]; num[8.0]; num[2.0]",
		"rec; 1; 20250602; 1",
		"eof; 1",
	)

	_, _, err := ScanTables(dir)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []TableName{TableFirmenkalender}, schemaErr.Duplicate)
}

func TestValidateReportsMissingTables(t *testing.T) {
	dir := t.TempDir()
	writeMinimalDataset(t, dir)
	require.NoError(t, os.Remove(dir+"/rec_umlauf.x10"))
	require.NoError(t, os.Remove(dir+"/rec_frt.x10"))

	tables, _, err := ScanTables(dir)
	require.NoError(t, err)

	err = Validate(tables)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.ElementsMatch(t, []TableName{TableRecFrt, TableRecUmlauf}, schemaErr.Missing)
}

func TestValidateDwellTableExclusivity(t *testing.T) {
	dir := t.TempDir()
	writeMinimalDataset(t, dir)

	tables, _, err := ScanTables(dir)
	require.NoError(t, err)
	require.NoError(t, Validate(tables))

	// Both dwell tables present.
	writeTableFile(t, dir, "rec_frt_hzt.x10",
		"tbl; REC_FRT_HZT",
		"chs; ASCII",
		"atr; BASIS_VERSION; FRT_FID; ONR_TYP_NR; ORT_NR; FRT_HZT_ZEIT",
		"frm; num[9.0]; num[8.0]; num[2.0]; num[7.0]; num[5.0]",
		"rec; 1; 100; 1; 1; 30",
		"eof; 1",
	)
	tables, _, err = ScanTables(dir)
	require.NoError(t, err)

	err = Validate(tables)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), "exactly one dwell-time table")

	// Neither dwell table present.
	require.NoError(t, os.Remove(dir+"/rec_frt_hzt.x10"))
	require.NoError(t, os.Remove(dir+"/ort_hztf.x10"))
	tables, _, err = ScanTables(dir)
	require.NoError(t, err)

	require.ErrorAs(t, Validate(tables), &schemaErr)
}
