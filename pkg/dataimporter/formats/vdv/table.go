package vdv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

// VDV 451 permits exactly two encodings for the table body. The header is
// always plain ASCII, so it can be scanned with the Latin-1 decoder
// regardless of what the chs line declares.
const (
	CharacterSetASCII  = "ASCII"
	CharacterSetLatin1 = "ISO8859-1"
)

type DataType int

const (
	DataTypeChar DataType = iota
	DataTypeInt
	DataTypeDecimal
	// DataTypeInvalid marks a column whose frm declaration did not match the
	// char[n] / num[i.f] grammar. The column is retained positionally but its
	// values are dropped during decoding.
	DataTypeInvalid
)

type Column struct {
	Name string
	Type DataType
}

// Table is the parsed header of one .x10 file. The data rows stay on disk
// and are streamed through EachRow.
type Table struct {
	File         string
	Name         TableName
	CharacterSet string
	Columns      []Column

	// mod line hints, retained but not required downstream.
	DateFormat string
	TimeFormat string
}

var columnTypePattern = regexp.MustCompile(`^(char\[[0-9]+\]|num\[[0-9]+\.[0-9]+\])$`)

// ReadTableHeader scans a table file up to its first record, returning the
// typed header. It rejects files with no records, no table name, no
// character set or an encoding outside the VDV 451 set.
func ReadTableHeader(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Message: err.Error()}
	}
	defer file.Close()

	table := &Table{File: path}

	var tableName string
	var columnNames []string
	var columnTypes []DataType
	sawRecord := false

	scanner := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command := strings.SplitN(line, ";", 2)[0]

		switch command {
		case "tbl":
			parts := strings.Split(line, ";")
			if len(parts) < 2 {
				return nil, &ParseError{File: path, Message: "tbl line carries no table name"}
			}
			tableName = strings.ToUpper(strings.TrimSpace(parts[1]))

		case "chs":
			// Quoted, as some exports wrap the value in double quotes.
			parts, err := splitQuoted(line)
			if err != nil || len(parts) < 2 {
				return nil, &ParseError{File: path, Message: "malformed chs line"}
			}
			characterSet := strings.ToUpper(strings.TrimSpace(parts[1]))

			// A common vendor typo adds a dash.
			if characterSet == "ISO-8859-1" {
				characterSet = CharacterSetLatin1
			}

			if characterSet != CharacterSetASCII && characterSet != CharacterSetLatin1 {
				return nil, &ParseError{
					File:    path,
					Message: fmt.Sprintf("character set %q is not permitted by VDV 451", characterSet),
				}
			}
			table.CharacterSet = characterSet

		case "atr":
			parts := strings.Split(line, ";")
			for _, name := range parts[1:] {
				columnNames = append(columnNames, strings.ToUpper(strings.TrimSpace(name)))
			}

		case "frm":
			parts := strings.Split(line, ";")
			columnTypes = parseColumnTypes(path, parts[1:])

		case "mod":
			parts := strings.Split(line, ";")
			if len(parts) > 1 {
				table.DateFormat = strings.TrimSpace(parts[1])
			}
			if len(parts) > 2 {
				table.TimeFormat = strings.TrimSpace(parts[2])
			}

		case "rec":
			sawRecord = true
			if tableName != "" && table.CharacterSet != "" {
				// Header complete and the file has at least one record.
				goto headerDone
			}

		case "eof":
			if !sawRecord {
				return nil, &ParseError{File: path, Message: "file contains no records"}
			}
			goto headerDone
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: path, Message: err.Error()}
	}
	if !sawRecord {
		return nil, &ParseError{File: path, Message: "file contains no records"}
	}

headerDone:
	if tableName == "" {
		return nil, &ParseError{File: path, Message: "no table name in header"}
	}
	if table.CharacterSet == "" {
		return nil, &ParseError{File: path, Message: "no character set in header"}
	}
	if columnNames == nil {
		return nil, &ParseError{File: path, Message: "no column names in header"}
	}
	if columnTypes == nil {
		return nil, &ParseError{File: path, Message: "no column data types in header"}
	}
	if len(columnNames) != len(columnTypes) {
		return nil, &ParseError{
			File: path,
			Message: fmt.Sprintf("header declares %d column names but %d column types",
				len(columnNames), len(columnTypes)),
		}
	}

	name, known := lookupTableName(tableName)
	if !known {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("unknown table name %q", tableName)}
	}
	table.Name = name

	for i := range columnNames {
		table.Columns = append(table.Columns, Column{Name: columnNames[i], Type: columnTypes[i]})
	}

	return table, nil
}

func parseColumnTypes(path string, declarations []string) []DataType {
	types := make([]DataType, 0, len(declarations))
	for _, declaration := range declarations {
		declaration = strings.TrimSpace(declaration)

		if !columnTypePattern.MatchString(declaration) {
			// Vendors sometimes add columns with declarations outside the
			// VDV 451 grammar. The column is skipped, not the file.
			log.Warn().Str("file", path).Str("format", declaration).
				Msg("Column type does not match char[n] or num[i.f], dropping column")
			types = append(types, DataTypeInvalid)
			continue
		}

		if strings.HasPrefix(declaration, "char") {
			types = append(types, DataTypeChar)
			continue
		}

		// num[i.f]: f = 0 is an integer, anything else a decimal.
		inner := declaration[len("num[") : len(declaration)-1]
		fraction := strings.Split(inner, ".")[1]
		if f, _ := strconv.Atoi(fraction); f > 0 {
			types = append(types, DataTypeDecimal)
		} else {
			types = append(types, DataTypeInt)
		}
	}
	return types
}

// EachRow streams the raw fields of every rec line to fn, decoded with the
// table's declared character set. A field count that differs from the header
// declaration is a hard error for the whole table.
func (t *Table) EachRow(fn func(fields []string) error) error {
	file, err := os.Open(t.File)
	if err != nil {
		return &ParseError{File: t.File, Message: err.Error()}
	}
	defer file.Close()

	var scanner *bufio.Scanner
	if t.CharacterSet == CharacterSetLatin1 {
		scanner = bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(file))
	} else {
		scanner = bufio.NewScanner(file)
	}
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "rec;") && line != "rec" {
			continue
		}

		if t.CharacterSet == CharacterSetASCII && !isASCII(line) {
			return &ParseError{File: t.File, Message: "record contains non-ASCII bytes in an ASCII file"}
		}

		parts, err := splitQuoted(line)
		if err != nil {
			return &ParseError{File: t.File, Message: fmt.Sprintf("malformed record: %v", err)}
		}
		fields := parts[1:]

		if len(fields) != len(t.Columns) {
			return &ParseError{
				File: t.File,
				Message: fmt.Sprintf("record has %d fields but the header declares %d columns: %v",
					len(fields), len(t.Columns), fields),
			}
		}

		if err := fn(fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// splitQuoted splits a semicolon-delimited line, honouring double-quoted
// fields so embedded separators do not split a field.
func splitQuoted(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	return reader.Read()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

type CellKind int

const (
	CellAbsent CellKind = iota
	CellText
	CellInt
	CellDecimal
)

// Cell is one decoded field: a tagged value whose kind follows the column's
// declared type. A blank field always decodes to CellAbsent, never to an
// empty string, even for numeric columns.
type Cell struct {
	Kind    CellKind
	Text    string
	Int     int64
	Decimal float64
}

// DecodeCell is a pure function from (declared type, raw text) to a tagged
// value. Numeric conversion failures are returned to the caller, which
// aborts the table.
func DecodeCell(column Column, raw string) (Cell, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cell{Kind: CellAbsent}, nil
	}

	switch column.Type {
	case DataTypeInt:
		value, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return Cell{}, fmt.Errorf("column %s: %q is not an integer", column.Name, trimmed)
		}
		return Cell{Kind: CellInt, Int: value}, nil

	case DataTypeDecimal:
		value, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return Cell{}, fmt.Errorf("column %s: %q is not a decimal", column.Name, trimmed)
		}
		return Cell{Kind: CellDecimal, Decimal: value}, nil

	case DataTypeInvalid:
		// Unparseable column declaration, value dropped.
		return Cell{Kind: CellAbsent}, nil

	default:
		return Cell{Kind: CellText, Text: trimmed}, nil
	}
}
