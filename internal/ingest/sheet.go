package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook interprets a named byte buffer as tabular sheets. Excel
// workbooks are read with excelize; CSV buffers become a single-sheet
// source. The pipeline itself only ever sees rows of cells.
func ParseWorkbook(name string, data []byte) (Source, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return parseCSV(name, data)
	default:
		return parseExcel(name, data)
	}
}

func parseExcel(name string, data []byte) (Source, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Source{}, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer func() { _ = xl.Close() }()

	src := Source{Name: name}
	for _, sheetName := range xl.GetSheetList() {
		rows, err := xl.GetRows(sheetName)
		if err != nil {
			return Source{}, fmt.Errorf("failed to read sheet %s of %s: %w", sheetName, name, err)
		}
		src.Sheets = append(src.Sheets, Sheet{Name: sheetName, Rows: rows})
	}
	if len(src.Sheets) == 0 {
		return Source{}, fmt.Errorf("workbook %s contains no sheets", name)
	}
	return src, nil
}

func parseCSV(name string, data []byte) (Source, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // uploads are frequently ragged

	rows, err := reader.ReadAll()
	if err != nil {
		return Source{}, fmt.Errorf("failed to parse csv %s: %w", name, err)
	}

	return Source{
		Name:   name,
		Sheets: []Sheet{{Name: name, Rows: rows}},
	}, nil
}
