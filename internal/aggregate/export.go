package aggregate

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// header returns the column header matching the result's key dimensions.
func (r *Result) header() []string {
	var h []string
	if r.By.Year {
		h = append(h, "year")
	}
	if r.By.Provider {
		h = append(h, "provider")
	}
	return append(h, "amount")
}

// record renders one entry using the same dimension order as header.
func (r *Result) record(e Entry) []string {
	var rec []string
	if r.By.Year {
		rec = append(rec, strconv.Itoa(e.Year))
	}
	if r.By.Provider {
		rec = append(rec, e.Provider)
	}
	return append(rec, strconv.FormatFloat(e.Amount, 'f', -1, 64))
}

// WriteCSV serializes the result as comma-delimited UTF-8 text with one
// header row, the snapshot format offered to the presentation layer for
// download.
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(r.header()); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, e := range r.Entries {
		if err := cw.Write(r.record(e)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// WriteXLSX writes the result as a single-sheet XLSX workbook.
func WriteXLSX(path string, r *Result) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("aggregate")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range r.header() {
		row.AddCell().SetString(h)
	}
	for _, e := range r.Entries {
		row = sheet.AddRow()
		if r.By.Year {
			row.AddCell().SetInt(e.Year)
		}
		if r.By.Provider {
			row.AddCell().SetString(e.Provider)
		}
		row.AddCell().SetFloat(e.Amount)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
