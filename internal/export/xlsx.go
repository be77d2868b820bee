package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX saves a workbook with one sheet: a bold header row followed by
// one row per record.
func WriteXLSX(path, sheetName string, header []string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", sheetName)
	}

	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true

	hr := sheet.AddRow()
	for _, h := range header {
		cell := hr.AddCell()
		cell.SetString(h)
		cell.SetStyle(bold)
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}
