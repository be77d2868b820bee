// Package export writes leads and revenue results as CSV, JSON or XLSX.
package export

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name, or infers it from a file extension
// when name is empty. CSV is the default.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		switch {
		case strings.HasSuffix(strings.ToLower(path), ".json"):
			return FormatJSON, nil
		case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
			return FormatXLSX, nil
		default:
			return FormatCSV, nil
		}
	}
	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q", name)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "export: encode json")
}

// LeadRows returns leads as rows in LeadFields order.
func LeadRows(leads []model.LeadRecord) [][]string {
	rows := make([][]string, len(leads))
	for i, l := range leads {
		l.Fill()
		rows[i] = l.Row()
	}
	return rows
}

// RevenueRows returns results as rows in RevenueFields order.
func RevenueRows(results []model.RevenueResult) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = r.Row()
	}
	return rows
}

// WriteLeads writes leads to path in the given format.
func WriteLeads(path string, format Format, leads []model.LeadRecord) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(path, "Leads", model.LeadFields(), LeadRows(leads))
	case FormatJSON:
		return writeFile(path, func(w io.Writer) error {
			if leads == nil {
				leads = []model.LeadRecord{}
			}
			return WriteJSON(w, leads)
		})
	default:
		return writeFile(path, func(w io.Writer) error {
			cw, err := NewCSVWriter(w, model.LeadFields())
			if err != nil {
				return err
			}
			for _, row := range LeadRows(leads) {
				if err := cw.Write(row); err != nil {
					return err
				}
			}
			return cw.Flush()
		})
	}
}

// writeFile creates path (stdout for "-") and hands it to fn.
func writeFile(path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
