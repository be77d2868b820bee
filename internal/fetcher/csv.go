package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter rune // default ','
	HasHeader bool // first row is the header and is not sent as a row
	Comment   rune
	TrimSpace bool
}

// StreamCSV reads rows from r on a goroutine. The header, when HasHeader
// is set, is delivered first on the header channel. All channels close
// when reading ends; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (header <-chan []string, rows <-chan []string, errs <-chan error) {
	headerCh := make(chan []string, 1)
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(rowCh)
		defer close(headerCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for first := true; ; first = false {
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}

			out := rowCh
			if first && opts.HasHeader {
				out = headerCh
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: cancelled")
				return
			}
		}
	}()

	return headerCh, rowCh, errCh
}

// ReadColumn collects the non-empty values of one named column (case
// insensitive). With an empty name the first column is used.
func ReadColumn(ctx context.Context, r io.Reader, column string) ([]string, error) {
	headerCh, rowCh, errCh := StreamCSV(ctx, r, CSVOptions{HasHeader: true, TrimSpace: true})

	header, ok := <-headerCh
	if !ok {
		return nil, firstErr(errCh)
	}
	idx, err := columnIndex(header, column)
	if err != nil {
		// drain so the reader goroutine exits
		for range rowCh {
		}
		return nil, eris.Wrap(err, "csv")
	}

	var out []string
	for row := range rowCh {
		if idx < len(row) && row[idx] != "" {
			out = append(out, row[idx])
		}
	}
	return out, firstErr(errCh)
}

// columnIndex finds column in header, case-insensitively. An empty name
// selects the first column.
func columnIndex(header []string, column string) (int, error) {
	if column == "" {
		return 0, nil
	}
	for i, h := range header {
		if strings.EqualFold(trim(h), column) {
			return i, nil
		}
	}
	return -1, eris.Errorf("column %q not found in header %v", column, header)
}

func trim(s string) string { return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")) }

func firstErr(errCh <-chan error) error {
	for err := range errCh {
		return err
	}
	return nil
}
