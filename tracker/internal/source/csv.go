package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// csvSource reads a CSV document from a URL (including a Google Sheets
// export) or from a local file.
type csvSource struct {
	url  string
	path string
	http *fetcher
}

func (s *csvSource) Fetch(ctx context.Context) ([]types.Row, error) {
	var (
		data []byte
		err  error
	)
	if s.url != "" {
		data, err = s.http.get(ctx, s.url)
		if err != nil {
			return nil, fmt.Errorf("source: fetch csv: %w", err)
		}
	} else {
		data, err = os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("source: read csv: %w", err)
		}
	}
	rows, err := parseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return rows, nil
}

// parseCSV reads a header line followed by data rows. Ragged rows are
// accepted; an empty document yields no rows.
func parseCSV(r io.Reader) ([]types.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []types.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rowsFromTable(header, records), nil
}
