package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// htmlSource reads the first <table> of an HTML page, such as a sheet
// published to the web. The first row holding any text is the header.
type htmlSource struct {
	url  string
	http *fetcher
}

func (s *htmlSource) Fetch(ctx context.Context) ([]types.Row, error) {
	data, err := s.http.get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("source: fetch html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("source: parse html: %w", err)
	}
	rows, err := parseTable(doc)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return rows, nil
}

func parseTable(doc *goquery.Document) ([]types.Row, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no <table> in document")
	}

	var (
		header  []string
		records [][]string
	)
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(c.Text()))
		})
		if header == nil {
			if strings.Join(cells, "") != "" {
				header = cells
			}
			return
		}
		records = append(records, cells)
	})
	if header == nil {
		return []types.Row{}, nil
	}
	return rowsFromTable(header, records), nil
}
