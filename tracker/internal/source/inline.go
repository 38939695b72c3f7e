package source

import (
	"context"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// inlineSource serves the literal rows written in the config file.
type inlineSource struct {
	rows []map[string]string
}

func (s *inlineSource) Fetch(_ context.Context) ([]types.Row, error) {
	out := make([]types.Row, 0, len(s.rows))
	for _, r := range s.rows {
		header := make([]string, 0, len(r))
		values := make([]string, 0, len(r))
		for k, v := range r {
			header = append(header, k)
			values = append(values, v)
		}
		out = append(out, rowsFromTable(header, [][]string{values})...)
	}
	return out, nil
}
