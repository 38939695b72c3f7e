package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/store"
)

// metrics returns GET /metrics: per-board gauges in the Prometheus text
// exposition format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range buildFamilies(h.deps.Store.List()) {
		if len(mf.Metric) == 0 {
			continue // the text format rejects empty families
		}
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: encode metrics", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// buildFamilies turns the live passes into metric families.
func buildFamilies(entries []*store.Entry) []*dto.MetricFamily {
	apps := family("gradtrack_applications", "Applications per board and health label.")
	overdue := family("gradtrack_overdue_decisions", "Non-admitted applications whose decision date has passed.")
	admits := family("gradtrack_admits", "Applications with an admit.")
	stamp := family("gradtrack_pass_timestamp_seconds", "Unix time of the board's latest render pass.")
	up := family("gradtrack_source_up", "1 if the board's last fetch succeeded, 0 otherwise.")
	skipped := family("gradtrack_skipped_rows", "Rows dropped in the latest pass for lacking a university.")

	for _, e := range entries {
		p := e.Pass
		board := label("board", p.BoardID)
		for _, hl := range types.Healths {
			apps.Metric = append(apps.Metric, gauge(float64(p.Summary.ByHealth[hl]), board, label("health", string(hl))))
		}
		overdue.Metric = append(overdue.Metric, gauge(float64(len(p.Summary.Overdue)), board))
		admits.Metric = append(admits.Metric, gauge(float64(p.Summary.Admits), board))
		stamp.Metric = append(stamp.Metric, gauge(float64(p.GeneratedAt.UnixMilli())/1000, board))
		v := 1.0
		if p.Err != "" {
			v = 0
		}
		up.Metric = append(up.Metric, gauge(v, board))
		skipped.Metric = append(skipped.Metric, gauge(float64(p.Skipped), board))
	}
	return []*dto.MetricFamily{apps, overdue, admits, stamp, up, skipped}
}

func family(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: ptr(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
