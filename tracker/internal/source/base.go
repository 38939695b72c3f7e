package source

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
)

const (
	defaultFetchTimeout = 15 * time.Second

	// maxBodyBytes caps a single download; application tables are small.
	maxBodyBytes = 16 << 20
)

// ErrBodyTooLarge is returned when a download exceeds the size cap. A
// truncated table would silently drop applications.
var ErrBodyTooLarge = errors.New("response body too large")

// Source is the common interface implemented by every row source.
type Source interface {
	Fetch(ctx context.Context) ([]types.Row, error)
}

// New returns the appropriate Source for the board's source configuration.
// HTTP sources build their client once and reuse it across passes.
func New(b config.Board) (Source, error) {
	src := b.Source
	switch src.Type {
	case "inline":
		return &inlineSource{rows: src.Rows}, nil
	case "csv":
		if src.URL == "" {
			return &csvSource{path: src.Path}, nil
		}
		return &csvSource{url: src.URL, http: newFetcher(src)}, nil
	case "sheet":
		u := src.URL
		if u == "" {
			u = SheetURL(src.SheetID, src.SheetName)
		}
		return &csvSource{url: u, http: newFetcher(src)}, nil
	case "html":
		return &htmlSource{url: src.URL, http: newFetcher(src)}, nil
	default:
		return nil, fmt.Errorf("source %q: unsupported type %q", b.ID, src.Type)
	}
}

// SheetURL returns the CSV export URL of a Google Sheets tab.
func SheetURL(sheetID, sheetName string) string {
	u := "https://docs.google.com/spreadsheets/d/" + url.PathEscape(sheetID) + "/gviz/tq?tqx=out:csv"
	if sheetName != "" {
		u += "&sheet=" + url.QueryEscape(sheetName)
	}
	return u
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthSource
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		header := t.auth.Header
		if header == "" {
			header = "x-api-key"
		}
		req.Header.Set(header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) *http.Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
			auth: src.Auth,
		},
		Timeout: timeout,
	}
}

// hostLimiter rate-limits fetches per remote host.
type hostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
}

func newHostLimiter(perMinute float64) *hostLimiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Limit(perMinute / 60)
	}
	return &hostLimiter{m: make(map[string]*rate.Limiter), r: r}
}

func (hl *hostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.r, 1)
	hl.m[host] = lim
	return lim
}

func (hl *hostLimiter) wait(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hl.limiterFor("_").Wait(ctx)
	}
	return hl.limiterFor(u.Host).Wait(ctx)
}

// fetcher performs rate-limited, authenticated GETs.
type fetcher struct {
	client  *http.Client
	limiter *hostLimiter
	maxBody int64
}

func newFetcher(src config.Source) *fetcher {
	return &fetcher{
		client:  buildHTTPClient(src),
		limiter: newHostLimiter(src.RequestsPerMinute),
		maxBody: maxBodyBytes,
	}
}

// get fetches rawURL and returns its body. Non-200 responses are errors.
func (f *fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "gradtrack/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, f.maxBody)
	}
	return body, nil
}

// columnAliases maps normalized header spellings to canonical column names.
var columnAliases = map[string]string{
	"school":             types.ColUniversity,
	"institution":        types.ColUniversity,
	"date applied":       types.ColAppliedOn,
	"applied":            types.ColAppliedOn,
	"decision date":      types.ColDecisionBy,
	"admit date":         types.ColAdmitReceivedOn,
	"admit received":     types.ColAdmitReceivedOn,
	"enrollment by":      types.ColEnrollmentDeadline,
	"enroll by":          types.ColEnrollmentDeadline,
	"enrolment deadline": types.ColEnrollmentDeadline,
}

var canonicalByKey = func() map[string]string {
	m := make(map[string]string, len(types.Columns)+len(columnAliases))
	for _, c := range types.Columns {
		m[headerKey(c)] = c
	}
	for k, c := range columnAliases {
		m[k] = c
	}
	return m
}()

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return types.Normalize(h)
}

// CanonicalColumn maps a source header to its canonical column name, or
// returns "" for columns the tracker does not use. Matching ignores case,
// surrounding and repeated whitespace, and '_' / '-' separators.
func CanonicalColumn(header string) string {
	return canonicalByKey[headerKey(header)]
}

// rowsFromTable turns a header plus data rows into Rows. Unknown columns are
// dropped, short rows are padded with absent values and blank rows skipped.
func rowsFromTable(header []string, records [][]string) []types.Row {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = CanonicalColumn(h)
	}

	rows := make([]types.Row, 0, len(records))
	for _, rec := range records {
		row := make(types.Row, len(cols))
		blank := true
		for i, v := range rec {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				blank = false
			}
			row[cols[i]] = v
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
