package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone lookups must work in minimal containers

	"gopkg.in/yaml.v3"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort                = 8080
	DefaultLogLevel                = "info"
	DefaultTimezone                = "UTC"
	DefaultRefreshInterval         = 5 * time.Minute
	DefaultBroadcastInterval       = 5 * time.Second
	DefaultStoreTTL                = time.Hour
	DefaultUrgencyThresholdDays    = 15
	DefaultRulePreset              = "canonical"
	DefaultSourceTimeout           = 15 * time.Second
	DefaultHistoryRetention        = 90 * 24 * time.Hour
	DefaultAlertCooldown           = 24 * time.Hour
	DefaultSourceRequestsPerMinute = 12
)

// Config is the top-level tracker configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	// HTTPPort is the port the dashboard, REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Timezone is the IANA zone in which "today" is observed.
	Timezone string `yaml:"timezone"`

	// RefreshInterval controls how often every board runs a render pass.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// BroadcastInterval controls how often WebSocket clients receive a snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// StoreTTL is how long a board's last pass stays live without a refresh.
	StoreTTL time.Duration `yaml:"store_ttl"`

	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Alerts  AlertsConfig  `yaml:"alerts"`

	// Boards is the list of dashboards to render.
	Boards []Board `yaml:"boards"`

	location *time.Location
}

// Location returns the resolved Timezone. Load guarantees it is set; a
// Config built by hand falls back to UTC.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.UTC
}

// Board describes one dashboard: a data source plus the rule chain used to
// classify its rows.
type Board struct {
	// ID is a unique, URL-safe identifier.
	ID string `yaml:"id"`

	// Title is shown as the page heading.
	Title string `yaml:"title"`

	// Rules selects a rule-chain preset: canonical | deadline | literal.
	Rules string `yaml:"rules"`

	// RuleNames, when set, replaces the preset with an explicit ordered list
	// of built-in rule names.
	RuleNames []string `yaml:"rule_names"`

	// DefaultHealth overrides the chain's fallback label.
	DefaultHealth string `yaml:"default_health"`

	// UrgencyThresholdDays flags an admit as action_required when the
	// enrollment deadline is at most this many days away. Nil means
	// DefaultUrgencyThresholdDays; 0 flags only deadlines due today or past.
	UrgencyThresholdDays *int `yaml:"urgency_threshold_days"`

	Source Source `yaml:"source"`

	// Banner is an informational line shown above the counters.
	Banner string `yaml:"banner"`

	// Notes is free text shown under the reality check.
	Notes string `yaml:"notes"`

	// Caption is the small print at the bottom of the page.
	Caption string `yaml:"caption"`

	// Milestone is an optional countdown shown on the dashboard.
	Milestone *Milestone `yaml:"milestone"`
}

// Source describes where a board's rows come from.
type Source struct {
	// Type is one of: sheet | csv | html | inline.
	Type string `yaml:"type"`

	// URL is the document to fetch (csv, html; optional for sheet).
	URL string `yaml:"url"`

	// SheetID and SheetName build a Google Sheets CSV export URL.
	SheetID   string `yaml:"sheet_id"`
	SheetName string `yaml:"sheet_name"`

	// Path is a local CSV file (csv only).
	Path string `yaml:"path"`

	// Timeout bounds a single fetch.
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerMinute caps fetches per remote host.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`

	Auth AuthSource `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`

	// Rows is the literal table used by the inline source. Keys are column
	// names, matched the same way as spreadsheet headers.
	Rows []map[string]string `yaml:"rows"`
}

// AuthSource specifies how HTTP sources authenticate.
type AuthSource struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the API key (apikey).
	Header string `yaml:"header"`

	// KeyEnv names the environment variable that holds the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthSource) Key() string { return lookupEnv(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthSource) Token() string { return lookupEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthSource) Password() string { return lookupEnv(a.PasswordEnv) }

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Milestone is a dated window rendered as a countdown.
type Milestone struct {
	Title  string `yaml:"title"`
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Before string `yaml:"before"`
	During string `yaml:"during"`
	After  string `yaml:"after"`
}

// AuthConfig configures how the REST API authenticates clients.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from (default "x-api-key").
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string { return lookupEnv(a.KeyEnv) }

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StorageConfig configures the optional pass history backend.
type StorageConfig struct {
	// Backend selects the implementation: sqlite, or empty to disable.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// Retention is how long pass summaries are kept.
	Retention time.Duration `yaml:"retention"`
}

// Enabled reports whether history is configured.
func (s StorageConfig) Enabled() bool { return s.Backend != "" }

// AlertsConfig holds alert rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one record-level alert condition.
type AlertRule struct {
	// Name identifies the rule and is part of the deduplication key.
	Name string `yaml:"name"`

	// Condition is "field op value", e.g. "days_until_enrollment <= 7" or
	// "health == action_required".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration. Defaults to 24h.
	Cooldown time.Duration `yaml:"cooldown"`

	// Boards restricts the rule to these board IDs; empty means all.
	Boards []string `yaml:"boards"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string { return lookupEnv(w.URLEnv) }

// Load reads and parses the YAML config file at path, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	applyBoardDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTPPort:          DefaultHTTPPort,
		LogLevel:          DefaultLogLevel,
		Timezone:          DefaultTimezone,
		RefreshInterval:   DefaultRefreshInterval,
		BroadcastInterval: DefaultBroadcastInterval,
		StoreTTL:          DefaultStoreTTL,
		Storage: StorageConfig{
			Retention: DefaultHistoryRetention,
		},
	}
}

// applyBoardDefaults fills per-board fields that depend on list position,
// which yaml.v3 cannot pre-populate.
func applyBoardDefaults(cfg *Config) {
	for i := range cfg.Boards {
		b := &cfg.Boards[i]
		if b.Rules == "" && len(b.RuleNames) == 0 {
			b.Rules = DefaultRulePreset
		}
		if b.UrgencyThresholdDays == nil {
			days := DefaultUrgencyThresholdDays
			b.UrgencyThresholdDays = &days
		}
		if b.Title == "" {
			b.Title = b.ID
		}
		if b.Source.Timeout == 0 {
			b.Source.Timeout = DefaultSourceTimeout
		}
		if b.Source.RequestsPerMinute == 0 {
			b.Source.RequestsPerMinute = DefaultSourceRequestsPerMinute
		}
	}
	for i := range cfg.Alerts.Rules {
		if cfg.Alerts.Rules[i].Cooldown <= 0 {
			cfg.Alerts.Rules[i].Cooldown = DefaultAlertCooldown
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q unknown: want debug|info|warn|error", cfg.LogLevel)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	if cfg.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast_interval must be positive")
	}
	if cfg.StoreTTL <= 0 {
		return fmt.Errorf("store_ttl must be positive")
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("auth.mode %q unknown: want apikey|none", cfg.Auth.Mode)
	}
	switch cfg.Storage.Backend {
	case "":
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown: want sqlite", cfg.Storage.Backend)
	}

	seen := make(map[string]bool, len(cfg.Boards))
	for i, b := range cfg.Boards {
		if b.ID == "" {
			return fmt.Errorf("boards[%d]: id is required", i)
		}
		if strings.ContainsAny(b.ID, "/ ?#") {
			return fmt.Errorf("boards[%d]: id %q must not contain '/', '?', '#' or spaces", i, b.ID)
		}
		if seen[b.ID] {
			return fmt.Errorf("boards[%d]: duplicate id %q", i, b.ID)
		}
		seen[b.ID] = true

		switch b.Rules {
		case "canonical", "deadline", "literal", "":
		default:
			return fmt.Errorf("boards[%d] %q: unknown rules preset %q", i, b.ID, b.Rules)
		}
		if b.UrgencyThresholdDays != nil && *b.UrgencyThresholdDays < 0 {
			return fmt.Errorf("boards[%d] %q: urgency_threshold_days must not be negative", i, b.ID)
		}
		if err := validateSource(b.Source); err != nil {
			return fmt.Errorf("boards[%d] %q: %w", i, b.ID, err)
		}
		if m := b.Milestone; m != nil {
			start, end := types.ParseDate(m.Start), types.ParseDate(m.End)
			if start == nil || end == nil {
				return fmt.Errorf("boards[%d] %q: milestone start and end must be dates", i, b.ID)
			}
			if end.Before(*start) {
				return fmt.Errorf("boards[%d] %q: milestone ends before it starts", i, b.ID)
			}
		}
	}

	ruleNames := make(map[string]bool, len(cfg.Alerts.Rules))
	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if ruleNames[r.Name] {
			return fmt.Errorf("alerts.rules[%d]: duplicate name %q", i, r.Name)
		}
		ruleNames[r.Name] = true
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

func validateSource(src Source) error {
	switch src.Type {
	case "sheet":
		if src.SheetID == "" && src.URL == "" {
			return fmt.Errorf("source: sheet needs sheet_id or url")
		}
	case "csv":
		if src.URL == "" && src.Path == "" {
			return fmt.Errorf("source: csv needs url or path")
		}
	case "html":
		if src.URL == "" {
			return fmt.Errorf("source: html needs url")
		}
	case "inline":
	default:
		return fmt.Errorf("source: unknown type %q", src.Type)
	}
	switch src.Auth.Mode {
	case "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("source: unknown auth mode %q", src.Auth.Mode)
	}
	if src.Timeout < 0 {
		return fmt.Errorf("source: timeout must not be negative")
	}
	if src.RequestsPerMinute < 0 {
		return fmt.Errorf("source: requests_per_minute must not be negative")
	}
	return nil
}

// Board returns the board with the given ID.
func (c *Config) Board(id string) (Board, bool) {
	for _, b := range c.Boards {
		if b.ID == id {
			return b, true
		}
	}
	return Board{}, false
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
