// Package config loads and watches the tracker configuration file (config.yaml).
//
// Top-level types:
//   - Config: http_port, log_level, timezone, refresh_interval,
//     broadcast_interval, store_ttl, auth, storage, alerts, boards []
//   - Board: id, title, rules preset (canonical|deadline|literal) or explicit
//     rule_names, urgency_threshold_days, source, banner/notes/caption, milestone
//   - Source: type (sheet|csv|html|inline), url, sheet_id/sheet_name, path,
//     timeout, requests_per_minute, auth, tls, inline rows
//   - AuthConfig, StorageConfig, AlertsConfig: API auth, sqlite history,
//     alert rules and webhooks; secrets are always referenced by env var name
//
// Load(path) reads the YAML file, applies defaults (port 8080, 5m refresh,
// 15 day urgency threshold, canonical rules), overlays GRADTRACK_* environment
// variables, then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on change. A
// reload that fails validation is logged and ignored.
package config
