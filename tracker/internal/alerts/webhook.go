package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// teamsCard is the legacy Office 365 connector card Teams incoming webhooks
// accept.
type teamsCard struct {
	Type    string `json:"@type"`
	Context string `json:"@context"`
	Color   string `json:"themeColor"`
	Summary string `json:"summary"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// deliver posts a to every configured webhook. Failures are logged per
// target; one broken target does not stop the others.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		target := wh.URL()
		if target == "" {
			slog.Debug("alerts: webhook url unset, skipping", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}
		body, err := encodeFor(wh.Type, a)
		if err == nil {
			err = e.post(target, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// encodeFor renders a in the payload shape of the given webhook type.
func encodeFor(kind string, a *Alert) ([]byte, error) {
	switch kind {
	case "slack":
		return json.Marshal(struct {
			Text string `json:"text"`
		}{Text: fmt.Sprintf("*%s* %s", tag(a), a.Message)})
	case "teams":
		return json.Marshal(teamsCard{
			Type:    "MessageCard",
			Context: "http://schema.org/extensions",
			Color:   colorOf(a.Severity),
			Summary: a.RuleName,
			Title:   "gradtrack alert: " + a.RuleName,
			Text:    tag(a) + " " + a.Message,
		})
	case "http":
		return json.Marshal(struct {
			Alert *Alert `json:"alert"`
		}{a})
	default:
		return nil, fmt.Errorf("unsupported webhook type %q", kind)
	}
}

func (e *Engine) post(target string, body []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

// tag is the bracketed prefix of a notification: the severity while
// firing, RESOLVED afterwards.
func tag(a *Alert) string {
	if a.State == StateResolved {
		return "[RESOLVED]"
	}
	switch a.Severity {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	}
	return "[INFO]"
}

func colorOf(severity string) string {
	switch severity {
	case "critical":
		return "D93F3F"
	case "warning":
		return "F2A33A"
	}
	return "3A8DDE"
}
