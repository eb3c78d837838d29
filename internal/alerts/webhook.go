package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// renderFunc builds the JSON body one webhook flavour expects for a.
type renderFunc func(a *Alert) any

var renderers = map[string]renderFunc{
	"slack": slackBody,
	"teams": teamsBody,
	"http":  httpBody,
}

// deliver sends a to every configured webhook.
// Failures are logged; one bad target does not stop the others.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		render, ok := renderers[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := json.Marshal(render(a))
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"session", a.SessionID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: post %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// redactURL trims a webhook URL to scheme and host so tokens in the path stay out of logs.
func redactURL(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		if j := strings.IndexByte(url[i+3:], '/'); j >= 0 {
			return url[:i+3+j]
		}
	}
	return url
}

type fact struct {
	Name  string
	Value string
}

// headline is the one-line summary shown above the ride facts.
func headline(a *Alert) string {
	if a.State == "resolved" {
		held := "0s"
		if a.ResolvedAt != nil {
			held = a.ResolvedAt.Sub(a.FiredAt).Round(time.Second).String()
		}
		return fmt.Sprintf("Resolved: %s behind rider %s after %s", a.RuleName, a.Target, held)
	}
	return fmt.Sprintf("%s: %s behind rider %s", strings.ToUpper(a.Severity), a.RuleName, a.Target)
}

// rideFacts lists the ride state the alert fired on.
func rideFacts(a *Alert) []fact {
	facts := []fact{
		{"Target", a.Target},
		{"Session", a.SessionID},
		{"Mode", a.Mode},
	}
	if a.Strategy != "" {
		facts = append(facts, fact{"Strategy", a.Strategy})
	}
	power := fmt.Sprintf("%.0f W", a.RecommendedPower)
	if a.FTPPct > 0 {
		power += fmt.Sprintf(" (%.0f%% FTP)", a.FTPPct)
	}
	return append(facts,
		fact{"Recommended power", power},
		fact{"Gap", fmt.Sprintf("%.1f m", a.Gap)},
		fact{"Trigger", fmt.Sprintf("%s (value %.2f)", a.Condition, a.Value)},
	)
}

func slackBody(a *Alert) any {
	facts := rideFacts(a)
	fields := make([]map[string]any, 0, len(facts))
	for _, f := range facts {
		fields = append(fields, map[string]any{"title": f.Name, "value": f.Value, "short": true})
	}
	ts := a.FiredAt
	if a.ResolvedAt != nil {
		ts = *a.ResolvedAt
	}
	return map[string]any{
		"text": fmt.Sprintf("*%s*", headline(a)),
		"attachments": []map[string]any{{
			"color":  "#" + stateColor(a),
			"fields": fields,
			"footer": "draftpace",
			"ts":     ts.Unix(),
		}},
	}
}

func teamsBody(a *Alert) any {
	facts := rideFacts(a)
	list := make([]map[string]string, 0, len(facts))
	for _, f := range facts {
		list = append(list, map[string]string{"name": f.Name, "value": f.Value})
	}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "https://schema.org/extensions",
		"themeColor": stateColor(a),
		"summary":    headline(a),
		"sections": []map[string]any{{
			"activityTitle":    headline(a),
			"activitySubtitle": a.Message,
			"facts":            list,
		}},
	}
}

// httpBody wraps the alert in an event envelope for generic receivers.
func httpBody(a *Alert) any {
	event := "alert.fired"
	if a.State == "resolved" {
		event = "alert.resolved"
	}
	return map[string]any{"event": event, "alert": a}
}

func stateColor(a *Alert) string {
	if a.State == "resolved" {
		return "2EB67D"
	}
	switch a.Severity {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
