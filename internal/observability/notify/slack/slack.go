// Package slack posts failure alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/target/jobmatch/internal/observability/notify"
)

type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	HTTPClient *http.Client
	// StatusBaseURL turns job ids into links to <base>/<job id>/status.
	StatusBaseURL string
}

// Webhook is a notify.Sink backed by a Slack incoming webhook.
type Webhook struct {
	url        string
	channel    string
	username   string
	statusBase *url.URL
	poster     notify.Poster
}

var _ notify.Sink = (*Webhook)(nil)

type message struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

func NewWebhook(cfg Config) (*Webhook, error) {
	hook := strings.TrimSpace(cfg.WebhookURL)
	if hook == "" {
		return nil, errors.New("slack: webhook url is required")
	}
	w := &Webhook{
		url:      hook,
		channel:  strings.TrimSpace(cfg.Channel),
		username: strings.TrimSpace(cfg.Username),
		poster:   notify.NewPoster("slack", cfg.HTTPClient, cfg.Timeout, cfg.RetryLimit),
	}
	if w.username == "" {
		w.username = "jobmatch"
	}
	if base, err := url.Parse(strings.TrimSpace(cfg.StatusBaseURL)); err == nil && base.Scheme != "" && base.Host != "" {
		w.statusBase = base
	}
	return w, nil
}

func (w *Webhook) Notify(ctx context.Context, alert notify.Alert) error {
	return w.poster.PostJSON(ctx, w.url, w.render(alert))
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (w *Webhook) render(a notify.Alert) message {
	title := "*Task failure alert*"
	if a.TaskID != "" {
		title += " `" + a.TaskID + "`"
	}
	if a.Stage != "" {
		title += " (" + a.Stage + ")"
	}
	lines := []string{title}

	bullet := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, "• "+label+": "+value)
		}
	}
	severity := a.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}
	bullet("Severity", string(severity))
	bullet("Job", w.jobRef(a.JobID))
	if a.MaxAttempts > 0 {
		bullet("Attempts", strconv.Itoa(a.Attempt)+"/"+strconv.Itoa(a.MaxAttempts))
	}
	bullet("Error class", a.Class)
	bullet("Error", mrkdwnEscaper.Replace(a.Reason))

	if len(a.Labels) > 0 {
		lines = append(lines, "• Metadata:")
		keys := make([]string, 0, len(a.Labels))
		for k := range a.Labels {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			lines = append(lines, "    • "+k+": "+a.Labels[k])
		}
	}
	bullet("Timestamp", a.Timestamp().Format(time.RFC3339))

	return message{Text: strings.Join(lines, "\n"), Username: w.username, Channel: w.channel}
}

// jobRef renders the job id, as a status link when a base URL is configured.
func (w *Webhook) jobRef(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ""
	}
	label := mrkdwnEscaper.Replace(jobID)
	if w.statusBase == nil {
		return label
	}
	return fmt.Sprintf("<%s|%s>", w.statusBase.JoinPath(jobID, "status").String(), label)
}
