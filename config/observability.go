package config

import (
	"strings"
	"time"
)

const serviceName = "jobmatch"

// ObservabilityConfig groups logging, metrics and on-call alerting.
type ObservabilityConfig struct {
	Logging LoggingConfig
	Metrics MetricsConfig
	Alerts  AlertsConfig
}

func (c *ObservabilityConfig) Sanitize() {
	c.Logging.Sanitize()
	c.Metrics.Sanitize()
	c.Alerts.Sanitize()
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Unknown values fall back to info.
	Level     string `env:"LOG_LEVEL"      envDefault:"info"`
	Format    string `env:"LOG_FORMAT"     envDefault:"json"`
	AddSource bool   `env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// Sanitize lowercases the selectors; any format other than text means json.
func (c *LoggingConfig) Sanitize() {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if strings.EqualFold(strings.TrimSpace(c.Format), "text") {
		c.Format = "text"
	} else {
		c.Format = "json"
	}
}

// MetricsConfig points the DogStatsD client at an agent.
type MetricsConfig struct {
	Enabled       bool   `env:"METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"METRICS_PREFIX"         envDefault:"jobmatch"`
	// Tags are attached to every metric, written as "env:prod,region:us".
	Tags map[string]string `env:"METRICS_TAGS"`
}

// Sanitize turns metrics off when no agent address is left after trimming.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")
	c.Enabled = c.Enabled && c.StatsdAddress != ""
}

// Active reports whether metrics should leave the process.
func (c MetricsConfig) Active() bool {
	return c.Enabled && strings.TrimSpace(c.StatsdAddress) != ""
}

// AlertsConfig controls alerts for stage tasks that use up their retries.
type AlertsConfig struct {
	Enabled   bool                 `env:"ALERTS_ENABLED" envDefault:"false"`
	Timeout   time.Duration        `env:"ALERTS_TIMEOUT" envDefault:"5s"`
	Retries   int                  `env:"ALERTS_RETRIES" envDefault:"3"`
	Slack     SlackAlertConfig     `envPrefix:"ALERTS_SLACK_"`
	PagerDuty PagerDutyAlertConfig `envPrefix:"ALERTS_PAGERDUTY_"`
}

// Sanitize keeps a sink enabled only when alerting as a whole is on and the sink has its
// credential.
func (c *AlertsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.Retries = max(c.Retries, 0)

	c.Slack.WebhookURL = strings.TrimSpace(c.Slack.WebhookURL)
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	c.Slack.StatusBaseURL = strings.TrimRight(strings.TrimSpace(c.Slack.StatusBaseURL), "/")
	c.Slack.Username = orDefault(c.Slack.Username, serviceName)
	c.Slack.Enabled = c.Enabled && c.Slack.Enabled && c.Slack.WebhookURL != ""

	c.PagerDuty.RoutingKey = strings.TrimSpace(c.PagerDuty.RoutingKey)
	c.PagerDuty.Source = orDefault(c.PagerDuty.Source, serviceName)
	c.PagerDuty.Component = orDefault(c.PagerDuty.Component, "pipeline")
	c.PagerDuty.Enabled = c.Enabled && c.PagerDuty.Enabled && c.PagerDuty.RoutingKey != ""
}

type SlackAlertConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"jobmatch"`
	// StatusBaseURL prefixes job status links; HTTP_BASE_URL + "/task" when empty.
	StatusBaseURL string `env:"STATUS_BASE_URL"`
}

type PagerDutyAlertConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"jobmatch"`
	Component  string `env:"COMPONENT"   envDefault:"pipeline"`
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
