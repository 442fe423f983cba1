package config

import "strings"

// ObservabilityConfig groups configuration that controls metrics emission
// and failure notifications.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks such as StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// ObservabilityNotificationsConfig controls delivery of case failure
// notifications to external sinks. A sink is active only when its
// required credential is present.
type ObservabilityNotificationsConfig struct {
	SlackWebhookURL     string `env:"OBSERVABILITY_NOTIFY_SLACK_WEBHOOK_URL"  envDefault:""`
	SlackChannel        string `env:"OBSERVABILITY_NOTIFY_SLACK_CHANNEL"      envDefault:""`
	SlackUsername       string `env:"OBSERVABILITY_NOTIFY_SLACK_USERNAME"     envDefault:"neurotriage"`
	PagerDutyRoutingKey string `env:"OBSERVABILITY_NOTIFY_PAGERDUTY_ROUTING_KEY" envDefault:""`
	PagerDutySource     string `env:"OBSERVABILITY_NOTIFY_PAGERDUTY_SOURCE"   envDefault:"neurotriage"`
	RetryLimit          int    `env:"OBSERVABILITY_NOTIFY_RETRY_LIMIT"        envDefault:"2"`
	CaseURLPrefix       string `env:"OBSERVABILITY_NOTIFY_CASE_URL_PREFIX"    envDefault:""`
}

// Sanitize normalises notification configuration values.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	c.SlackWebhookURL = strings.TrimSpace(c.SlackWebhookURL)
	c.PagerDutyRoutingKey = strings.TrimSpace(c.PagerDutyRoutingKey)
	c.CaseURLPrefix = strings.TrimRight(strings.TrimSpace(c.CaseURLPrefix), "/")
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
}

// SlackEnabled reports whether the Slack sink is configured.
func (c *ObservabilityNotificationsConfig) SlackEnabled() bool {
	return c.SlackWebhookURL != ""
}

// PagerDutyEnabled reports whether the PagerDuty sink is configured.
func (c *ObservabilityNotificationsConfig) PagerDutyEnabled() bool {
	return c.PagerDutyRoutingKey != ""
}
