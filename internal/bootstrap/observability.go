package bootstrap

import (
	"log/slog"

	"github.com/LeHak0/Neuro-Triage/config"
	"github.com/LeHak0/Neuro-Triage/internal/observability/notify"
	"github.com/LeHak0/Neuro-Triage/internal/observability/notify/pagerduty"
	"github.com/LeHak0/Neuro-Triage/internal/observability/notify/slack"
	"github.com/LeHak0/Neuro-Triage/internal/observability/statsd"
)

// BuildMetricsSink constructs the StatsD client. The client is inert
// when metrics are disabled, so callers can use it unconditionally.
func BuildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  "neurotriage",
		Logger:  logger,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("statsd client unavailable, metrics disabled", "error", err)
		}
		return nil
	}
	return client
}

// BuildFailureNotifier assembles the case failure notifier from the
// configured sinks. Returns nil when no sink is configured.
func BuildFailureNotifier(cfg config.ObservabilityNotificationsConfig, logger *slog.Logger) *notify.Fanout {
	var sinks []notify.Sink

	if cfg.SlackEnabled() {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.SlackWebhookURL,
			Channel:       cfg.SlackChannel,
			Username:      cfg.SlackUsername,
			RetryLimit:    cfg.RetryLimit,
			CaseURLPrefix: cfg.CaseURLPrefix,
		})
		if err != nil {
			if logger != nil {
				logger.Warn("slack notifier unavailable", "error", err)
			}
		} else {
			sinks = append(sinks, client)
		}
	}

	if cfg.PagerDutyEnabled() {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDutyRoutingKey,
			Source:     cfg.PagerDutySource,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			if logger != nil {
				logger.Warn("pagerduty notifier unavailable", "error", err)
			}
		} else {
			sinks = append(sinks, client)
		}
	}

	return notify.NewFanout(sinks...)
}
