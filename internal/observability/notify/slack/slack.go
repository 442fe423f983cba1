package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/LeHak0/Neuro-Triage/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL    string
	Channel       string
	Username      string
	Timeout       time.Duration
	RetryLimit    int
	Client        *http.Client
	CaseURLPrefix string
}

// Client delivers case failure notifications to a Slack webhook.
type Client struct {
	webhookURL    string
	channel       string
	username      string
	retryLimit    int
	caseURLPrefix string
	client        *http.Client
}

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL:    webhookURL,
		channel:       strings.TrimSpace(cfg.Channel),
		username:      fallbackString(strings.TrimSpace(cfg.Username), "neurotriage"),
		retryLimit:    retries,
		caseURLPrefix: strings.TrimSpace(cfg.CaseURLPrefix),
		client:        hc,
	}, nil
}

// SendCaseFailure posts a formatted message to Slack.
func (c *Client) SendCaseFailure(ctx context.Context, payload notify.CaseFailurePayload) error {
	msg := c.formatMessage(payload)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			// Simple linear backoff to avoid thundering retries.
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (c *Client) formatMessage(payload notify.CaseFailurePayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	text := strings.Builder{}
	writeSlackHeader(&text, payload)
	caseDisplay := c.formatCaseValue(payload.CaseID)
	appendSlackDetails(&text, payload, caseDisplay)
	appendSlackMetadata(&text, payload.Metadata)
	writeSlackTimestamp(&text, timestamp)

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}

	return drainSlackSuccess(resp)
}

func writeSlackHeader(text *strings.Builder, payload notify.CaseFailurePayload) {
	text.WriteString("*Case analysis failure*")
	if payload.JobID != "" {
		text.WriteString(" `")
		text.WriteString(payload.JobID)
		text.WriteByte('`')
	}
	if payload.Reason != "" {
		text.WriteString(" (")
		text.WriteString(payload.Reason)
		text.WriteByte(')')
	}
	text.WriteByte('\n')
}

func appendSlackDetails(text *strings.Builder, payload notify.CaseFailurePayload, caseValue string) {
	fields := []struct {
		label string
		value string
	}{
		{"Severity", fallbackString(payload.Severity, notify.SeverityCritical)},
		{"Case", caseValue},
		{"Error class", payload.ErrorClass},
		{"Error", payload.Error},
	}

	for _, field := range fields {
		appendSlackField(text, field.label, field.value)
	}
}

func (c *Client) formatCaseValue(caseID string) string {
	rawID := strings.TrimSpace(caseID)
	id := escapeSlackText(rawID)
	if id == "" {
		return ""
	}

	link := ""
	if rawID != "" {
		link = c.buildCaseLink(rawID)
	}

	if link != "" {
		return fmt.Sprintf("<%s|%s>", link, id)
	}
	return id
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func (c *Client) buildCaseLink(caseID string) string {
	prefix := strings.TrimSpace(c.caseURLPrefix)
	if prefix == "" {
		return ""
	}

	u, err := url.Parse(prefix)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	link, err := url.JoinPath(u.String(), caseID)
	if err != nil {
		return ""
	}

	return link
}

func drainSlackSuccess(resp *http.Response) error {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("drain slack response body: %w", err),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("drain slack response body: %w", err)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}
	return nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("read slack error response: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("read slack error response: %w", readErr)
	}
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func appendSlackMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := metadata[k]
		text.WriteString("    • ")
		text.WriteString(k)
		text.WriteString(": ")
		text.WriteString(v)
		text.WriteByte('\n')
	}
}

func writeSlackTimestamp(text *strings.Builder, timestamp time.Time) {
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))
}
