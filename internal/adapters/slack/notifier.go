// Package slack implements ports.Notifier against a Slack incoming webhook
// using Block Kit payloads. Delivery is best-effort: callers log failures
// and move on, because state is the source of truth and notifications are
// advisory.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tokwatch/internal/core/ports"
)

// Notifier posts JSON payloads to a Slack incoming webhook URL.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// NewNotifier creates a Notifier for the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type block map[string]any

func header(text string) block {
	return block{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": text, "emoji": true},
	}
}

func section(text string) block {
	return block{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func fieldSection(fields ...string) block {
	items := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		items = append(items, map[string]any{"type": "mrkdwn", "text": f})
	}
	return block{"type": "section", "fields": items}
}

func contextLine(text string) block {
	return block{
		"type":     "context",
		"elements": []map[string]any{{"type": "mrkdwn", "text": text}},
	}
}

// NotifyNewPost announces a newly detected post.
func (n *Notifier) NotifyNewPost(ctx context.Context, notice ports.NewPostNotice) error {
	payload := map[string]any{
		"text": fmt.Sprintf("New post detected: %s - %s", notice.Account, notice.Title),
		"blocks": []block{
			header("📱 New TikTok post detected"),
			fieldSection(
				"*Account:*\n"+notice.Account,
				"*Detected at:*\n"+notice.DetectedAt,
			),
			section("*Title:*\n" + notice.Title),
			section(fmt.Sprintf("*Link:*\n<%s|Watch video>", notice.URL)),
			contextLine("Analytics will be collected 24 hours after detection"),
		},
	}
	return n.send(ctx, payload)
}

// NotifyAnalytics reports the collected 24h metrics for a post.
func (n *Notifier) NotifyAnalytics(ctx context.Context, notice ports.AnalyticsNotice) error {
	m := notice.Metrics
	payload := map[string]any{
		"text": fmt.Sprintf("24h analytics: %s - %s", notice.Account, notice.Title),
		"blocks": []block{
			header("📊 24-hour analytics"),
			fieldSection(
				"*Account:*\n"+notice.Account,
				"*Detected at:*\n"+notice.DetectedAt,
			),
			section("*Title:*\n" + notice.Title),
			fieldSection(
				"*👀 Views:*\n"+formatCount(m.Views),
				"*❤️ Likes:*\n"+formatCount(m.Likes),
				"*💬 Comments:*\n"+formatCount(m.Comments),
				"*🔄 Shares:*\n"+formatCount(m.Shares),
			),
			fieldSection("*🔖 Saves:*\n" + formatCount(m.Saves)),
			section(fmt.Sprintf("<%s|Watch video>", notice.URL)),
		},
	}
	return n.send(ctx, payload)
}

// NotifyAlert sends an escalation message.
func (n *Notifier) NotifyAlert(ctx context.Context, message string) error {
	payload := map[string]any{
		"text": "⚠️ TikTok monitoring alert: " + message,
		"blocks": []block{
			header("⚠️ Monitoring alert"),
			section("```" + message + "```"),
		},
	}
	return n.send(ctx, payload)
}

// NotifyWeeklyReport sends the weekly status summary.
func (n *Notifier) NotifyWeeklyReport(ctx context.Context, accounts []string, knownItems, pendingJobs, completedJobs int) error {
	payload := map[string]any{
		"text": "Weekly TikTok monitoring report",
		"blocks": []block{
			header("🗓 Weekly monitoring report"),
			section("Watching the accounts below for new posts, collecting engagement metrics 24 hours after each detection, and alerting on repeated failures."),
			section("*Monitored accounts:*\n" + strings.Join(accounts, "\n")),
			fieldSection(
				"*Known posts:*\n"+strconv.Itoa(knownItems),
				"*Pending analytics:*\n"+strconv.Itoa(pendingJobs),
				"*Collected analytics:*\n"+strconv.Itoa(completedJobs),
			),
		},
	}
	return n.send(ctx, payload)
}

func (n *Notifier) send(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func formatCount(v *int64) string {
	if v == nil {
		return "n/a"
	}
	s := strconv.FormatInt(*v, 10)
	// Insert thousands separators.
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
