package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tokwatch/internal/core/domain"
	"tokwatch/internal/core/ports"
)

func intp(v int64) *int64 { return &v }

func capturePayload(t *testing.T, send func(n *Notifier) error) map[string]any {
	t.Helper()
	var captured map[string]any
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := send(NewNotifier(server.URL)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.HasPrefix(contentType, "application/json") {
		t.Fatalf("expected JSON content type, got %q", contentType)
	}
	return captured
}

func TestNotifyNewPostPayload(t *testing.T) {
	payload := capturePayload(t, func(n *Notifier) error {
		return n.NotifyNewPost(context.Background(), ports.NewPostNotice{
			Account:    "@a",
			ItemID:     "item1",
			URL:        "https://example.com/item1",
			Title:      "first post",
			DetectedAt: "2024-06-01 12:00 UTC",
		})
	})
	text, _ := payload["text"].(string)
	if !strings.Contains(text, "@a") || !strings.Contains(text, "first post") {
		t.Fatalf("fallback text missing fields: %q", text)
	}
	blocks, _ := payload["blocks"].([]any)
	if len(blocks) == 0 {
		t.Fatalf("expected Block Kit blocks")
	}
	raw, _ := json.Marshal(payload)
	if !strings.Contains(string(raw), "https://example.com/item1") {
		t.Fatalf("payload missing item link")
	}
}

func TestNotifyAnalyticsFormatsMissingCounters(t *testing.T) {
	payload := capturePayload(t, func(n *Notifier) error {
		return n.NotifyAnalytics(context.Background(), ports.AnalyticsNotice{
			Account:    "@a",
			URL:        "https://example.com/item1",
			Title:      "first post",
			DetectedAt: "2024-06-01 12:00 UTC",
			Metrics: domain.ItemMetrics{
				Views: intp(1234567),
				// Remaining counters unavailable.
			},
		})
	})
	raw, _ := json.Marshal(payload)
	if !strings.Contains(string(raw), "1,234,567") {
		t.Fatalf("expected thousands-separated view count in %s", raw)
	}
	if !strings.Contains(string(raw), "n/a") {
		t.Fatalf("expected missing counters rendered as n/a")
	}
}

func TestNotifierReportsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer server.Close()

	err := NewNotifier(server.URL).NotifyAlert(context.Background(), "boom")
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		in   *int64
		want string
	}{
		{nil, "n/a"},
		{intp(0), "0"},
		{intp(999), "999"},
		{intp(1000), "1,000"},
		{intp(1234567), "1,234,567"},
		{intp(-4200), "-4,200"},
	}
	for _, tc := range cases {
		if got := formatCount(tc.in); got != tc.want {
			t.Errorf("formatCount(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
