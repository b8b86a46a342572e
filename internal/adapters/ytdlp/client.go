// Package ytdlp implements ports.Extractor on top of the local yt-dlp
// binary. Profile listings use flat-playlist mode (no per-video pages);
// metrics use a full single-video JSON dump.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tokwatch/internal/core/domain"
	"tokwatch/internal/core/ports"
)

const (
	profileURLBase = "https://www.tiktok.com/"
	callTimeout    = 2 * time.Minute
	listingLimit   = "1-30"
)

// Client shells out to yt-dlp.
type Client struct {
	binaryPath string
}

// NewClient creates a client using yt-dlp from PATH.
func NewClient() *Client {
	return &Client{binaryPath: "yt-dlp"}
}

// ListRecentItems lists the posts visible on the account's profile page,
// newest first.
func (c *Client) ListRecentItems(ctx context.Context, account string) ([]ports.ItemSummary, error) {
	url := profileURLBase + account
	out, stderr, err := c.run(ctx, "-J", "--flat-playlist", "--playlist-items", listingLimit, "--no-warnings", url)
	if err != nil {
		return nil, classifyListingError(account, stderr, err)
	}
	return parseListing(out, account)
}

// FetchMetrics fetches engagement counters for one post URL.
func (c *Client) FetchMetrics(ctx context.Context, itemURL string) (*domain.ItemMetrics, error) {
	out, stderr, err := c.run(ctx, "-J", "--skip-download", "--no-warnings", itemURL)
	if err != nil {
		return nil, classifyMetricsError(itemURL, stderr, err)
	}
	return parseMetrics(out)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, stderr.String(), err
	}
	return out.Bytes(), stderr.String(), nil
}

type listingEntry struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type listingDoc struct {
	Entries []listingEntry `json:"entries"`
}

func parseListing(data []byte, account string) ([]ports.ItemSummary, error) {
	var doc listingDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yt-dlp listing for %s: %w", account, err)
	}
	items := make([]ports.ItemSummary, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if e.ID == "" {
			continue
		}
		url := e.URL
		if url == "" {
			url = fmt.Sprintf("%s%s/video/%s", profileURLBase, account, e.ID)
		}
		items = append(items, ports.ItemSummary{ID: e.ID, Title: e.Title, URL: url})
	}
	return items, nil
}

type metricsDoc struct {
	ViewCount    *int64 `json:"view_count"`
	LikeCount    *int64 `json:"like_count"`
	CommentCount *int64 `json:"comment_count"`
	RepostCount  *int64 `json:"repost_count"`
	SaveCount    *int64 `json:"save_count"`
}

func parseMetrics(data []byte) (*domain.ItemMetrics, error) {
	var doc metricsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metrics: %w", err)
	}
	return &domain.ItemMetrics{
		Views:    doc.ViewCount,
		Likes:    doc.LikeCount,
		Comments: doc.CommentCount,
		Shares:   doc.RepostCount,
		Saves:    doc.SaveCount,
	}, nil
}

func classifyListingError(account, stderr string, err error) error {
	msg := strings.ToLower(stderr)
	switch {
	case containsAny(msg, "not found", "404", "does not exist", "unavailable"):
		return fmt.Errorf("%w: %s: %s", ports.ErrAccountNotFound, account, firstLine(stderr))
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return fmt.Errorf("%w: %s: %s", ports.ErrRateLimited, account, firstLine(stderr))
	default:
		return fmt.Errorf("yt-dlp listing failed for %s: %w: %s", account, err, firstLine(stderr))
	}
}

func classifyMetricsError(itemURL, stderr string, err error) error {
	msg := strings.ToLower(stderr)
	switch {
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return fmt.Errorf("%w: %s: %s", ports.ErrRateLimited, itemURL, firstLine(stderr))
	case containsAny(msg, "not found", "404", "does not exist", "unavailable"):
		return fmt.Errorf("%w: %s: %s", ports.ErrNotYetAvailable, itemURL, firstLine(stderr))
	default:
		return fmt.Errorf("yt-dlp metrics failed for %s: %w: %s", itemURL, err, firstLine(stderr))
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
