// Package apify implements ports.Extractor against the Apify actor REST
// API, using the TikTok scraper actor. Each call starts an actor run, polls
// it to completion, and reads the default dataset.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tokwatch/internal/core/domain"
	"tokwatch/internal/core/ports"
)

const (
	apifyBaseURL  = "https://api.apify.com/v2"
	tiktokActorID = "GdWCkxBtKWOsKjdch" // clockworks~tiktok-scraper
	pollInterval  = 3 * time.Second
)

// Client talks to the Apify REST API.
type Client struct {
	apiToken string
	client   *http.Client
}

// NewClient creates a Client with the given API token.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("apify API token is empty")
	}
	return &Client{
		apiToken: token,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// ListRecentItems lists the account's recent posts via a profile scrape.
func (c *Client) ListRecentItems(ctx context.Context, account string) ([]ports.ItemSummary, error) {
	input := map[string]any{
		"profiles":       []string{strings.TrimPrefix(account, "@")},
		"resultsPerPage": 30,
	}
	items, err := c.runActor(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("apify listing failed for %s: %w", account, err)
	}
	summaries := make([]ports.ItemSummary, 0, len(items))
	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		title, _ := item["text"].(string)
		url, _ := item["webVideoUrl"].(string)
		if url == "" {
			url = fmt.Sprintf("https://www.tiktok.com/%s/video/%s", account, id)
		}
		summaries = append(summaries, ports.ItemSummary{ID: id, Title: title, URL: url})
	}
	return summaries, nil
}

// FetchMetrics scrapes a single post URL for its engagement counters.
func (c *Client) FetchMetrics(ctx context.Context, itemURL string) (*domain.ItemMetrics, error) {
	input := map[string]any{
		"postURLs":       []string{itemURL},
		"resultsPerPage": 1,
	}
	items, err := c.runActor(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("apify metrics failed for %s: %w", itemURL, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotYetAvailable, itemURL)
	}
	item := items[0]
	return &domain.ItemMetrics{
		Views:    numberField(item, "playCount"),
		Likes:    numberField(item, "diggCount"),
		Comments: numberField(item, "commentCount"),
		Shares:   numberField(item, "shareCount"),
		Saves:    numberField(item, "collectCount"),
	}, nil
}

// runActor starts an actor run, waits for it to finish, and returns the
// dataset items.
func (c *Client) runActor(ctx context.Context, input map[string]any) ([]map[string]any, error) {
	runID, err := c.startActorRun(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("start actor run: %w", err)
	}
	raw, err := c.waitAndGetResults(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse dataset items: %w", err)
	}
	return items, nil
}

func (c *Client) startActorRun(ctx context.Context, input map[string]any) (string, error) {
	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", apifyBaseURL, tiktokActorID, c.apiToken)
	body, _ := json.Marshal(input)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ports.ErrRateLimited
	}
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.ID, nil
}

func (c *Client) waitAndGetResults(ctx context.Context, runID string) ([]byte, error) {
	statusURL := fmt.Sprintf("%s/actor-runs/%s?token=%s", apifyBaseURL, runID, c.apiToken)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		var status struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body.Close()

		switch status.Data.Status {
		case "SUCCEEDED":
			return c.getDatasetItems(ctx, status.Data.DefaultDatasetID)
		case "FAILED", "ABORTED", "TIMED-OUT":
			return nil, fmt.Errorf("actor run ended with status %s", status.Data.Status)
		}
		// Still running, keep polling.
	}
}

func (c *Client) getDatasetItems(ctx context.Context, datasetID string) ([]byte, error) {
	url := fmt.Sprintf("%s/datasets/%s/items?token=%s", apifyBaseURL, datasetID, c.apiToken)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func numberField(item map[string]any, key string) *int64 {
	v, ok := item[key].(float64)
	if !ok {
		return nil
	}
	n := int64(v)
	return &n
}
