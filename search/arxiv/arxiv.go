// Package arxiv provides the arXiv Atom API client used by the search node.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config configures the arXiv client.
type Config struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	MaxResults int           `json:"max_results" yaml:"max_results"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	RetryCount int           `json:"retry_count" yaml:"retry_count"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// DefaultConfig returns sensible defaults for arXiv queries.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://export.arxiv.org/api/query",
		MaxResults: 5,
		Timeout:    30 * time.Second,
		RetryCount: 3,
		RetryDelay: 2 * time.Second,
	}
}

// Paper is a single arXiv search result, reduced to the fields the
// workflow retains.
type Paper struct {
	Title     string `json:"title"`
	Published string `json:"published"`
	Summary   string `json:"summary"`
	Link      string `json:"link"`
}

// Client queries the arXiv Atom API.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a new arXiv client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://export.arxiv.org/api/query"
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "arxiv")),
	}
}

// Name returns the source name.
func (c *Client) Name() string { return "arxiv" }

// Search queries arXiv for papers matching the query, newest submissions
// first. The query string is passed through URL-encoded as-is.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	params := url.Values{
		"search_query": {query},
		"start":        {"0"},
		"max_results":  {fmt.Sprintf("%d", maxResults)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	requestURL := fmt.Sprintf("%s?%s", c.config.BaseURL, params.Encode())

	c.logger.Debug("querying arXiv",
		zap.String("query", query),
		zap.Int("max_results", maxResults))

	var body []byte
	var err error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
			c.logger.Debug("retrying arXiv query", zap.Int("attempt", attempt))
		}

		body, err = c.doRequest(ctx, requestURL)
		if err == nil {
			break
		}
		c.logger.Warn("arXiv request failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		return nil, fmt.Errorf("arXiv query failed after %d retries: %w", c.config.RetryCount, err)
	}

	papers, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arXiv response: %w", err)
	}

	c.logger.Info("arXiv search completed",
		zap.String("query", query),
		zap.Int("results", len(papers)))

	return papers, nil
}

func (c *Client) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// parseFeed reduces the Atom feed to the retained paper fields. The entry
// abstract page link is preferred; the raw entry ID is the fallback.
func parseFeed(body []byte) ([]Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("XML parse error: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper := Paper{
			Title:     strings.TrimSpace(entry.Title),
			Summary:   strings.TrimSpace(entry.Summary),
			Published: entry.Published,
			Link:      entry.ID,
		}

		for _, link := range entry.Links {
			if link.Rel == "alternate" {
				paper.Link = link.Href
				break
			}
		}

		papers = append(papers, paper)
	}

	return papers, nil
}
