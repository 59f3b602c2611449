// Package steamspy is a thin client for the SteamSpy appdetails endpoint,
// used to show third-party review counts next to our own ratings.
package steamspy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://steamspy.com/api.php"

// ErrUnavailable is the only error callers ever see for a degraded
// upstream: transport failure, non-200 status or a body we cannot parse.
// Pages render a placeholder instead of failing.
var ErrUnavailable = errors.New("steamspy stats unavailable")

// Stats is the normalized review summary for one Steam app.
type Stats struct {
	Positive     int     `json:"positive_reviews"`
	Negative     int     `json:"negative_reviews"`
	Total        int     `json:"total_reviews"`
	OverallScore float64 `json:"overall_score"` // percent positive, 0 when no reviews
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client with a hard request timeout. No retries and no
// caching: the endpoint either answers quickly or the page moves on.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL is NewClient pointed at a different endpoint, for
// tests and proxying setups.
func NewClientWithBaseURL(timeout time.Duration, baseURL string) *Client {
	c := NewClient(timeout)
	c.baseURL = baseURL
	return c
}

type appDetailsResponse struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// FetchReviewStats returns review statistics for the given Steam app id,
// or ErrUnavailable. It never panics and never surfaces a transport error
// directly.
func (c *Client) FetchReviewStats(ctx context.Context, appID int64) (*Stats, error) {
	url := fmt.Sprintf("%s?request=appdetails&appid=%d", c.baseURL, appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrUnavailable
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, ErrUnavailable
	}

	var out appDetailsResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, ErrUnavailable
	}

	stats := &Stats{
		Positive: out.Positive,
		Negative: out.Negative,
		Total:    out.Positive + out.Negative,
	}
	if stats.Total > 0 {
		stats.OverallScore = float64(stats.Positive) / float64(stats.Total) * 100
	}
	return stats, nil
}
