package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPHeadlineProvider pulls recent headlines from a news API that answers
// GET <endpoint>?q=<query> with {"articles": [{"title": "..."}]}.
type HTTPHeadlineProvider struct {
	endpoint string
	apiKey   string
	limit    int
	client   *http.Client
}

func NewHTTPHeadlineProvider(endpoint, apiKey string, limit int) *HTTPHeadlineProvider {
	if limit <= 0 {
		limit = 10
	}
	return &HTTPHeadlineProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		limit:    limit,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPHeadlineProvider) Headlines(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad news endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("pageSize", fmt.Sprintf("%d", p.limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching headlines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned status %d", resp.StatusCode)
	}

	var body struct {
		Articles []struct {
			Title string `json:"title"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding news response: %w", err)
	}

	titles := make([]string, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title != "" {
			titles = append(titles, a.Title)
		}
	}
	return titles, nil
}
