// Package snpedia fetches SNP pages from the SNPedia MediaWiki API and
// parses their wikitext into annotations.
package snpedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultAPIURL is the public SNPedia bot endpoint.
const DefaultAPIURL = "https://bots.snpedia.com/api.php"

// ErrPageNotFound is returned when the wiki has no page with the requested name.
var ErrPageNotFound = errors.New("snpedia page not found")

// Page is a raw wiki page.
type Page struct {
	Name       string
	Wikitext   string
	Categories []string
}

// Client talks to the MediaWiki parse API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL ("" for DefaultAPIURL).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// parseResponse is the JSON returned by action=parse.
type parseResponse struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Parse struct {
		Title    string `json:"title"`
		Wikitext struct {
			Text string `json:"*"`
		} `json:"wikitext"`
		Categories []struct {
			Name string `json:"*"`
		} `json:"categories"`
	} `json:"parse"`
}

// FetchPage retrieves the wikitext and categories of page name.
func (c *Client) FetchPage(ctx context.Context, name string) (*Page, error) {
	q := url.Values{}
	q.Set("action", "parse")
	q.Set("page", name)
	q.Set("format", "json")
	q.Set("prop", "wikitext|categories")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build snpedia request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snpedia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snpedia error %d: %s", resp.StatusCode, string(body))
	}

	var pr parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode snpedia response: %w", err)
	}
	if pr.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, name)
	}

	p := &Page{Name: name, Wikitext: pr.Parse.Wikitext.Text}
	for _, cat := range pr.Parse.Categories {
		p.Categories = append(p.Categories, cat.Name)
	}
	return p, nil
}
