package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultMaxResults = 6
	maxResultsCap     = 20
)

// WebSearchAgent queries the DuckDuckGo Instant Answer API and normalizes
// the response into a WebSearchResult.
//
// Grounded on
// _examples/original_source/langbridge/.../agents/web_search/agent.py's
// DuckDuckGoInstantAnswerProvider, adapted from httpx to
// hashicorp/go-retryablehttp for built-in backoff on transient failures.
type WebSearchAgent struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewWebSearchAgent builds a WebSearchAgent; baseURL defaults to the public
// DuckDuckGo Instant Answer endpoint when empty.
func NewWebSearchAgent(baseURL string) *WebSearchAgent {
	if baseURL == "" {
		baseURL = "https://api.duckduckgo.com/"
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &WebSearchAgent{client: client, baseURL: baseURL}
}

// Search runs one web search pass (satisfies orchestrator.WebSearcher).
func (a *WebSearchAgent) Search(ctx context.Context, query string, maxResults int, region, safeSearch string, timeboxSeconds int) (*WebSearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}
	if timeboxSeconds <= 0 {
		timeboxSeconds = 10
	}

	reqURL, err := a.buildURL(query, region, safeSearch)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeboxSeconds)*time.Second)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", "analystcore-web-search/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return &WebSearchResult{Query: query, Provider: "duckduckgo", WeakResults: true,
			Warnings: []string{fmt.Sprintf("web search request failed: %v", err)}}, nil
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &WebSearchResult{Query: query, Provider: "duckduckgo", WeakResults: true,
			Warnings: []string{fmt.Sprintf("decoding search response: %v", err)}}, nil
	}

	items := parseInstantAnswer(query, payload, maxResults)
	result := &WebSearchResult{
		Query:       query,
		Provider:    "duckduckgo",
		Results:     items,
		WeakResults: len(items) == 0,
	}
	if len(items) == 0 {
		result.Warnings = []string{fmt.Sprintf("no web results found for %q", query)}
	}
	return result, nil
}

func (a *WebSearchAgent) buildURL(query, region, safeSearch string) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_redirect", "1")
	q.Set("no_html", "1")
	q.Set("t", "analystcore")
	if region != "" {
		q.Set("kl", region)
	}
	if safeValue, ok := safeSearchParam(safeSearch); ok {
		q.Set("kp", safeValue)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func safeSearchParam(safeSearch string) (string, bool) {
	switch strings.ToLower(safeSearch) {
	case "off":
		return "-1", true
	case "moderate":
		return "1", true
	case "strict":
		return "2", true
	default:
		return "", false
	}
}

// parseInstantAnswer walks DuckDuckGo's Abstract/Answer/Definition/
// RelatedTopics fields in the same priority order as the reference
// provider's _parse_results.
func parseInstantAnswer(query string, payload map[string]any, maxResults int) []WebSearchResultItem {
	var items []WebSearchResultItem
	seen := map[string]bool{}

	heading := stringField(payload, "Heading")

	add := func(title, rawURL, snippet, source string) {
		if rawURL == "" || seen[rawURL] {
			return
		}
		seen[rawURL] = true
		if title == "" {
			title = rawURL
		}
		if source == "" {
			source = sourceFromURL(rawURL)
		}
		items = append(items, WebSearchResultItem{
			Title: strings.TrimSpace(title), URL: rawURL,
			Snippet: strings.TrimSpace(snippet), Source: strings.TrimSpace(source), Rank: len(items) + 1,
		})
	}

	if text, u := stringField(payload, "AbstractText"), stringField(payload, "AbstractURL"); text != "" && u != "" {
		add(firstNonEmpty(heading, stringField(payload, "AbstractSource")), u, text, stringField(payload, "AbstractSource"))
	}
	if text, u := stringField(payload, "Answer"), stringField(payload, "AnswerURL"); text != "" && u != "" {
		add(firstNonEmpty(heading, stringField(payload, "AnswerType")), u, text, stringField(payload, "AnswerType"))
	}
	if text, u := stringField(payload, "Definition"), stringField(payload, "DefinitionURL"); text != "" && u != "" {
		add(firstNonEmpty(heading, stringField(payload, "DefinitionSource")), u, text, stringField(payload, "DefinitionSource"))
	}

	for _, entry := range relatedTopics(payload["RelatedTopics"]) {
		if len(items) >= maxResults {
			break
		}
		text, u := stringField(entry, "Text"), stringField(entry, "FirstURL")
		if text == "" || u == "" {
			continue
		}
		title := text
		if idx := strings.Index(text, " - "); idx >= 0 {
			title = text[:idx]
		}
		add(title, u, text, "")
	}

	if len(items) > maxResults {
		items = items[:maxResults]
	}
	return items
}

func relatedTopics(raw any) []map[string]any {
	list, _ := raw.([]any)
	var out []map[string]any
	for _, v := range list {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if nested, ok := entry["Topics"]; ok {
			out = append(out, relatedTopics(nested)...)
			continue
		}
		out = append(out, entry)
	}
	return out
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sourceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
