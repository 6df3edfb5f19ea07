package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/retry"
)

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchTool performs web searches through SerpAPI.
type WebSearchTool struct {
	client     *http.Client
	apiKey     string
	maxResults int
	baseURL    string
}

// NewWebSearchTool creates a new web search tool.
func NewWebSearchTool(apiKey string) *WebSearchTool {
	return &WebSearchTool{
		client:     &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		maxResults: 10,
		baseURL:    "https://serpapi.com/search",
	}
}

// SetBaseURL overrides the search endpoint, used by tests.
func (t *WebSearchTool) SetBaseURL(u string) {
	t.baseURL = u
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Searches the web and returns relevant results. Useful for CVE lookups, documentation, default credentials and current information."
}

func (t *WebSearchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "The search query",
				},
				"num_results": {
					Type:        genai.TypeInteger,
					Description: "Number of results to return (default 5, max 10)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *WebSearchTool) Validate(args map[string]any) error {
	query, err := GetString(args, "query")
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return errs.New("query must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	if t.apiKey == "" {
		return errs.New(
			"web search API key not configured",
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions("set SERPAPI_API_KEY or api.serpapi_key in the config file"),
		)
	}
	return nil
}

// RetryOn opts web search into the resilience layer for transient network
// failures.
func (t *WebSearchTool) RetryOn(err error) bool {
	return retry.IsTransientError(err) || errs.IsRecoverable(err)
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	query, _ := GetString(args, "query")
	numResults := GetIntDefault(args, "num_results", 5)
	if numResults > t.maxResults {
		numResults = t.maxResults
	}
	if numResults < 1 {
		numResults = 5
	}

	results, err := t.search(ctx, query, numResults)
	if err != nil {
		return ToolResult{}, err
	}

	if len(results) == 0 {
		return NewSuccessResultWithData("No results found for the query.", map[string]any{
			"query": query,
			"count": 0,
		}), nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Search results for: %s\n\n", query))
	for i, r := range results {
		output.WriteString(fmt.Sprintf("%d. %s\n   %s\n", i+1, r.Title, r.URL))
		if r.Snippet != "" {
			output.WriteString(fmt.Sprintf("   %s\n", r.Snippet))
		}
		output.WriteString("\n")
	}

	resultsJSON, _ := json.Marshal(results)
	return NewSuccessResultWithData(output.String(), map[string]any{
		"query":   query,
		"count":   len(results),
		"results": string(resultsJSON),
	}), nil
}

// search queries SerpAPI. The API key travels only in the request itself,
// never in error messages.
func (t *WebSearchTool) search(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("num", fmt.Sprintf("%d", numResults))
	safeURL := fmt.Sprintf("%s?%s", t.baseURL, params.Encode())

	params.Set("api_key", t.apiKey)
	fullURL := fmt.Sprintf("%s?%s", t.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errs.New(
			fmt.Sprintf("failed to create request for %s", safeURL),
			errs.CategoryNetwork, errs.CodeNetworkError,
			errs.WithCause(err),
		)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errs.New(
			fmt.Sprintf("request to %s failed", safeURL),
			errs.CategoryNetwork, errs.CodeNetworkError,
			errs.Recoverable(),
			errs.WithCause(err),
			errs.WithSuggestions("check network connectivity and retry"),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errs.New(
			fmt.Sprintf("search API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			errs.CategoryNetwork, errs.CodeNetworkError,
			errs.Recoverable(),
		)
	}

	var data struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errs.New(
			"failed to parse search response",
			errs.CategoryNetwork, errs.CodeNetworkError,
			errs.WithCause(err),
		)
	}
	if data.Error != "" {
		return nil, errs.New(
			fmt.Sprintf("search API error: %s", data.Error),
			errs.CategoryNetwork, errs.CodeNetworkError,
		)
	}

	results := make([]SearchResult, 0, len(data.OrganicResults))
	for _, r := range data.OrganicResults {
		results = append(results, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}
