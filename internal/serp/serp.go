// Package serp fetches the top organic search results for a keyword.
package serp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonathan/keyword-miner/internal/resilience"
)

// MaxResults is the largest page the search API returns.
const MaxResults = 10

// Result is one organic search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher returns up to n results for keyword in a language.
type Searcher interface {
	Search(ctx context.Context, keyword, lang string, n int) ([]Result, error)
}

// GoogleSearcher queries a Programmable Search Engine.
type GoogleSearcher struct {
	svc   *customsearch.Service
	cx    string
	retry resilience.Policy
}

// NewGoogleSearcher creates a searcher for the engine cx. Extra options are
// passed to the API client.
func NewGoogleSearcher(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleSearcher, error) {
	if apiKey == "" || cx == "" {
		return nil, eris.New("serp: api key and engine id are required")
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "serp: create service")
	}
	return &GoogleSearcher{
		svc:   svc,
		cx:    cx,
		retry: resilience.DefaultPolicy().Logged("search", "cse.list"),
	}, nil
}

// WithRetry replaces the retry policy.
func (g *GoogleSearcher) WithRetry(p resilience.Policy) *GoogleSearcher {
	g.retry = p
	return g
}

// Search implements Searcher.
func (g *GoogleSearcher) Search(ctx context.Context, keyword, lang string, n int) ([]Result, error) {
	n = min(max(n, 1), MaxResults)

	call := g.svc.Cse.List().Cx(g.cx).Q(keyword).Num(int64(n))
	if base := baseLanguage(lang); base != "" {
		call = call.Hl(base).Lr("lang_" + base)
	}

	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*customsearch.Search, error) {
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, classify(eris.Wrapf(err, "serp: search %q", keyword))
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		snippet := item.Snippet
		if item.HtmlSnippet != "" {
			snippet = HTMLToText(item.HtmlSnippet)
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Snippet: cleanWhitespace(snippet),
		})
	}
	return results, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyStatus(err, apiErr.Code)
	}
	return err
}

func baseLanguage(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// HTMLToText strips markup and entities from a result snippet.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return cleanWhitespace(doc.Text())
}

func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Format renders results as a numbered list for a prompt.
func Format(results []Result) string {
	if len(results) == 0 {
		return "(no results)"
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
