package docfetch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// DefaultRequestTimeout bounds every outbound fetch so a slow document host
// cannot block a user's turn indefinitely.
const DefaultRequestTimeout = 10 * time.Second

// Error variables for better error handling and testability
var (
	ErrUnsupportedLink  = errors.New("unsupported link type for summarization")
	ErrAuthRequired     = errors.New("authentication required: configure document credentials")
	ErrResolutionFailed = errors.New("could not resolve page identifier from link")
)

// Opts holds configuration options for the document fetcher.
type Opts struct {
	HTTPClient            *http.Client
	GoogleCredentialsPath string
	ConfluenceBaseURL     string
	ConfluenceEmail       string
	ConfluenceAPIToken    string
}

// Option configures fetcher creation.
type Option func(*Opts)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithGoogleCredentials sets the path of the stored Google credential file.
func WithGoogleCredentials(path string) Option {
	return func(o *Opts) { o.GoogleCredentialsPath = path }
}

// WithConfluenceBaseURL pins the wiki base URL instead of deriving it from
// each link.
func WithConfluenceBaseURL(baseURL string) Option {
	return func(o *Opts) { o.ConfluenceBaseURL = strings.TrimRight(baseURL, "/") }
}

// WithConfluenceAuth sets the basic-auth credentials for the wiki REST API.
func WithConfluenceAuth(email, apiToken string) Option {
	return func(o *Opts) {
		o.ConfluenceEmail = email
		o.ConfluenceAPIToken = apiToken
	}
}

// Fetcher retrieves plain text for a resolved document link.
type Fetcher struct {
	client          *http.Client
	googleCredPath  string
	confluenceBase  string
	confluenceEmail string
	confluenceToken string
}

// NewFetcher creates a document fetcher from the provided options.
func NewFetcher(opts ...Option) *Fetcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Fetcher{
		client:          client,
		googleCredPath:  cfg.GoogleCredentialsPath,
		confluenceBase:  cfg.ConfluenceBaseURL,
		confluenceEmail: cfg.ConfluenceEmail,
		confluenceToken: cfg.ConfluenceAPIToken,
	}
}

// Fetch classifies the link, retrieves its content, and returns plain text
// truncated to the summarization budget. The shared-document check runs
// first: a wiki URL could theoretically be hosted under a generic domain,
// but a docs.google.com document path is unambiguous.
func (f *Fetcher) Fetch(ctx context.Context, link string) (string, error) {
	link = CleanLink(link)
	slog.Debug("docfetch.Fetch invoked", "link", link)

	var (
		text string
		err  error
	)
	switch {
	case strings.Contains(link, "docs.google.com/document"):
		text, err = f.fetchGoogleDoc(ctx, link)
	case strings.Contains(link, "atlassian.net/wiki") || strings.Contains(strings.ToLower(link), "confluence"):
		text, err = f.fetchConfluencePage(ctx, link)
	default:
		return "", ErrUnsupportedLink
	}
	if err != nil {
		return "", err
	}
	return truncate(text, models.MaxFetchChars), nil
}

// truncate applies the hard character budget. This is a deterministic cut,
// not a smart excerpt.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// stripHTMLTags reduces markup text to plain text: tags removed, entities
// decoded, whitespace collapsed.
func stripHTMLTags(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// get performs a GET request and returns status code and body. The caller
// decides which statuses are acceptable.
func (f *Fetcher) get(ctx context.Context, url string, configure func(*http.Request)) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	if configure != nil {
		configure(req)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return resp.StatusCode, body, nil
}
