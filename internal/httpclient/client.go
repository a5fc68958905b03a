package httpclient

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/version"
	"github.com/rivo/uniseg"
)

const (
	// DefaultTimeout bounds a single backend request. Large .po downloads from
	// object storage stay well below it.
	DefaultTimeout = 5 * time.Minute
	// Transport tuning for stable, long-lived connections.
	MaxIdleConns          = 100
	MaxIdleConnsPerHost   = 20
	IdleConnTimeout       = 120 * time.Second
	TLSHandshakeTimeout   = 30 * time.Second
	ExpectContinueTimeout = 2 * time.Second
	// SnippetGraphemes caps response text echoed into errors and logs.
	SnippetGraphemes = 300
)

var (
	defaultClient     *http.Client
	defaultClientOnce sync.Once
	overrideClient    *http.Client
)

// NewClient returns a new http.Client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          MaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// GetDefaultClient returns a standardized http.Client for use across the application.
func GetDefaultClient() *http.Client {
	if overrideClient != nil {
		return overrideClient
	}
	defaultClientOnce.Do(func() {
		defaultClient = NewClient(DefaultTimeout)
	})
	return defaultClient
}

// SetDefaultClientForTesting overrides the singleton client for tests.
// It returns a restore function to reset the previous client.
func SetDefaultClientForTesting(client *http.Client) func() {
	prevOverride := overrideClient
	overrideClient = client
	return func() {
		overrideClient = prevOverride
	}
}

// NoRedirect returns a copy of client that hands 3xx responses back to the
// caller instead of following them. The copy shares the transport.
func NoRedirect(client *http.Client) *http.Client {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}

// NewResty wraps client in a resty client rooted at baseURL.
func NewResty(baseURL string, client *http.Client) *resty.Client {
	r := resty.NewWithClient(client).
		SetHeader("User-Agent", version.UserAgent())
	if baseURL != "" {
		r.SetBaseURL(strings.TrimRight(baseURL, "/"))
	}
	return r
}

// Snippet returns at most limit grapheme clusters of body, never splitting a
// multi-byte character.
func Snippet(body string, limit int) string {
	body = strings.TrimSpace(body)
	if limit <= 0 || uniseg.GraphemeClusterCount(body) <= limit {
		return body
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(body)
	for n := 0; n < limit && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("...")
	return b.String()
}

// StatusError classifies a non-2xx response. Authentication failures are kept
// apart from other transport failures so the CLI can point at credentials.
func StatusError(op string, resp *resty.Response) error {
	cause := fmt.Errorf("%s: %s; body: %s", op, resp.Status(), Snippet(resp.String(), SnippetGraphemes))
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.New(
			apperrors.KindAuth,
			fmt.Sprintf("%s: authentication/authorization failed (%d); please verify your credentials.", op, resp.StatusCode()),
			cause,
		)
	default:
		return apperrors.New(
			apperrors.KindTransport,
			fmt.Sprintf("%s: backend returned %d", op, resp.StatusCode()),
			cause,
		)
	}
}

// RequestError wraps a failure to reach the backend at all.
func RequestError(op string, err error) error {
	return apperrors.New(
		apperrors.KindTransport,
		fmt.Sprintf("%s: request failed due to a network/runtime error.", op),
		fmt.Errorf("%s: %w", op, err),
	)
}
