package frankfurter

import (
	"net/http"
	"net/url"

	"pricesync/internal/rates"
)

const baseURL = "https://api.frankfurter.app"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=frankfurter_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the Frankfurter reference-rate API. It needs no credential.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	pair  rates.Pair
	name  string
}

// Option is a configuration option for the Frankfurter client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithPair overrides the EUR->USD default.
func WithPair(p rates.Pair) Option {
	return func(c *Client) {
		c.pair = p.OrDefault()
	}
}

// WithName overrides the provider name reported in quotes.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// New creates a Frankfurter client.
func New(options ...Option) *Client {
	var c = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		pair:       rates.DefaultPair,
		name:       "frankfurter",
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }
