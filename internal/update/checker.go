package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Default configuration values.
const (
	DefaultManifestPath = "versions/latest.json"
	DefaultTimeout      = 30 * time.Second

	maxManifestSize = 1 << 20
)

// Error variables for specific error conditions.
var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrInvalidManifest  = errors.New("invalid manifest")
)

// NetworkError is returned for transport failures, timeouts, unexpected
// status codes and undecodable manifests.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ManifestClient fetches the release manifest from the update host.
type ManifestClient struct {
	baseURL      string
	manifestPath string
	userAgent    string
	httpClient   *http.Client
}

// ClientOption configures a ManifestClient.
type ClientOption func(*ManifestClient)

// WithHTTPClient sets a custom HTTP client for the manifest client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ManifestClient) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ManifestClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithManifestPath overrides the manifest location relative to the base URL.
func WithManifestPath(path string) ClientOption {
	return func(c *ManifestClient) {
		c.manifestPath = path
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *ManifestClient) {
		c.userAgent = ua
	}
}

// NewManifestClient creates a client for the manifest published under baseURL.
func NewManifestClient(baseURL string, opts ...ClientOption) *ManifestClient {
	c := &ManifestClient{
		baseURL:      baseURL,
		manifestPath: DefaultManifestPath,
		userAgent:    "upkeep",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ManifestURL returns the absolute URL of the latest manifest.
func (c *ManifestClient) ManifestURL() string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(c.manifestPath, "/")
}

// FetchLatest issues a single GET for the latest manifest.
// A 404 means no release has been published yet and returns (nil, nil).
func (c *ManifestClient) FetchLatest(ctx context.Context) (*Manifest, error) {
	url := c.ManifestURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "fetch manifest", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Debugf("no manifest published at %s", url)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{
			Op:  "fetch manifest",
			URL: url,
			Err: fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestSize)).Decode(&m); err != nil {
		return nil, &NetworkError{
			Op:  "decode manifest",
			URL: url,
			Err: fmt.Errorf("%w: %v", ErrInvalidManifest, err),
		}
	}
	if err := m.Validate(); err != nil {
		return nil, &NetworkError{Op: "decode manifest", URL: url, Err: err}
	}

	log.WithFields(log.Fields{
		"version": m.Version,
		"force":   m.ForceUpdate,
	}).Debug("fetched latest manifest")

	return &m, nil
}
