package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL matches the daemon's default listen address and base path.
const DefaultBaseURL = "http://127.0.0.1:8420/api"

// Client provides HTTP client functionality to communicate with the librebrowser daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	quick   time.Duration
	install time.Duration
}

// Config holds client configuration
type Config struct {
	BaseURL string
	// Timeout bounds quick calls. Engine installs use InstallTimeout.
	Timeout        time.Duration
	InstallTimeout time.Duration
	Logger         *slog.Logger // Optional logger for client operations
	HTTPClient     *http.Client // Optional; defaults to a plain http.Client
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        10 * time.Second,
		InstallTimeout: 30 * time.Minute,
	}
}

// New creates a new librebrowser API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	hc := config.HTTPClient
	if hc == nil {
		// per-call deadlines come from context; installs can run long
		hc = &http.Client{}
	}
	if config.InstallTimeout == 0 {
		config.InstallTimeout = 30 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  hc,
		logger:  config.Logger,
		quick:   config.Timeout,
		install: config.InstallTimeout,
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	var out []Engine
	if err := c.get(ctx, "/engines", nil, &out); err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	return true
}

// Install downloads an engine version and returns its directory.
func (c *Client) Install(ctx context.Context, req InstallRequest) (string, error) {
	c.logger.Debug("Installing engine", "version", req.Version, "url", req.URL)
	var out dirResponse
	if err := c.postLong(ctx, "/engines/install", req, &out); err != nil {
		return "", err
	}
	return out.Dir, nil
}

// InstallArchived downloads an engine archive without extracting it.
func (c *Client) InstallArchived(ctx context.Context, req InstallRequest) (string, error) {
	c.logger.Debug("Storing engine archive", "version", req.Version, "url", req.URL)
	var out archiveResponse
	if err := c.postLong(ctx, "/engines/archive", req, &out); err != nil {
		return "", err
	}
	return out.Archive, nil
}

// ExtractArchived unpacks a previously stored archive.
func (c *Client) ExtractArchived(ctx context.Context, version string) (string, error) {
	var out dirResponse
	if err := c.postLong(ctx, "/engines/extract", map[string]string{"version": version}, &out); err != nil {
		return "", err
	}
	return out.Dir, nil
}

// Engines lists installed engine versions, newest first.
func (c *Client) Engines(ctx context.Context) ([]Engine, error) {
	var out []Engine
	if err := c.get(ctx, "/engines", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Binary returns the engine executable for version. found is false when
// the version has no locatable binary.
func (c *Client) Binary(ctx context.Context, version string) (path string, found bool, err error) {
	var out pathResponse
	err = c.get(ctx, "/engines/binary", url.Values{"version": {version}}, &out)
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out.Path, true, nil
}

// Open shows a profile. ok is false when the daemon knows no pid for it.
func (c *Client) Open(ctx context.Context, req OpenRequest) (pid int, ok bool, err error) {
	c.logger.Debug("Opening profile", "label", req.Label, "version", req.Version)
	var out pidResponse
	if err := c.post(ctx, c.quick, "/profiles/open", req, &out); err != nil {
		return 0, false, err
	}
	return derefPID(out)
}

// Close stops a profile's engine or embedded surface.
func (c *Client) Close(ctx context.Context, label string) error {
	c.logger.Debug("Closing profile", "label", label)
	return c.post(ctx, c.quick, "/profiles/close", map[string]string{"label": label}, nil)
}

// Exists reports whether the profile is shown in any form.
func (c *Client) Exists(ctx context.Context, label string) (bool, error) {
	var out existsResponse
	if err := c.get(ctx, "/profiles/exists", url.Values{"label": {label}}, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// Running returns the live engine pid recorded for label.
func (c *Client) Running(ctx context.Context, label string) (pid int, ok bool, err error) {
	var out pidResponse
	if err := c.get(ctx, "/profiles/running", url.Values{"label": {label}}, &out); err != nil {
		return 0, false, err
	}
	return derefPID(out)
}

// Profiles lists profile directories known to the daemon.
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	var out []Profile
	if err := c.get(ctx, "/profiles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LogsTail returns up to lines trailing lines of the daemon log.
func (c *Client) LogsTail(ctx context.Context, lines int) ([]string, error) {
	var out linesResponse
	if err := c.get(ctx, "/logs/tail", url.Values{"lines": {strconv.Itoa(lines)}}, &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

func derefPID(r pidResponse) (int, bool, error) {
	if r.PID == nil {
		return 0, false, nil
	}
	return *r.PID, true, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.doRequest(ctx, c.quick, http.MethodGet, u, nil, out)
}

func (c *Client) post(ctx context.Context, timeout time.Duration, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.doRequest(ctx, timeout, http.MethodPost, c.baseURL+path, data, out)
}

func (c *Client) postLong(ctx context.Context, path string, in, out any) error {
	return c.post(ctx, c.install, path, in, out)
}

// doRequest performs HTTP request with common error handling
func (c *Client) doRequest(ctx context.Context, timeout time.Duration, method, u string, body []byte, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "url", u)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Debug("Failed to decode error response", "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode}
	}

	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return &APIError{StatusCode: resp.StatusCode, Message: errorResp.Error}
}
