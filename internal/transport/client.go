package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/services"
)

const (
	pathSendVideo  = "/send/video"
	pathSendParams = "/send/params"
	pathInference  = "/inference/"

	headerRequestID   = "X-Request-ID"
	headerEnvironment = "X-Fieldsync-Environment"
	headerDevice      = "X-Fieldsync-Device"

	maxResponseBytes      = 4 << 20
	defaultRequestTimeout = 60 * time.Second
	defaultUploadTimeout  = 10 * time.Minute
)

// HTTPDoer describes the HTTP client used by the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	UserAgent      string
	Environment    string
	DeviceID       string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	HTTPClient     HTTPDoer
	Logger         *slog.Logger
}

// Client issues requests against one inference server.
type Client struct {
	baseURL        string
	apiKey         string
	userAgent      string
	environment    string
	deviceID       string
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	http           HTTPDoer
	logger         *slog.Logger
}

// New validates the base URL and builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if err := config.ValidateServerURL(base); err != nil {
		return nil, services.Wrap(services.ErrValidation, "transport", "server url", "", err)
	}
	c := &Client{
		baseURL:        base,
		apiKey:         strings.TrimSpace(opts.APIKey),
		userAgent:      strings.TrimSpace(opts.UserAgent),
		environment:    strings.TrimSpace(opts.Environment),
		deviceID:       strings.TrimSpace(opts.DeviceID),
		requestTimeout: opts.RequestTimeout,
		uploadTimeout:  opts.UploadTimeout,
		http:           opts.HTTPClient,
		logger:         logging.NewComponentLogger(opts.Logger, "transport"),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = defaultRequestTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = defaultUploadTimeout
	}
	if c.userAgent == "" {
		c.userAgent = "fieldsync"
	}
	return c, nil
}

// NewFromConfig builds a Client for baseURL using the server settings in cfg.
func NewFromConfig(cfg *config.Config, baseURL string, logger *slog.Logger) (*Client, error) {
	opts := Options{BaseURL: baseURL, Logger: logger}
	if cfg != nil {
		opts.APIKey = cfg.Server.APIKey
		opts.UserAgent = cfg.Server.UserAgent
		opts.Environment = cfg.Server.Environment
		opts.DeviceID = cfg.Server.DeviceID
		opts.RequestTimeout = cfg.RequestTimeout()
		opts.UploadTimeout = cfg.UploadTimeout()
	}
	return New(opts)
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping issues a GET against the server root and reports the HTTP status. Any
// response counts as reachable.
func (c *Client) Ping(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransport, "transport", "ping", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transport", "build request", endpoint, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.environment != "" {
		req.Header.Set(headerEnvironment, c.environment)
	}
	if c.deviceID != "" {
		req.Header.Set(headerDevice, c.deviceID)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if cycleID, ok := services.CycleIDFromContext(ctx); ok {
		req.Header.Set(headerRequestID, cycleID)
	}
	return req, nil
}

// do sends req and reads the body. The caller owns interpreting the status.
func (c *Client) do(req *http.Request, operation string) (int, json.RawMessage, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, services.Wrap(services.ErrTransport, "transport", operation, req.URL.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, services.Wrap(services.ErrTransport, "transport", operation, "read response", err)
	}
	logging.WithContext(req.Context(), c.logger).Debug("server responded",
		logging.String("operation", operation),
		logging.Int("http_status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)),
	)
	return resp.StatusCode, rawJSON(payload), nil
}

// rawJSON returns payload as a JSON value. Bodies that are not valid JSON are
// stored as a JSON string so the entry snapshot stays encodable.
func rawJSON(payload []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(trimmed)
	if err != nil {
		return nil
	}
	return quoted
}

func isSuccessCode(code int) bool {
	return code >= 200 && code < 300
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func inferenceEndpoint(base, key string) string {
	return fmt.Sprintf("%s%s%s", base, pathInference, url.PathEscape(key))
}
