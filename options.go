package lynkr

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lynkr-ai/lynkr-go-sdk/internal/metrics"
	"github.com/lynkr-ai/lynkr-go-sdk/keys"
)

// Poster is the HTTP collaborator used by the client: it posts a JSON body
// and returns the decoded JSON object.
type Poster interface {
	PostJSON(ctx context.Context, url string, headers map[string]string, body interface{}) (map[string]interface{}, error)
}

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	poster     Poster
	logger     *logrus.Logger
	keys       *keys.Manager
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithTimeout sets the per-request timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithHTTPClient sends requests through c.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithPoster replaces the HTTP collaborator entirely.
func WithPoster(p Poster) Option {
	return func(o *clientOptions) { o.poster = p }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithKeyManager shares an existing key registry with the client.
func WithKeyManager(m *keys.Manager) Option {
	return func(o *clientOptions) { o.keys = m }
}

// WithMetrics records request and tool metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *clientOptions) { o.metrics = c }
}

type executeOptions struct {
	refID      string
	execCtx    *ExecutionContext
	noAutoFill bool
}

// ExecuteOption configures a single ExecuteAction call.
type ExecuteOption func(*executeOptions)

// WithRefID executes against an explicit reference id. It takes precedence
// over any execution context.
func WithRefID(refID string) ExecuteOption {
	return func(o *executeOptions) { o.refID = refID }
}

// WithExecutionContext executes against a context previously obtained from
// Client.Context instead of the client's current one.
func WithExecutionContext(ec ExecutionContext) ExecuteOption {
	return func(o *executeOptions) { o.execCtx = &ec }
}

// WithoutAutoFill disables filling key fields from the key registry.
func WithoutAutoFill() ExecuteOption {
	return func(o *executeOptions) { o.noAutoFill = true }
}
