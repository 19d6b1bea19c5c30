package lynkr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lynkr-ai/lynkr-go-sdk/internal/httpclient"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/metrics"
	"github.com/lynkr-ai/lynkr-go-sdk/keys"
	"github.com/lynkr-ai/lynkr-go-sdk/pkg/utils"
	"github.com/lynkr-ai/lynkr-go-sdk/schema"
)

// Client talks to the Lynkr API. It keeps the execution context of the last
// GetSchema call so ExecuteAction can omit the reference id.
//
// A Client is not safe for concurrent use; callers serialise access.
type Client struct {
	apiKey  string
	baseURL *url.URL
	poster  Poster
	logger  *logrus.Logger
	keys    *keys.Manager
	metrics *metrics.Collector

	execCtx ExecutionContext
	state   State
}

// NewClient creates a client. An empty apiKey falls back to LYNKR_API_KEY.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	o := clientOptions{
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(utils.GetEnv(EnvAPIKey, ""))
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	base, err := url.Parse(o.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", o.baseURL)
	}

	logger := o.logger
	if logger == nil {
		logger = logrus.New()
	}

	poster := o.poster
	if poster == nil {
		httpOpts := []httpclient.Option{
			httpclient.WithTimeout(o.timeout),
			httpclient.WithLogger(logger),
		}
		if o.httpClient != nil {
			httpOpts = append(httpOpts, httpclient.WithHTTPClient(o.httpClient))
		}
		poster = httpclient.New(httpOpts...)
	}

	km := o.keys
	if km == nil {
		km = keys.NewManager()
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: base,
		poster:  poster,
		logger:  logger,
		keys:    km,
		metrics: o.metrics,
		execCtx: ExecutionContext{Metadata: Metadata{}},
	}, nil
}

// GetSchema asks the API for the field schema matching a natural-language
// request. On success the returned reference id, the response metadata and the
// schema become the client's execution context.
func (c *Client) GetSchema(ctx context.Context, request string) (string, *schema.Schema, error) {
	if strings.TrimSpace(request) == "" {
		return "", nil, &ValidationError{Field: "request_string", Message: "must be a non-empty string"}
	}

	resp, err := c.post(ctx, "schema", schemaPath, map[string]interface{}{"query": request})
	if err != nil {
		return "", nil, err
	}

	refID, _ := resp["ref_id"].(string)
	doc, _ := resp["schema"].(map[string]interface{})
	if refID == "" || len(doc) == 0 {
		return "", nil, &APIError{Message: "invalid response format from API: missing ref_id or schema"}
	}

	s, err := schema.New(doc)
	if err != nil {
		return "", nil, &APIError{Message: fmt.Sprintf("invalid schema document: %v", err), Err: err}
	}

	c.execCtx = ExecutionContext{
		RefID:    refID,
		Metadata: parseMetadata(resp["metadata"]),
		Schema:   s,
	}
	c.state = StateSchemaFetched

	c.logger.WithFields(logrus.Fields{
		"ref_id":   refID,
		"service":  c.execCtx.Metadata.Service(),
		"required": len(s.RequiredFields()),
	}).Info("Fetched schema")

	return refID, s, nil
}

// ExecuteAction submits filled schema data. The reference id comes from
// WithRefID, else WithExecutionContext, else the client's context. When none
// is known the result is {"error": ErrMissingRefID} and the error is nil.
//
// Unless WithoutAutoFill is given, empty key-like required fields are filled
// from the key registry. Required fields are the names listed under
// schema_data["required_fields"] plus, when the context schema belongs to the
// reference id, that schema's required and sensitive fields. The API response
// is returned unmodified.
func (c *Client) ExecuteAction(ctx context.Context, data map[string]interface{}, opts ...ExecuteOption) (map[string]interface{}, error) {
	var o executeOptions
	for _, opt := range opts {
		opt(&o)
	}

	ec := c.execCtx
	if o.execCtx != nil {
		ec = *o.execCtx
	}
	refID := o.refID
	if refID == "" {
		refID = ec.RefID
	}
	if refID == "" {
		return map[string]interface{}{"error": ErrMissingRefID}, nil
	}

	if len(data) == 0 {
		return nil, &ValidationError{Field: "schema_data", Message: "must be a non-empty mapping"}
	}

	fields, declared := splitRequiredDeclaration(data)

	if !o.noAutoFill {
		var service string
		required := declared
		if ec.RefID == refID {
			service = ec.Metadata.Service()
			if ec.Schema != nil {
				required = append(required, ec.Schema.RequiredFields()...)
				required = append(required, ec.Schema.SensitiveFields()...)
			}
		}
		filled := c.keys.MatchKeysToSchema(fields, dedupe(required), keys.WithService(service))
		if names := keys.FilledFields(fields, filled); len(names) > 0 {
			c.logger.WithFields(logrus.Fields{
				"ref_id": refID,
				"fields": names,
			}).Debug("Auto-filled schema fields from stored keys")
			c.metrics.AddAutoFilled(service, len(names))
		}
		fields = filled
	}

	envelope := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		envelope[name] = map[string]interface{}{"value": v}
	}

	resp, err := c.post(ctx, "execute", executePath, map[string]interface{}{
		"ref_id": refID,
		"schema": map[string]interface{}{"fields": envelope},
	})
	if err != nil {
		return nil, err
	}

	if c.state == StateSchemaFetched {
		c.state = StateExecuted
	}
	c.logger.WithField("ref_id", refID).Info("Executed action")
	return resp, nil
}

// Context returns a copy of the current execution context.
func (c *Client) Context() ExecutionContext {
	md := make(Metadata, len(c.execCtx.Metadata))
	for k, v := range c.execCtx.Metadata {
		md[k] = v
	}
	return ExecutionContext{RefID: c.execCtx.RefID, Metadata: md, Schema: c.execCtx.Schema}
}

// State returns the lifecycle state of the client.
func (c *Client) State() State {
	return c.state
}

// Keys returns the key registry used for auto-fill.
func (c *Client) Keys() *keys.Manager {
	return c.keys
}

// Logger returns the client's logger.
func (c *Client) Logger() *logrus.Logger {
	return c.logger
}

// Metrics returns the collector passed with WithMetrics, or nil.
func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

// APIKeyMasked returns the Lynkr API key with all but its last characters
// masked, for display.
func (c *Client) APIKeyMasked() string {
	return keys.MaskSecret(c.apiKey)
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) post(ctx context.Context, name, path string, body interface{}) (map[string]interface{}, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}

	start := time.Now()
	resp, err := c.poster.PostJSON(ctx, c.endpoint(path), headers, body)
	c.metrics.ObserveRequest(name, outcome(err), time.Since(start))
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", name).Warn("Lynkr API request failed")
		return nil, wrapError(err)
	}
	return resp, nil
}

// wrapError turns HTTP status and decoding failures into *APIError. Transport
// errors are returned unchanged.
func wrapError(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return &APIError{
			StatusCode: statusErr.StatusCode,
			Body:       statusErr.Body,
			Message:    "request failed",
			Err:        err,
		}
	}
	var decodeErr *httpclient.DecodeError
	if errors.As(err, &decodeErr) {
		return &APIError{
			StatusCode: decodeErr.StatusCode,
			Body:       decodeErr.Body,
			Message:    "invalid JSON response",
			Err:        err,
		}
	}
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("http_%d", statusErr.StatusCode)
	}
	var decodeErr *httpclient.DecodeError
	if errors.As(err, &decodeErr) {
		return "decode_error"
	}
	return "transport_error"
}

// splitRequiredDeclaration separates a "required_fields" name list from the
// field values. A "required_fields" entry that is not a list of strings is
// treated as an ordinary field.
func splitRequiredDeclaration(data map[string]interface{}) (map[string]interface{}, []string) {
	fields := make(map[string]interface{}, len(data))
	for k, v := range data {
		fields[k] = v
	}

	raw, ok := data["required_fields"]
	if !ok {
		return fields, nil
	}

	var names []string
	switch v := raw.(type) {
	case []string:
		names = append(names, v...)
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fields, nil
			}
			names = append(names, s)
		}
	default:
		return fields, nil
	}

	delete(fields, "required_fields")
	return fields, names
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
