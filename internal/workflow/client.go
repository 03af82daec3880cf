package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultDispatchTimeout covers slow acceptance by the engine
	DefaultDispatchTimeout = 240 * time.Second

	// DefaultFinalTimeout bounds the final transformation call
	DefaultFinalTimeout = 240 * time.Second

	// DefaultAPITimeout bounds each executions API request
	DefaultAPITimeout = 30 * time.Second

	// APIKeyHeader carries the executions API key
	APIKeyHeader = "X-N8N-API-KEY"

	executionsPath = "/api/v1/executions"
)

// Client is an HTTP client for an n8n-compatible workflow engine
type Client struct {
	triggerURL      string
	finalURL        string
	apiURL          string
	apiKey          string
	dispatchTimeout time.Duration
	finalTimeout    time.Duration
	apiTimeout      time.Duration
	httpClient      *http.Client
	logger          arbor.ILogger
	limiter         *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTriggerURL sets the webhook that starts a harmonization run
func WithTriggerURL(u string) ClientOption {
	return func(c *Client) {
		c.triggerURL = u
	}
}

// WithFinalURL sets the webhook of the final transformation workflow
func WithFinalURL(u string) ClientOption {
	return func(c *Client) {
		c.finalURL = u
	}
}

// WithExecutionsAPI sets the engine's REST API base URL and key
func WithExecutionsAPI(baseURL, apiKey string) ClientOption {
	return func(c *Client) {
		c.apiURL = strings.TrimRight(baseURL, "/")
		c.apiKey = apiKey
	}
}

// WithTimeouts overrides the per-call timeouts; zero keeps the default
func WithTimeouts(dispatch, final, api time.Duration) ClientOption {
	return func(c *Client) {
		if dispatch > 0 {
			c.dispatchTimeout = dispatch
		}
		if final > 0 {
			c.finalTimeout = final
		}
		if api > 0 {
			c.apiTimeout = api
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit spaces executions API calls at least interval apart
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// NewClient creates a new workflow engine client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dispatchTimeout: DefaultDispatchTimeout,
		finalTimeout:    DefaultFinalTimeout,
		apiTimeout:      DefaultAPITimeout,
		httpClient:      &http.Client{},
		logger:          arbor.NewLogger(),
		limiter:         rate.NewLimiter(rate.Every(time.Second), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.WorkflowClient = (*Client)(nil)

// Dispatch posts the request as multipart form data and returns on acceptance.
// A non-2xx answer is returned as *APIError and never retried.
func (c *Client) Dispatch(ctx context.Context, req *models.HarmonizationRequest) (*interfaces.DispatchReceipt, error) {
	if c.triggerURL == "" {
		return nil, fmt.Errorf("workflow trigger URL is not configured")
	}

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.dispatchTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.triggerURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	c.logger.Debug().
		Str("provider", req.ProviderName).
		Str("target", req.TargetSchemaVersion).
		Str("file", req.FileName).
		Int("bytes", len(req.File)).
		Msg("Dispatching harmonization request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch harmonization request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody), Endpoint: c.triggerURL}
	}

	receipt := &interfaces.DispatchReceipt{StatusCode: resp.StatusCode}
	if json.Valid(respBody) {
		receipt.Body = json.RawMessage(respBody)
		receipt.ExecutionID = correlationID(respBody)
	}
	return receipt, nil
}

// encodeMultipart writes the form fields followed by the input_file part
func encodeMultipart(req *models.HarmonizationRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range req.FormFields() {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", field[0], err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, models.FormInputFile, req.FileName))
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(req.File); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// correlationID extracts an execution id the trigger may echo back
func correlationID(body []byte) models.ExecutionID {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return 0
	}
	for _, key := range []string{"executionId", "execution_id"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var id models.ExecutionID
		if err := json.Unmarshal(raw, &id); err == nil && id > 0 {
			return id
		}
	}
	return 0
}

// LatestExecution returns the most recent execution of workflowID
func (c *Client) LatestExecution(ctx context.Context, workflowID string) (*models.Execution, error) {
	params := url.Values{}
	params.Set("workflowId", workflowID)
	params.Set("limit", "1")

	body, err := c.apiGet(ctx, executionsPath, params)
	if err != nil {
		return nil, err
	}

	list, err := models.DecodeExecutionList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode executions: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no executions found for workflow %s", workflowID)
	}
	return &list[0], nil
}

// GetExecution returns one execution by id
func (c *Client) GetExecution(ctx context.Context, id models.ExecutionID) (*models.Execution, error) {
	body, err := c.apiGet(ctx, executionsPath+"/"+id.String(), nil)
	if err != nil {
		return nil, err
	}

	var exec models.Execution
	if err := json.Unmarshal(body, &exec); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", id, err)
	}
	return &exec, nil
}

func (c *Client) apiGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("workflow executions API is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	reqURL := c.apiURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.apiURL+path).Msg("Workflow API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
	}
	return body, nil
}

// RunFinal posts payload to the final workflow and returns the body verbatim
func (c *Client) RunFinal(ctx context.Context, payload map[string]interface{}) (json.RawMessage, error) {
	if c.finalURL == "" {
		return nil, fmt.Errorf("final workflow URL is not configured")
	}

	data, err := common.MarshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode final workflow payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.finalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.finalURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Int("bytes", len(data)).Msg("Running final workflow")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to run final workflow: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read final workflow response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: c.finalURL}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("final workflow returned a non-JSON body: %s", truncate(string(body), 200))
	}
	return json.RawMessage(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
