// internal/automation/client.go
package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/automate-cli/internal/config"
	"github.com/xkilldash9x/automate-cli/internal/network"
)

// Engine endpoint paths. They double as operation names in errors and logs.
const (
	opHealth   = "health"
	opDirect   = "direct-automate"
	opExecute  = "automate"
	opGenerate = "generate-actions"
)

// RequestIDHeader carries the per-call correlation ID.
const RequestIDHeader = "X-Request-ID"

// Service is the surface a caller needs from the automation client.
type Service interface {
	CheckHealth(ctx context.Context) bool
	RunDirect(ctx context.Context, objective string) Result
	Execute(ctx context.Context, req ExecutionRequest) Result
	GenerateActions(ctx context.Context, objective string) ([]Action, error)
	SetEndpoint(address string)
	Endpoint() string
	IsConnected() bool
	State() ConnectionState
}

var _ Service = (*Client)(nil)

// Client talks to a remote automation engine over HTTP.
//
// CheckHealth, RunDirect and Execute never return errors: every failure is
// folded into a bool or a Result. GenerateActions returns a *GenerationError.
// The client performs no retries; deadlines come from the caller's context.
//
// A Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     *zap.Logger

	mu       sync.RWMutex
	endpoint string
	state    ConnectionState
	// generation increments on every endpoint change so that a health check
	// started against the old endpoint cannot overwrite the reset state.
	generation uint64
}

// NewClient creates a client for cfg.Endpoint. A nil httpClient gets the
// default transport; a nil logger discards logs.
func NewClient(cfg config.AutomationConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		netCfg := network.NewDefaultClientConfig()
		netCfg.RequestTimeout = cfg.RequestTimeout
		httpClient = network.NewClient(netCfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		httpClient: httpClient,
		headers:    headers,
		logger:     logger.Named("automation"),
		endpoint:   normalizeEndpoint(endpoint),
		state:      StateUnknown,
	}
}

// SetEndpoint replaces the engine address for subsequent calls and resets the
// connection state to StateUnknown. The address is not validated.
func (c *Client) SetEndpoint(address string) {
	endpoint := normalizeEndpoint(address)
	c.mu.Lock()
	c.endpoint = endpoint
	c.state = StateUnknown
	c.generation++
	c.mu.Unlock()

	c.logger.Info("Automation endpoint set", zap.String("endpoint", endpoint))
}

// Endpoint returns the current engine address.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// State returns the last observed connection state without contacting the engine.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the last health check succeeded.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// CheckHealth probes GET /health. Any 2xx response with a JSON body counts as
// healthy. The outcome is recorded as the connection state and returned.
func (c *Client) CheckHealth(ctx context.Context) bool {
	endpoint, generation := c.snapshot()

	var body interface{}
	err := c.call(ctx, endpoint, http.MethodGet, opHealth, nil, &body, "")
	healthy := err == nil

	next := StateDisconnected
	if healthy {
		next = StateConnected
	}
	if !c.commitState(generation, next) {
		c.logger.Debug("Discarding health result for a replaced endpoint", zap.String("endpoint", endpoint))
	}

	if healthy {
		c.logger.Info("Automation engine is healthy", zap.String("endpoint", endpoint))
	} else {
		c.logger.Error("Automation engine health check failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return healthy
}

// RunDirect sends an objective to POST /direct-automate, letting the engine
// plan and execute it. An empty objective is forwarded unchanged.
func (c *Client) RunDirect(ctx context.Context, objective string) Result {
	endpoint, _ := c.snapshot()
	c.logger.Info("Direct automation request", zap.String("objective", objective))

	var result Result
	if err := c.call(ctx, endpoint, http.MethodPost, opDirect, DirectRequest{Objective: objective}, &result, MsgDirectFallback); err != nil {
		c.logger.Error("Direct automation failed", zap.Error(err))
		return failedResult(err)
	}

	c.logResult("Direct automation result", result)
	return result
}

// Execute sends an explicit, ordered action list to POST /automate.
func (c *Client) Execute(ctx context.Context, req ExecutionRequest) Result {
	endpoint, _ := c.snapshot()
	c.logger.Info("Executing automation request",
		zap.String("objective", req.Objective),
		zap.Int("actions", len(req.Actions)),
	)

	var result Result
	if err := c.call(ctx, endpoint, http.MethodPost, opExecute, req, &result, MsgExecuteFallback); err != nil {
		c.logger.Error("Automation execution failed", zap.Error(err))
		return failedResult(err)
	}

	c.logResult("Automation execution result", result)
	return result
}

// GenerateActions asks POST /generate-actions to plan an objective without
// executing it. A missing actions field yields an empty, non-nil slice.
func (c *Client) GenerateActions(ctx context.Context, objective string) ([]Action, error) {
	endpoint, _ := c.snapshot()
	c.logger.Info("Generating actions for objective", zap.String("objective", objective))

	var resp *generateResponse
	err := c.call(ctx, endpoint, http.MethodPost, opGenerate, DirectRequest{Objective: objective}, &resp, MsgGenerateFallback)
	if err == nil && resp == nil {
		err = &BodyParseError{Op: opGenerate, Err: errors.New("response body is null")}
	}

	var actions []Action
	if err == nil {
		actions, err = ParseActions(resp.Actions)
		if err != nil {
			err = &BodyParseError{Op: opGenerate, Err: err}
		}
	}
	if err != nil {
		c.logger.Error("Action generation failed", zap.Error(err))
		return nil, &GenerationError{Cause: err}
	}

	c.logger.Info("Generated actions", zap.Int("count", len(actions)))
	return actions, nil
}

// call performs one round trip against endpoint/op. A 2xx body is decoded
// into out; anything else becomes a *TransportError, *HTTPError or
// *BodyParseError. fallback is the message used when a failed response has a
// JSON body without an error field.
func (c *Client) call(ctx context.Context, endpoint, method, op string, payload, out interface{}, fallback string) error {
	target := endpoint + "/" + op
	requestID := uuid.NewString()
	logger := c.logger.With(zap.String("op", op), zap.String("request_id", requestID))

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(RequestIDHeader, requestID)

	logger.Debug("Sending request", zap.String("method", method), zap.String("url", target))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	logger.Debug("Received response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(raw)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw, fallback)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &BodyParseError{Op: op, Err: err}
		}
	}
	return nil
}

// errorMessage extracts the engine's {error} text. Scalar error values are
// rendered as text. An unparseable body gives MsgUnknownError; a JSON body
// without a usable error field gives fallback.
func errorMessage(raw []byte, fallback string) string {
	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return MsgUnknownError
	}
	fields, ok := body.(map[string]interface{})
	if !ok {
		return fallback
	}
	switch v := fields["error"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64, bool:
		return fmt.Sprint(v)
	}
	return fallback
}

func (c *Client) snapshot() (string, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint, c.generation
}

// commitState records next unless the endpoint changed since generation was read.
func (c *Client) commitState(generation uint64, next ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.state = next
	return true
}

func (c *Client) logResult(msg string, result Result) {
	fields := []zap.Field{zap.Bool("success", result.Success), zap.String("message", result.Message)}
	if n, ok := result.Executed(); ok {
		fields = append(fields, zap.Int("actions_executed", n))
	}
	if result.Error != "" {
		fields = append(fields, zap.String("error", result.Error))
	}
	c.logger.Info(msg, fields...)
}

func normalizeEndpoint(address string) string {
	return strings.TrimRight(address, "/")
}
