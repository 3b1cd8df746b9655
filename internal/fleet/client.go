package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"exboard/internal/config"
	"exboard/internal/constants"
	"exboard/internal/logger"
	"exboard/pkg/metrics"
	"exboard/pkg/retry"
	"exboard/pkg/tracing"
)

type rpcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type getParams struct {
	TypeName    string       `json:"typeName"`
	Search      interface{}  `json:"search,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

type authenticateParams struct {
	Database string `json:"database"`
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type authenticateResult struct {
	Credentials Credentials `json:"credentials"`
}

// Client talks JSON-RPC to the fleet platform. It authenticates lazily on the
// first call and reuses the credentials until the server rejects them.
type Client struct {
	httpClient *http.Client
	endpoint   string
	cfg        config.FleetConfig
	policy     retry.Policy
	logger     logger.Logger

	mu          sync.Mutex
	credentials *Credentials
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg config.FleetConfig, log logger.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(cfg.Server, "/") + constants.FleetAPIPath,
		cfg:        cfg,
		policy: retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Multiplier:      cfg.Retry.Multiplier,
		},
		logger: log,
	}

	if cfg.SessionID != "" {
		c.credentials = &Credentials{
			Database:  cfg.Database,
			UserName:  cfg.Username,
			SessionID: cfg.SessionID,
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetRules(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	if err := c.Get(ctx, constants.TypeNameRule, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.Get(ctx, constants.TypeNameDevice, nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Client) GetExceptionEvents(ctx context.Context, search ExceptionEventSearch) ([]ExceptionEvent, error) {
	var events []ExceptionEvent
	if err := c.Get(ctx, constants.TypeNameExceptionEvent, search, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Get issues a Get call for typeName and decodes the result into out.
func (c *Client) Get(ctx context.Context, typeName string, search interface{}, out interface{}) (err error) {
	ctx, span := tracing.StartSpan(ctx, "fleet.get", attribute.String("fleet.type_name", typeName))
	defer func() { tracing.EndSpan(span, err) }()

	creds, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	params := getParams{TypeName: typeName, Search: search, Credentials: creds}
	err = c.call(ctx, constants.MethodGet, typeName, params, out)
	if IsInvalidUser(err) {
		c.clearCredentials(creds)
		c.logger.WarnwCtx(ctx, "Fleet credentials rejected, will re-authenticate on next call",
			"type_name", typeName,
		)
	}
	return err
}

// Authenticate returns cached credentials or signs in with the configured user.
func (c *Client) Authenticate(ctx context.Context) (*Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.credentials != nil {
		return c.credentials, nil
	}

	params := authenticateParams{
		Database: c.cfg.Database,
		UserName: c.cfg.Username,
		Password: c.cfg.Password,
	}

	var result authenticateResult
	if err := c.call(ctx, constants.MethodAuthenticate, "", params, &result); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if result.Credentials.SessionID == "" {
		return nil, fmt.Errorf("failed to authenticate: empty session id")
	}

	c.logger.InfowCtx(ctx, "Authenticated against fleet API",
		"database", result.Credentials.Database,
		"user", result.Credentials.UserName,
	)
	c.credentials = &result.Credentials
	return c.credentials, nil
}

func (c *Client) clearCredentials(rejected *Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credentials == rejected {
		c.credentials = nil
	}
}

// call posts one JSON-RPC request, retrying transport failures and 5xx
// responses according to the configured policy.
func (c *Client) call(ctx context.Context, method, typeName string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	err = retry.Retry(ctx, c.policy, func() error {
		return c.do(ctx, body, out)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt("fleet_" + strings.ToLower(method))
		c.logger.WarnwCtx(ctx, "Fleet API call failed, retrying",
			"method", method,
			"type_name", typeName,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveFleetRequest(method, typeName, status, time.Since(start))
	return err
}

func (c *Client) do(ctx context.Context, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.NewFatalError(err)
		}
		return fmt.Errorf("fleet api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode >= http.StatusInternalServerError {
			return statusErr
		}
		return retry.NewFatalError(statusErr)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
	}

	if rpcResp.Error != nil {
		return retry.NewFatalError(rpcResp.Error.toAPIError())
	}

	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to decode result: %w", err))
	}
	return nil
}

// IsTransient reports whether err is worth counting against the circuit breaker.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}
