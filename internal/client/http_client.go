package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// Syncer reconciles a cached version with the server.
type Syncer interface {
	Sync(ctx context.Context, clientVersion int64) (domain.ReconcileResult, error)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api %d: %s: %s", e.StatusCode, e.Message, e.Reason)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the resource status API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

var _ Syncer = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		cb:      config.NewCircuitBreaker(config.BreakerSyncAPI),
	}
}

func (c *HTTPClient) Sync(ctx context.Context, clientVersion int64) (domain.ReconcileResult, error) {
	var res domain.ReconcileResult
	err := c.do(ctx, http.MethodPost, "/resources/sync", "", map[string]int64{"clientVersion": clientVersion}, &res)
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	if res.Data == nil {
		return domain.ReconcileResult{}, fmt.Errorf("sync: response carries no resource list")
	}
	return res, nil
}

func (c *HTTPClient) Login(ctx context.Context, code string, userType domain.UserType) (domain.AuthResult, error) {
	var res domain.AuthResult
	body := map[string]string{"userCode": code, "userType": string(userType)}
	err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &res)
	return res, err
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, token, name string, status domain.Status) (domain.Resource, error) {
	var res domain.Resource
	path := "/resources/" + url.PathEscape(name) + "/status"
	err := c.do(ctx, http.MethodPatch, path, token, map[string]domain.Status{"status": status}, &res)
	return res, err
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Only transport failures and 5xx count against the breaker.
	var apiErr *APIError
	_, err = c.cb.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			var e struct {
				Error  string `json:"error"`
				Reason string `json:"reason"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&e)
			apiErr = &APIError{StatusCode: resp.StatusCode, Message: e.Error, Reason: e.Reason}
			if resp.StatusCode >= 500 {
				return nil, apiErr
			}
			return nil, nil
		}
		if out == nil {
			return nil, nil
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if apiErr != nil {
		return apiErr
	}
	return nil
}
