package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/odm"
	"github.com/alfredjeanlab/odm/internal/store"
)

// HTTPClient implements DocumentClient against the odm HTTP API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ DocumentClient = (*HTTPClient)(nil)

// NewHTTPClient targets baseURL (e.g. "http://localhost:8080"). A non-empty
// token is sent as a bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) Schemas(ctx context.Context) ([]odm.SchemaInfo, error) {
	var resp struct {
		Schemas []odm.SchemaInfo `json:"schemas"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/schemas", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schemas, nil
}

func (c *HTTPClient) Save(ctx context.Context, schema string, doc []byte) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/v1/documents/"+url.PathEscape(schema), doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Validate(ctx context.Context, schema string, doc []byte) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/validate/"+url.PathEscape(schema), doc, nil)
}

func (c *HTTPClient) Get(ctx context.Context, schema, key string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, documentPath(schema, key), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) List(ctx context.Context, schema string) ([]json.RawMessage, error) {
	var resp struct {
		Documents []json.RawMessage `json:"documents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(schema), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *HTTPClient) Delete(ctx context.Context, schema, key string) error {
	return c.doJSON(ctx, http.MethodDelete, documentPath(schema, key), nil, nil)
}

func (c *HTTPClient) Drop(ctx context.Context, schema string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/collections/"+url.PathEscape(schema), nil, nil)
}

func documentPath(schema, key string) string {
	return "/v1/documents/" + url.PathEscape(schema) + "/" + url.PathEscape(key)
}

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets a 404 match store.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == store.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// doJSON sends body, which is already-encoded JSON, and decodes the
// response into result. A nil result discards the body.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string             `json:"error"`
			Fields []model.FieldError `json:"fields"`
		}
		if json.Unmarshal(respBody, &errResp) != nil || errResp.Error == "" {
			return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		if resp.StatusCode == http.StatusUnprocessableEntity && len(errResp.Fields) > 0 {
			return &model.ValidationError{Errors: errResp.Fields}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
