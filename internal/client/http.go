package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/remarketing"
)

// HTTPClient implements RemarketingClient using the gateway's HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	project    string
	httpClient *http.Client
}

// Compile-time check that HTTPClient implements RemarketingClient.
var _ RemarketingClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given gateway base URL
// (e.g. "http://localhost:15432").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		project:    remarketing.MountPath,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Config repository ---

func (c *HTTPClient) GetConfigPage(ctx context.Context, page int) (*ConfigPage, error) {
	path := c.project + "/config"
	if page > 0 {
		path += "?page=" + strconv.Itoa(page)
	}
	var resp ConfigPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateConfig(ctx context.Context, req *ConfigRequest) (*CreatedConfig, error) {
	var resp CreatedConfig
	if err := c.doJSON(ctx, http.MethodPost, c.project+"/config", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ReplaceConfig(ctx context.Context, id int64, req *ConfigRequest) (*model.ConfigRow, error) {
	var resp struct {
		Config *model.ConfigRow `json:"config"`
	}
	if err := c.doJSON(ctx, http.MethodPut, c.configPath(id), req, &resp); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

func (c *HTTPClient) DeleteConfig(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, c.configPath(id), nil, nil)
}

func (c *HTTPClient) configPath(id int64) string {
	return c.project + "/config/" + strconv.FormatInt(id, 10)
}

// --- Instance directory ---

func (c *HTTPClient) ListInstances(ctx context.Context) ([]*model.Instance, error) {
	var resp struct {
		Instances []*model.Instance `json:"instances"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.project+"/config/instances", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// --- Flow service ---

func (c *HTTPClient) Broadcast(ctx context.Context, req *BroadcastRequest) (*BroadcastResult, error) {
	var resp BroadcastResult
	if err := c.doJSON(ctx, http.MethodPost, c.project+"/config/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Object storage ---

// Upload sends r as a multipart file part named fileName. The part's content
// type is guessed from the file extension.
func (c *HTTPClient) Upload(ctx context.Context, kind model.BlockKind, fileName string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("type", string(kind)); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(fileName)))
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.project+"/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp UploadResult
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Gateway ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) Projects(ctx context.Context) ([]ProjectInfo, error) {
	var resp struct {
		Projects []ProjectInfo `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result)
}

func (c *HTTPClient) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
