// Package api wraps the SocialChat REST server behind a small typed client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Params are appended to a request as query string values.
type Params map[string]string

// Headers are extra request headers beyond auth and content type.
type Headers map[string]string

// Upload describes a multipart file upload with optional form fields.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
	Fields   map[string]string
}

// Response is a decoded-on-demand HTTP response body.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v. Server replies sometimes wrap
// the payload in a {"data": ...} envelope, so that shape is tried first.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &envelope); err == nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, v); err == nil {
			return nil
		}
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Client issues HTTP requests against a fixed API base URL.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient builds a Client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues an authenticated GET request.
func (c *Client) Get(ctx context.Context, path, token string, headers Headers, params Params) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, token, headers, params, nil)
}

// Delete issues an authenticated DELETE request.
func (c *Client) Delete(ctx context.Context, path, token string, headers Headers, params Params) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, token, headers, params, nil)
}

// Post issues an authenticated POST request with a JSON or multipart body.
func (c *Client) Post(ctx context.Context, path, token string, headers Headers, params Params, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, token, headers, params, body)
}

// Put issues an authenticated PUT request with a JSON or multipart body.
func (c *Client) Put(ctx context.Context, path, token string, headers Headers, params Params, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, token, headers, params, body)
}

// Patch issues an authenticated PATCH request with a JSON or multipart body.
func (c *Client) Patch(ctx context.Context, path, token string, headers Headers, params Params, body any) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, token, headers, params, body)
}

func (c *Client) do(ctx context.Context, method, path, token string, headers Headers, params Params, body any) (*Response, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		fullURL += "?" + values.Encode()
	}

	var reqBody io.Reader
	contentType := ""
	switch payload := body.(type) {
	case nil:
	case *Upload:
		buf, ct, err := encodeMultipart(payload)
		if err != nil {
			return nil, err
		}
		reqBody, contentType = buf, ct
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody, contentType = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, raw)
	}

	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

func encodeMultipart(upload *Upload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for k, v := range upload.Fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write form field %q: %w", k, err)
		}
	}

	part, err := writer.CreateFormFile(upload.Field, upload.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return nil, "", fmt.Errorf("copy upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}

	return buf, writer.FormDataContentType(), nil
}
