package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.session.Endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.roundTrip(req, out)
}

// SendJSON sends body as JSON with method and decodes the response into out
// when out is non-nil.
func (c *Client) SendJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.session.Endpoint(path, nil), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(req, out)
}

// SendForm sends fields as multipart/form-data with method. Fields are
// written in name order.
func (c *Client) SendForm(ctx context.Context, method, path string, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.session.Endpoint(path, nil), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.roundTrip(req, out)
}

// Delete sends a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.session.Endpoint(path, nil), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.roundTrip(req, nil)
}

// roundTrip executes req and turns a non-2xx response into a *StatusError.
func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		return newStatusError(req, resp, classifyStatus(resp.StatusCode))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}

	body, err := readAll(resp)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// extractMessage returns the "message" or "error" field of a JSON error body,
// or the trimmed body when it is short plain text.
func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}

	if len(body) <= 200 && !bytes.ContainsAny(body, "<>") {
		return strings.TrimSpace(string(body))
	}
	return ""
}
