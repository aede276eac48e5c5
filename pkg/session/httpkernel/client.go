// Package httpkernel implements the session contract against a kernel
// gateway service over HTTP. One kernel process per project holds the live
// namespace; this client only shuttles code strings and small JSON values.
package httpkernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cascadehq/cascade/pkg/session"
)

// Client talks to one project's kernel. Create via Factory.
type Client struct {
	baseURL   string
	projectID string
	http      *http.Client
	logger    *slog.Logger
}

// Factory returns a session.Factory that dials kernels under baseURL,
// e.g. http://kernel-gateway:8888.
func Factory(baseURL string, logger *slog.Logger) session.Factory {
	return func(_ context.Context, projectID string) (session.Session, error) {
		if baseURL == "" {
			return nil, fmt.Errorf("kernel gateway URL is empty")
		}

		return &Client{
			baseURL:   baseURL,
			projectID: projectID,
			http:      &http.Client{},
			logger:    logger.With("module", "httpkernel", "project_id", projectID),
		}, nil
	}
}

type existRequest struct {
	Names []string `json:"names"`
}

type existResponse struct {
	Existing map[string]bool `json:"existing"`
}

func (c *Client) CheckExist(ctx context.Context, names []string) (map[string]bool, error) {
	var resp existResponse

	err := c.post(ctx, "/exists", existRequest{Names: names}, &resp)
	if err != nil {
		return nil, fmt.Errorf("check exist: %w", err)
	}

	if resp.Existing == nil {
		resp.Existing = make(map[string]bool, len(names))
	}

	// Absent keys mean "no value bound".
	for _, name := range names {
		if _, ok := resp.Existing[name]; !ok {
			resp.Existing[name] = false
		}
	}

	return resp.Existing, nil
}

type executeRequest struct {
	Code      string `json:"code"`
	TimeoutMS int64  `json:"timeout_ms"`
}

func (c *Client) Execute(ctx context.Context, code string, timeout time.Duration) (*session.ExecResult, error) {
	req := executeRequest{Code: code, TimeoutMS: timeout.Milliseconds()}

	var result session.ExecResult

	// The HTTP deadline leaves headroom over the kernel-side timeout so a
	// kernel-reported timeout status wins over a transport error.
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	err := c.post(ctx, "/execute", req, &result)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	return &result, nil
}

type valueResponse struct {
	Value any `json:"value"`
}

func (c *Client) GetValue(ctx context.Context, name string) (any, error) {
	endpoint := c.endpoint("/values/" + url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get value %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, session.ErrValueNotFound
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return nil, fmt.Errorf("get value %q: kernel returned %d: %s", name, resp.StatusCode, body)
	}

	var value valueResponse
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		return nil, fmt.Errorf("get value %q: decode: %w", name, err)
	}

	return value.Value, nil
}

func (c *Client) Close(ctx context.Context) error {
	endpoint := c.endpoint("")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("close session: kernel returned %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("kernel returned %d: %s", resp.StatusCode, raw)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/sessions/" + url.PathEscape(c.projectID) + path
}
