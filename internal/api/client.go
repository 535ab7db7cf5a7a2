package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned when the daemon answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
	Kind    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Code)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// Client calls the daemon HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// uploadClientTimeout bounds a multipart upload end to end.
const uploadClientTimeout = 30 * time.Minute

// NewClient targets addr, which may be host:port or a full URL.
func NewClient(addr string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("api address required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	return &Client{base: base, http: &http.Client{Timeout: 30 * time.Second}}, nil
}

// Submit posts a new video.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/videos", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload streams a local file to the daemon as multipart form data. Use it
// when the daemon cannot read the caller's filesystem.
func (c *Client) Upload(ctx context.Context, path string, req SubmitRequest) (*SubmitResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, file, filepath.Base(path), req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("/api/videos").String(), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	uploader := &http.Client{Timeout: uploadClientTimeout, Transport: c.http.Transport}
	var resp SubmitResponse
	if err := c.send(uploader, httpReq, &resp); err != nil {
		_ = pr.Close()
		return nil, err
	}
	return &resp, nil
}

func writeUploadForm(form *multipart.Writer, file io.Reader, name string, req SubmitRequest) error {
	fields := [][2]string{{"title", req.Title}, {"description", req.Description}}
	for _, tag := range req.Tags {
		fields = append(fields, [2]string{"tags", tag})
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return form.Close()
}

// Progress fetches the progress snapshot for id.
func (c *Client) Progress(ctx context.Context, id string) (*Progress, error) {
	var resp Progress
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+id+"/progress", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue fetches the queue status.
func (c *Client) Queue(ctx context.Context) (*QueueStatus, error) {
	var resp QueueStatus
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Videos lists catalog records, newest first. A non-positive limit uses the
// daemon default.
func (c *Client) Videos(ctx context.Context, limit int) ([]Video, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var resp VideoListResponse
	if err := c.doQuery(ctx, http.MethodGet, "/api/videos", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Videos, nil
}

// Video fetches one catalog record.
func (c *Client) Video(ctx context.Context, id string) (*Video, error) {
	var resp VideoResponse
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Video, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doQuery(ctx, method, path, nil, body, out)
}

func (c *Client) doQuery(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(c.http, req, out)
}

func (c *Client) send(httpClient *http.Client, req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.base.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode}
		var payload ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
			statusErr.Message = payload.Error
			statusErr.Kind = payload.Kind
		}
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
