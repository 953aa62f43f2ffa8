// Package cliclient is the nats3ctl HTTP client: it calls the façade's
// route table and decodes its JSON bodies, translating {"error": "..."}
// responses into a typed error carrying the response's status code.
package cliclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/gurre/nats3/types"
)

// Client calls a running nats3 server's HTTP façade.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client addressing baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// ResponseError is returned when the server responds with a non-2xx status
// and a {"error": "..."} body.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &ResponseError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s %s: %w", method, path, err)
	}
	return nil
}

// --- store jobs ---

func (c *Client) ListStoreJobs(ctx context.Context) ([]types.StoreJob, error) {
	var jobs []types.StoreJob
	err := c.do(ctx, http.MethodGet, "/store/jobs", nil, nil, &jobs)
	return jobs, err
}

func (c *Client) GetStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	var job types.StoreJob
	err := c.do(ctx, http.MethodGet, "/store/job", url.Values{"job_id": {id}}, nil, &job)
	return job, err
}

func (c *Client) CreateStoreJob(ctx context.Context, create types.CreateStoreJob) (types.StoreJob, error) {
	var job types.StoreJob
	err := c.do(ctx, http.MethodPost, "/store/job", nil, create, &job)
	return job, err
}

func (c *Client) DeleteStoreJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/store/job", url.Values{"job_id": {id}}, nil, nil)
}

func (c *Client) PauseStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	var job types.StoreJob
	err := c.do(ctx, http.MethodPost, "/store/job/pause", url.Values{"job_id": {id}}, nil, &job)
	return job, err
}

func (c *Client) ResumeStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	var job types.StoreJob
	err := c.do(ctx, http.MethodPost, "/store/job/resume", url.Values{"job_id": {id}}, nil, &job)
	return job, err
}

// --- load jobs ---

func (c *Client) ListLoadJobs(ctx context.Context) ([]types.LoadJob, error) {
	var jobs []types.LoadJob
	err := c.do(ctx, http.MethodGet, "/load/jobs", nil, nil, &jobs)
	return jobs, err
}

func (c *Client) GetLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	var job types.LoadJob
	err := c.do(ctx, http.MethodGet, "/load/job", url.Values{"job_id": {id}}, nil, &job)
	return job, err
}

func (c *Client) CreateLoadJob(ctx context.Context, create types.CreateLoadJob) (types.LoadJob, error) {
	var job types.LoadJob
	err := c.do(ctx, http.MethodPost, "/load/job", nil, create, &job)
	return job, err
}

func (c *Client) DeleteLoadJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/load/job", url.Values{"job_id": {id}}, nil, nil)
}

func (c *Client) PauseLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	var job types.LoadJob
	err := c.do(ctx, http.MethodPost, "/load/job/pause", url.Values{"job_id": {id}}, nil, &job)
	return job, err
}

func (c *Client) ResumeLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	var job types.LoadJob
	err := c.do(ctx, http.MethodPost, "/load/job/resume", url.Values{"job_id": {id}}, nil, &job)
	return job, err
}
