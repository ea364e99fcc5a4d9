package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

// DefaultBaseURL is used when an environment omits its gateway address.
const DefaultBaseURL = "http://localhost:4100"

// Job statuses reported by the jobs endpoint.
const (
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ErrJobNotFound indicates the gateway no longer knows the job.
var ErrJobNotFound = errors.New("gateway: job not found")

// Client provides typed access to an Orbit gateway.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	requestID  func() string
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a Client pointing at the provided gateway base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalized gateway address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// EventsURL derives the realtime channel address for an environment from the
// gateway base URL.
func (c *Client) EventsURL(environmentID string) string {
	ws := c.baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/events?environment=" + url.QueryEscape(environmentID)
}

// APIError represents an error response from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway request failed with status %d", e.Status)
	}
	return fmt.Sprintf("gateway request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Orbit-Request-Id", c.requestID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// Services fetches the current service snapshot for the environment.
func (c *Client) Services(ctx context.Context) ([]domain.Service, error) {
	var envelope servicesEnvelope
	if err := c.do(ctx, http.MethodGet, "/status", nil, &envelope); err != nil {
		return nil, err
	}
	return normalizeServices(envelope)
}

// DispatchResult is the gateway's acknowledgement of a dispatched action.
type DispatchResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type dispatchAck struct {
	Success   bool   `json:"success"`
	JobID     string `json:"job_id"`
	JobIDCaml string `json:"jobId"`
	Error     string `json:"error"`
}

func (a dispatchAck) result() DispatchResult {
	jobID := a.JobID
	if jobID == "" {
		jobID = a.JobIDCaml
	}
	return DispatchResult{Success: a.Success, JobID: jobID, Error: a.Error}
}

// ServiceAction dispatches an action against a single service. Host-supervised
// services use a separate endpoint family from containerized ones.
func (c *Client) ServiceAction(ctx context.Context, service, action, serviceType string) (DispatchResult, error) {
	family := "services"
	if serviceType == domain.ServiceTypeHost {
		family = "host-services"
	}
	path := fmt.Sprintf("/%s/%s/%s", family, url.PathEscape(service), url.PathEscape(action))
	var ack dispatchAck
	if err := c.do(ctx, http.MethodPost, path, nil, &ack); err != nil {
		return DispatchResult{}, err
	}
	return ack.result(), nil
}

// GlobalAction dispatches a bulk action against every service at once.
func (c *Client) GlobalAction(ctx context.Context, action string) (DispatchResult, error) {
	var ack dispatchAck
	if err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(action), nil, &ack); err != nil {
		return DispatchResult{}, err
	}
	return ack.result(), nil
}

// JobStatus reports the terminal state of a dispatched action.
type JobStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Job looks up a dispatched job by its identifier.
func (c *Client) Job(ctx context.Context, jobID string) (JobStatus, error) {
	var status JobStatus
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &status)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return JobStatus{}, err
	}
	return status, nil
}

type projectsEnvelope struct {
	Success *bool               `json:"success"`
	Error   string              `json:"error"`
	Data    *domain.ProjectList `json:"data"`
	// Legacy gateways returned the list fields at the top level.
	Projects          []domain.Project `json:"projects"`
	TLD               string           `json:"tld"`
	DefaultPHPVersion string           `json:"default_php_version"`
}

// Projects fetches the authoritative project list with host metadata.
func (c *Client) Projects(ctx context.Context) (domain.ProjectList, error) {
	var envelope projectsEnvelope
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &envelope); err != nil {
		return domain.ProjectList{}, err
	}
	if envelope.Success != nil && !*envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "project list rejected"
		}
		return domain.ProjectList{}, fmt.Errorf("gateway: %s", msg)
	}
	if envelope.Data != nil {
		return *envelope.Data, nil
	}
	return domain.ProjectList{
		Projects:          envelope.Projects,
		TLD:               envelope.TLD,
		DefaultPHPVersion: envelope.DefaultPHPVersion,
	}, nil
}

// CreateProjectInput captures the payload for project creation.
type CreateProjectInput struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	PHPVersion string `json:"php_version,omitempty"`
	Repo       string `json:"repo,omitempty"`
}

// CreateProjectResult acknowledges a creation request. Progress arrives via
// realtime events keyed by slug.
type CreateProjectResult struct {
	Success bool
	Slug    string
	Error   string
}

// CreateProject submits a new project for provisioning.
func (c *Client) CreateProject(ctx context.Context, input CreateProjectInput) (CreateProjectResult, error) {
	var ack struct {
		Success bool   `json:"success"`
		Slug    string `json:"slug"`
		Error   string `json:"error"`
		Data    *struct {
			Slug string `json:"slug"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/projects", input, &ack); err != nil {
		return CreateProjectResult{}, err
	}
	slug := ack.Slug
	if slug == "" && ack.Data != nil {
		slug = ack.Data.Slug
	}
	return CreateProjectResult{Success: ack.Success, Slug: slug, Error: ack.Error}, nil
}

// DeleteProjectResult acknowledges a deletion request. Synchronous reports
// whether the gateway finished the removal inside the request; otherwise
// progress arrives via realtime events.
type DeleteProjectResult struct {
	Success     bool   `json:"success"`
	Synchronous bool   `json:"synchronous"`
	Error       string `json:"error,omitempty"`
}

// DeleteProject removes a project by slug.
func (c *Client) DeleteProject(ctx context.Context, slug string) (DeleteProjectResult, error) {
	var result DeleteProjectResult
	if err := c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(slug), nil, &result); err != nil {
		return DeleteProjectResult{}, err
	}
	return result, nil
}

// Health probes the gateway liveness endpoint.
func (c *Client) Health(ctx context.Context) (string, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &payload); err != nil {
		return "", err
	}
	if payload.Status == "" {
		payload.Status = "ok"
	}
	return payload.Status, nil
}
