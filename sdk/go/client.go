package tasklinesdk

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
)

// Client is a minimal Taskline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	MilestoneIDs []string `json:"milestone_ids,omitempty"`
}

// Milestone represents the API milestone model.
type Milestone struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	DueDate       *string  `json:"due_date,omitempty"`
	CompletedDate *string  `json:"completed_date,omitempty"`
	TaskIDs       []string `json:"task_ids,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty"`
}

// Task represents the API task model.
type Task struct {
	ID              string   `json:"id"`
	MilestoneID     string   `json:"milestone_id"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	EstimatedPoints int      `json:"estimated_points"`
	ActualPoints    *int     `json:"actual_points,omitempty"`
	BlockReason     string   `json:"block_reason,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
}

// Event represents one entry from the event index.
type Event struct {
	Seq      uint64   `json:"seq"`
	ID       string   `json:"id"`
	TS       string   `json:"ts"`
	Type     string   `json:"type"`
	Entities []string `json:"entities,omitempty"`
	Payload  string   `json:"payload_json"`
}

// Statistics mirrors the aggregate statistics endpoint.
type Statistics struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	TotalPoints          int     `json:"total_points"`
	EarnedPoints         int     `json:"earned_points"`
	AveragePointsPerHour float64 `json:"average_points_per_hour"`
}

// APIError wraps non-2xx responses, carrying the decoded error envelope when
// the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, title, description string) (Project, error) {
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// Project fetches one project.
func (c *Client) Project(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

// CreateMilestone creates a milestone under a project.
func (c *Client) CreateMilestone(ctx context.Context, projectID, title string) (Milestone, error) {
	var resp Milestone
	endpoint := fmt.Sprintf("projects/%s/milestones", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"title": title}, &resp)
	return resp, err
}

// CreateTask creates a task under a milestone.
func (c *Client) CreateTask(ctx context.Context, milestoneID, title string, estimatedPoints int) (Task, error) {
	body := map[string]any{
		"title":            title,
		"estimated_points": estimatedPoints,
	}
	var resp Task
	endpoint := fmt.Sprintf("milestones/%s/tasks", url.PathEscape(milestoneID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// StartTask moves a task to in_progress.
func (c *Client) StartTask(ctx context.Context, taskID string) (Task, error) {
	return c.taskAction(ctx, taskID, "start", map[string]any{})
}

// BlockTask blocks an in-progress task with a reason.
func (c *Client) BlockTask(ctx context.Context, taskID, reason string) (Task, error) {
	return c.taskAction(ctx, taskID, "block", map[string]any{"reason": reason})
}

// UnblockTask resumes a blocked task.
func (c *Client) UnblockTask(ctx context.Context, taskID string) (Task, error) {
	return c.taskAction(ctx, taskID, "unblock", map[string]any{})
}

// CompleteTask completes an in-progress task. A nil actualPoints falls back to
// the task's estimate.
func (c *Client) CompleteTask(ctx context.Context, taskID string, actualPoints *int) (Task, error) {
	body := map[string]any{}
	if actualPoints != nil {
		body["actual_points"] = *actualPoints
	}
	return c.taskAction(ctx, taskID, "complete", body)
}

// AddTaskDependency records that taskID depends on dependsOn.
func (c *Client) AddTaskDependency(ctx context.Context, taskID, dependsOn string) (Task, error) {
	return c.taskAction(ctx, taskID, "dependencies", map[string]any{"depends_on": dependsOn})
}

// Events returns up to limit recent events, oldest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("events?limit=%d", limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EntityEvents returns the recent history of one project, milestone or task.
func (c *Client) EntityEvents(ctx context.Context, entityID string, limit int) ([]Event, error) {
	endpoint := fmt.Sprintf("events?entity_id=%s", url.QueryEscape(entityID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Statistics returns the aggregate statistics.
func (c *Client) Statistics(ctx context.Context) (Statistics, error) {
	var resp Statistics
	err := c.do(ctx, http.MethodGet, "statistics", nil, &resp)
	return resp, err
}

func (c *Client) taskAction(ctx context.Context, taskID, action string, body map[string]any) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/%s", url.PathEscape(taskID), action)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
