package rhflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal rhflow HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base path,
// e.g. "http://127.0.0.1:8787/api".
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Timeout:     10 * time.Second,
	}
}

// Profile is the API user profile model.
type Profile struct {
	ID           int64   `json:"id"`
	ExternalID   string  `json:"external_id"`
	Email        string  `json:"email,omitempty"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	Position     *string `json:"position,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	ManagerID    *int64  `json:"manager_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// Task is the API task model.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
	Deadline    *string `json:"deadline,omitempty"`
	AssigneeID  *int64  `json:"assignee_id,omitempty"`
	CreatorID   int64   `json:"creator_id"`
	Importance  string  `json:"importance"`
	Notes       *string `json:"notes,omitempty"`
	ProjectID   *int64  `json:"project_id,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// TaskUpdate is one comment/status-change record with its attachments.
type TaskUpdate struct {
	ID           int64        `json:"id"`
	TaskID       int64        `json:"task_id"`
	AuthorID     int64        `json:"author_id"`
	Comment      string       `json:"comment"`
	StatusBefore string       `json:"status_before"`
	StatusAfter  string       `json:"status_after"`
	CreatedAt    string       `json:"created_at"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Attachment is stored file metadata.
type Attachment struct {
	ID          int64  `json:"id"`
	UpdateID    int64  `json:"update_id"`
	TaskID      int64  `json:"task_id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

// AttachmentResult is one uploaded file's outcome.
type AttachmentResult struct {
	Filename   string      `json:"filename"`
	Error      string      `json:"error,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// ChangeLogEntry is one field-level audit row.
type ChangeLogEntry struct {
	ID        int64   `json:"id"`
	TaskID    int64   `json:"task_id"`
	AuthorID  int64   `json:"author_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// Project is the API project model.
type Project struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateProfile creates the caller's own profile.
func (c *Client) CreateProfile(ctx context.Context, name, email, role string) (Profile, error) {
	body := map[string]any{"name": name, "email": email, "role": role}
	var resp Profile
	err := c.do(ctx, http.MethodPost, "profiles", body, &resp)
	return resp, err
}

// ListProfiles returns all profiles.
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var resp []Profile
	err := c.do(ctx, http.MethodGet, "profiles", nil, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, body map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// ListTasks returns tasks visible to the caller.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

// UpdateTask applies a partial edit.
func (c *Client) UpdateTask(ctx context.Context, id int64, body map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%d", id), body, &resp)
	return resp, err
}

// TaskUpdates returns a task's comment thread, newest first.
func (c *Client) TaskUpdates(ctx context.Context, taskID int64) ([]TaskUpdate, error) {
	var resp []TaskUpdate
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d/updates", taskID), nil, &resp)
	return resp, err
}

// TaskChangeLog returns a task's field change history.
func (c *Client) TaskChangeLog(ctx context.Context, taskID int64) ([]ChangeLogEntry, error) {
	var resp []ChangeLogEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d/changelog", taskID), nil, &resp)
	return resp, err
}

// ListProjects returns all projects; each entry carries a "stats" rollup that
// callers needing it should decode from the raw response instead.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

// UploadAttachments posts files against a task update.
func (c *Client) UploadAttachments(ctx context.Context, taskID, updateID int64, files map[string][]byte) ([]AttachmentResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/tasks/%d/updates/%d/attachments", c.base(), taskID, updateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	var out struct {
		Results []AttachmentResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// DownloadAttachment fetches an attachment's bytes.
func (c *Client) DownloadAttachment(ctx context.Context, id int64) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/attachments/%d", c.base(), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
