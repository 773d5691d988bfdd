package backend

import (
	"context"
	"fmt"
	"net/http"

	"genstudio-dashboard/internal/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login posts credentials. Pre-session, so no CSRF token is attached.
func (c *Client) Login(ctx context.Context, username, password string) (model.Envelope, error) {
	return c.Do(ctx, http.MethodPost, "/v1/user/login", credentials{username, password}, false)
}

// Register creates an account. It does not authenticate the session; callers
// log in afterwards.
func (c *Client) Register(ctx context.Context, username, password string) (model.Envelope, error) {
	return c.Do(ctx, http.MethodPost, "/v1/user/registry", credentials{username, password}, false)
}

// UserInfo is the "who am I" call, gated by the session cookie alone.
func (c *Client) UserInfo(ctx context.Context) (model.Envelope, error) {
	return c.Do(ctx, http.MethodGet, "/v1/user/info", nil, false)
}

func (c *Client) Projects(ctx context.Context) (model.Envelope, error) {
	return c.Do(ctx, http.MethodGet, "/v1/project", nil, false)
}

func (c *Client) CreateProject(ctx context.Context, title string) (model.Envelope, error) {
	body := struct {
		Title string `json:"title"`
	}{title}
	return c.Do(ctx, http.MethodPost, "/v1/project", body, true)
}

func (c *Client) ProjectTasks(ctx context.Context, projectID int64) (model.Envelope, error) {
	return c.Do(ctx, http.MethodGet, fmt.Sprintf("/v1/project/%d", projectID), nil, false)
}

// DeleteProject removes a project; the backend cascades to its tasks.
func (c *Client) DeleteProject(ctx context.Context, projectID int64) (model.Envelope, error) {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/v1/project/%d", projectID), nil, true)
}

func (c *Client) GenerateImage(ctx context.Context, req model.GenerateImageRequest) (model.Envelope, error) {
	return c.Do(ctx, http.MethodPost, "/v1/generate/image", req, true)
}

func (c *Client) GenerateVideo(ctx context.Context, req model.GenerateVideoRequest) (model.Envelope, error) {
	return c.Do(ctx, http.MethodPost, "/v1/generate/video", req, true)
}

// Uploads lists previously uploaded files.
func (c *Client) Uploads(ctx context.Context) (model.Envelope, error) {
	return c.Do(ctx, http.MethodGet, "/v1/upload", nil, false)
}

// FetchTasks is the decoded form of ProjectTasks, used by the polling loop.
// A non-OK envelope becomes an error here because the poller has no user to
// show the message to.
func (c *Client) FetchTasks(ctx context.Context, projectID int64) ([]model.Task, error) {
	env, err := c.ProjectTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return nil, fmt.Errorf("listing tasks for project %d: backend code %d", projectID, env.Code)
	}
	var body struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := env.Decode(&body); err != nil {
		return nil, fmt.Errorf("listing tasks for project %d: %w", projectID, err)
	}
	return body.Tasks, nil
}
