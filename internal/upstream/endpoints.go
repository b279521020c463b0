package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/schedura/console-gateway/internal/models"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
)

// LoginResult is the upstream login payload.
type LoginResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         models.UserInfo `json:"user"`
}

// Login authenticates against the platform and stores the issued tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode login payload")
	}

	var result LoginResult
	if _, err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/auth/login",
		Body:     payload,
		SkipAuth: true,
	}, &result); err != nil {
		return nil, err
	}

	c.store.SetTokens(models.TokenPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	return &result, nil
}

// Logout tells the platform to revoke the refresh token and clears local
// session state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{"refresh_token": c.store.Tokens().RefreshToken})
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/logout", Body: payload}, nil)
	c.store.Clear()
	return err
}

// Refresh forces a token rotation using the stored refresh token. Normal
// traffic never needs this; the Do retry path refreshes on demand.
func (c *Client) Refresh(ctx context.Context) error {
	return c.awaitRefresh(ctx, c.Generation())
}

// Me fetches the current user profile for session verification.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	var user models.UserInfo
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/users/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UploadCSV submits one CSV file for asynchronous validation and returns
// the created task id.
func (c *Client) UploadCSV(ctx context.Context, category models.Category, fileName, description string, file []byte) (string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build multipart body")
	}
	if _, err := part.Write(file); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write multipart body")
	}
	if err := writer.WriteField("category", string(category)); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write multipart field")
	}
	if description != "" {
		if err := writer.WriteField("description", description); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write multipart field")
		}
	}
	if err := writer.Close(); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "finish multipart body")
	}

	var result struct {
		TaskID string `json:"task_id"`
	}
	if _, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/file/upload",
		Body:        buf.Bytes(),
		ContentType: writer.FormDataContentType(),
		Multipart:   true,
	}, &result); err != nil {
		return "", err
	}
	return result.TaskID, nil
}

// ListTasks pages through the upload task list.
func (c *Client) ListTasks(ctx context.Context, page, limit int) ([]models.UploadTask, *Pagination, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", fmt.Sprintf("%d", page))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/validation/status"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var tasks []models.UploadTask
	pagination, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path}, &tasks)
	if err != nil {
		return nil, nil, err
	}
	return tasks, pagination, nil
}

// TaskDetail fetches one upload task including its row-level findings.
func (c *Client) TaskDetail(ctx context.Context, taskID string) (*models.UploadTaskDetail, error) {
	var detail models.UploadTaskDetail
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/validation/status/" + url.PathEscape(taskID)}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteTask removes an upload task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/validation/" + url.PathEscape(taskID)}, nil)
	return err
}

// ListSchedules returns schedule summaries (sessions omitted).
func (c *Client) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	var schedules []models.Schedule
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/schedules"}, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// GenerateParams is passed through opaquely to the external solver.
type GenerateParams struct {
	Name             string   `json:"name" validate:"required"`
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty"`
	PopulationSize   int      `json:"population_size,omitempty"`
	MutationRate     *float64 `json:"mutation_rate,omitempty"`
	CrossoverRate    *float64 `json:"crossover_rate,omitempty"`
	FitnessThreshold *float64 `json:"fitness_threshold,omitempty"`
}

// Generate kicks off schedule generation on the platform.
func (c *Client) Generate(ctx context.Context, params GenerateParams) (*models.Schedule, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode generate payload")
	}
	var schedule models.Schedule
	if _, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/schedules/generate", Body: payload}, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ActiveSchedule fetches the server-designated active schedule, sessions
// included.
func (c *Client) ActiveSchedule(ctx context.Context) (*models.Schedule, error) {
	var schedule models.Schedule
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/schedules/active"}, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ActivateSchedule marks the given schedule active system-wide.
func (c *Client) ActivateSchedule(ctx context.Context, scheduleID string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/schedules/" + url.PathEscape(scheduleID) + "/activate"}, nil)
	return err
}

// DeleteSchedule removes a schedule.
func (c *Client) DeleteSchedule(ctx context.Context, scheduleID string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/schedules/" + url.PathEscape(scheduleID)}, nil)
	return err
}

// SearchSessions runs a filtered session search within one schedule.
func (c *Client) SearchSessions(ctx context.Context, params models.SessionSearchParams) ([]models.Session, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode search payload")
	}
	var sessions []models.Session
	if _, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/schedules/sessions/id/search", Body: payload}, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
