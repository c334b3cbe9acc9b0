package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nibzard/taskboard-go/internal/task"
)

// ListTasks returns every task visible to the current user.
func (c *Client) ListTasks(ctx context.Context) ([]task.Task, error) {
	var tasks TaskList
	if err := c.do(ctx, request{method: http.MethodGet, route: "/tasks", path: "/tasks", auth: true}, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// GetTask returns a single task.
func (c *Client) GetTask(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task
	err := c.do(ctx, request{method: http.MethodGet, route: "/tasks/{id}", path: taskPath(id), auth: true}, &t)
	return t, err
}

// CreateTask validates p and creates a task.
func (c *Client) CreateTask(ctx context.Context, p task.Payload) (task.Task, error) {
	p = p.Normalized()
	if err := task.ValidatePayload(p).Err(); err != nil {
		return task.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	var t task.Task
	err := c.do(ctx, request{method: http.MethodPost, route: "/tasks", path: "/tasks", body: p, auth: true}, &t)
	return t, err
}

// UpdateTask validates p and replaces the task's editable fields.
func (c *Client) UpdateTask(ctx context.Context, id int64, p task.Payload) (task.Task, error) {
	p = p.Normalized()
	if err := task.ValidatePayload(p).Err(); err != nil {
		return task.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	var t task.Task
	err := c.do(ctx, request{method: http.MethodPut, route: "/tasks/{id}", path: taskPath(id), body: p, auth: true}, &t)
	return t, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	var ok bool
	return c.do(ctx, request{method: http.MethodDelete, route: "/tasks/{id}", path: taskPath(id), auth: true}, &ok)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}
