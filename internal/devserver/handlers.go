package devserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/task"
)

func (s *Server) login(c echo.Context) error {
	var creds api.Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if creds.Username == "" || creds.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}

	s.mu.Lock()
	acct, found := s.accounts[creds.Username]
	s.mu.Unlock()
	if !found || acct.Password != creds.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid username or password")
	}

	token, err := s.sign(acct.ID)
	if err != nil {
		return err
	}
	s.logger.Info("login", "user", acct.Username)
	return respond(c, http.StatusOK, "Login successful", api.LoginResult{Token: token, User: acct.User})
}

func (s *Server) logout(c echo.Context) error {
	if jti, _ := c.Get(ctxTokenIDKey).(string); jti != "" {
		s.mu.Lock()
		s.revoked[jti] = struct{}{}
		s.mu.Unlock()
	}
	return respond(c, http.StatusOK, "Logout successful", true)
}

func (s *Server) me(c echo.Context) error {
	user, _ := c.Get(ctxUserKey).(api.User)
	return respond(c, http.StatusOK, "User retrieved", user)
}

func (s *Server) listTasks(c echo.Context) error {
	return respond(c, http.StatusOK, "Tasks retrieved", s.Tasks())
}

func (s *Server) getTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	rec, found := s.tasks[id]
	var t task.Task
	if found {
		t = rec.task.Clone()
	}
	s.mu.Unlock()
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}
	return respond(c, http.StatusOK, "Task retrieved", t)
}

func (s *Server) createTask(c echo.Context) error {
	p, err := bindPayload(c)
	if err != nil {
		return err
	}
	user, _ := c.Get(ctxUserKey).(api.User)

	s.mu.Lock()
	s.nextID++
	s.seq++
	now := s.now().UTC()
	t := task.Task{
		ID:           s.nextID,
		Name:         p.Name,
		Description:  p.Description,
		Status:       p.Status,
		Teams:        p.Teams,
		ExternalLink: p.ExternalLink,
		Attachments:  []task.Attachment{},
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    user.ID,
	}
	s.tasks[t.ID] = &record{task: t, seq: s.seq}
	s.mu.Unlock()

	s.logger.Info("task created", "id", t.ID, "status", t.Status)
	return respond(c, http.StatusCreated, "Task created", t.Clone())
}

func (s *Server) updateTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	p, err := bindPayload(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.failUpdates > 0 {
		s.failUpdates--
		status := s.failStatus
		s.mu.Unlock()
		s.logger.Warn("injected update failure", "id", id, "status", status)
		return echo.NewHTTPError(status, "Injected failure")
	}
	rec, found := s.tasks[id]
	if !found {
		s.mu.Unlock()
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}
	// A status change moves the task to the end of the list, the same place
	// the client puts it optimistically.
	if rec.task.Status != p.Status {
		s.seq++
		rec.seq = s.seq
	}
	rec.task.Name = p.Name
	rec.task.Description = p.Description
	rec.task.Status = p.Status
	rec.task.Teams = p.Teams
	rec.task.ExternalLink = p.ExternalLink
	rec.task.UpdatedAt = s.now().UTC()
	t := rec.task.Clone()
	s.mu.Unlock()

	s.logger.Info("task updated", "id", id, "status", t.Status)
	return respond(c, http.StatusOK, "Task updated", t)
}

func (s *Server) deleteTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, found := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}
	s.logger.Info("task deleted", "id", id)
	return respond(c, http.StatusOK, "Task deleted", true)
}

func taskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid task id")
	}
	return id, nil
}

func bindPayload(c echo.Context) (task.Payload, error) {
	var p task.Payload
	if err := c.Bind(&p); err != nil {
		return task.Payload{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	p = p.Normalized()
	if err := task.ValidatePayload(p).Err(); err != nil {
		return task.Payload{}, echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return p, nil
}
