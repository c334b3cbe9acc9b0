// Package devserver is an in-memory implementation of the task API.
//
// It backs the `taskboard dev-server` command and the integration tests of
// the client packages. Tokens are HS256 JWTs signed with a per-server secret;
// data lives only as long as the process.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nibzard/taskboard-go/internal/api"
	"github.com/nibzard/taskboard-go/internal/task"
)

// Account is a user that can log in.
type Account struct {
	api.User
	Password string
}

// Options configures a Server.
type Options struct {
	Secret   []byte
	TokenTTL time.Duration
	Accounts []Account
	Tasks    []task.Task
	Logger   *log.Logger
	Now      func() time.Time
}

type record struct {
	task task.Task
	seq  uint64
}

// Server serves the API under /api.
type Server struct {
	echo   *echo.Echo
	secret []byte
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
	parser *jwt.Parser

	mu          sync.Mutex
	accounts    map[string]Account
	tasks       map[int64]*record
	nextID      int64
	seq         uint64
	revoked     map[string]struct{}
	failUpdates int
	failStatus  int
	latency     time.Duration
}

// DemoAccount is seeded when no accounts are configured.
func DemoAccount() Account {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return Account{
		User: api.User{
			ID:        1,
			Name:      "Demo User",
			Username:  "demo",
			CreatedAt: created,
			UpdatedAt: created,
		},
		Password: "demo",
	}
}

// DemoTasks is a small board used by the dev-server command.
func DemoTasks() []task.Task {
	created := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	mk := func(id int64, name, desc string, status task.Status, teams ...task.Team) task.Task {
		return task.Task{
			ID:          id,
			Name:        name,
			Description: desc,
			Status:      status,
			Teams:       teams,
			Attachments: []task.Attachment{},
			CreatedAt:   created,
			UpdatedAt:   created.Add(time.Duration(id) * time.Hour),
			CreatedBy:   1,
		}
	}
	return []task.Task{
		mk(1, "Design login screen", "Wireframes and final mockups", task.StatusTodo, task.TeamDesign),
		mk(2, "Auth endpoints", "Login, logout and me", task.StatusDoing, task.TeamBackend),
		mk(3, "Kanban board", "Columns with drag and drop", task.StatusDoing, task.TeamFrontend, task.TeamDesign),
		mk(4, "Project setup", "Repository, CI and linting", task.StatusDone, task.TeamBackend, task.TeamFrontend),
	}
}

// New builds a server. Zero options give a demo account and an empty board.
func New(opts Options) *Server {
	secret := opts.Secret
	if len(secret) == 0 {
		secret = []byte(uuid.NewString())
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	accounts := opts.Accounts
	if len(accounts) == 0 {
		accounts = []Account{DemoAccount()}
	}

	s := &Server{
		secret:   secret,
		ttl:      ttl,
		logger:   logger,
		now:      now,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		accounts: make(map[string]Account, len(accounts)),
		tasks:    make(map[int64]*record),
		revoked:  make(map[string]struct{}),
	}
	for _, a := range accounts {
		s.accounts[a.Username] = a
	}
	for _, t := range opts.Tasks {
		s.seq++
		t = t.Clone()
		if t.Teams == nil {
			t.Teams = []task.Team{}
		}
		if t.Attachments == nil {
			t.Attachments = []task.Attachment{}
		}
		s.tasks[t.ID] = &record{task: t, seq: s.seq}
		if t.ID > s.nextID {
			s.nextID = t.ID
		}
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError
	s.routes()
	return s
}

func (s *Server) routes() {
	g := s.echo.Group("/api")
	g.Use(s.withLatency)
	g.POST("/auth/login", s.login)

	authed := g.Group("", s.requireAuth)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/auth/me", s.me)
	authed.GET("/tasks", s.listTasks)
	authed.POST("/tasks", s.createTask)
	authed.GET("/tasks/:id", s.getTask)
	authed.PUT("/tasks/:id", s.updateTask)
	authed.DELETE("/tasks/:id", s.deleteTask)
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("dev server listening", "addr", addr, "api", "http://"+addr+"/api")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dev server: %w", err)
	}
	return nil
}

// Shutdown stops the listener started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// FailNextUpdates makes the next n PUT /tasks/{id} requests fail with status.
func (s *Server) FailNextUpdates(n, status int) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	s.mu.Lock()
	s.failUpdates = n
	s.failStatus = status
	s.mu.Unlock()
}

// SetLatency delays every API response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// Tasks returns the server's tasks in list order.
func (s *Server) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked()
}

// IssueToken signs a token for the account with the given username.
func (s *Server) IssueToken(username string) (string, error) {
	s.mu.Lock()
	acct, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	return s.sign(acct.ID)
}

func (s *Server) sign(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) orderedLocked() []task.Task {
	recs := make([]*record, 0, len(s.tasks))
	for _, r := range s.tasks {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]task.Task, len(recs))
	for i, r := range recs {
		out[i] = r.task.Clone()
	}
	return out
}

func (s *Server) withLatency(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		d := s.latency
		s.mu.Unlock()
		if d > 0 {
			select {
			case <-time.After(d):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		return next(c)
	}
}

const ctxUserKey = "devserver.user"
const ctxTokenIDKey = "devserver.jti"

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
		}

		claims := &jwt.RegisteredClaims{}
		_, err := s.parser.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		s.mu.Lock()
		_, revoked := s.revoked[claims.ID]
		var user api.User
		found := false
		for _, a := range s.accounts {
			if strconv.FormatInt(a.ID, 10) == claims.Subject {
				user, found = a.User, true
				break
			}
		}
		s.mu.Unlock()
		if revoked || !found {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxTokenIDKey, claims.ID)
		return next(c)
	}
}

func respond[T any](c echo.Context, status int, message string, data T) error {
	return c.JSON(status, api.Envelope[T]{Status: "success", Message: message, Data: data})
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}
	if jsonErr := c.JSON(status, api.Envelope[any]{Status: "error", Message: message}); jsonErr != nil {
		s.logger.Error("write error response", "error", jsonErr)
	}
}
