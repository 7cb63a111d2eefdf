package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"projecttracker/internal/handler"
	"projecttracker/internal/mail"
	"projecttracker/internal/model"
	"projecttracker/internal/otdr"
	"projecttracker/internal/project"
	"projecttracker/internal/stage"
	"projecttracker/internal/util"
	"projecttracker/pkg/config"
	"projecttracker/pkg/rbac"
)

const testSecret = "test-secret"

type stubSender struct {
	err  error
	sent []mail.Message
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(ctx context.Context, msg mail.Message) (mail.Result, error) {
	if err := msg.Validate(); err != nil {
		return mail.Result{}, err
	}
	if s.err != nil {
		return mail.Result{}, s.err
	}
	s.sent = append(s.sent, msg)
	return mail.Result{Success: true, MessageID: "msg-1", Provider: "stub"}, nil
}

type RouterTestSuite struct {
	suite.Suite
	router *Router
	sender *stubSender
	otdr   *otdr.Service
	ready  error
}

func seedProject() model.Project {
	return model.Project{
		ID:           "p-1",
		Name:         "Line 4 retrofit",
		Description:  "Conveyor upgrade",
		Status:       model.StatusActive,
		Assignee:     "Dana",
		ProjectType:  "p-new",
		BusinessUnit: "ev",
		CreatedAt:    time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Stages: map[model.StageID]model.StageState{
			stage.MechanicalDesign: {Person: "Ari", DueDate: model.NewDate(2025, time.January, 10)},
			stage.Manufacturing:    {Person: "Kim", DueDate: model.NewDate(2025, time.January, 20)},
		},
	}
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	hash, err := util.HashPassword("letmein")
	s.Require().NoError(err)

	repo := project.NewMemoryRepository(seedProject())
	engine := stage.NewEngine(stage.Default)
	cache := project.NewCache(repo, engine, 0, log)
	clock := func() time.Time { return time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC) }
	s.otdr = otdr.NewService(otdr.NewMemoryStore(), stage.Default, log, otdr.WithClock(clock))
	svc := project.NewService(cache, repo, engine, s.otdr, log,
		project.WithClock(clock),
		project.WithIDGenerator(func() string { return "p-new" }),
	)
	s.sender = &stubSender{}
	s.ready = nil

	s.router = NewRouter(Handlers{
		Auth:    handler.NewAuthHandler(config.AdminConfig{Username: "ops", PasswordHash: hash}, config.JWTConfig{Secret: testSecret, TTLHours: 1}, log),
		Mail:    handler.NewMailHandler(s.sender, log),
		OTDR:    handler.NewOTDRHandler(s.otdr, log),
		Project: handler.NewProjectHandler(svc, log),
	}, testSecret, log, map[string]ReadinessCheck{
		"db": func(ctx context.Context) error { return s.ready },
	})
}

func (s *RouterTestSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) token(role string) string {
	tok, err := util.GenerateJWT("ops", role, testSecret, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *RouterTestSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *RouterTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Trace-ID"))

	w = s.do(http.MethodHead, "/healthz", nil, "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestTraceIDIsEchoed() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "abc-123")
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	s.Equal("abc-123", w.Header().Get("X-Trace-ID"))
}

func (s *RouterTestSuite) TestReadiness() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", nil, "").Code)

	s.ready = errors.New("connection refused")
	w := s.do(http.MethodGet, "/readyz", nil, "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), "db_not_ready")
}

func (s *RouterTestSuite) TestSendEmail() {
	w := s.do(http.MethodPost, "/send-email", map[string]any{
		"to": "a@example.com, b@example.com", "subject": "Hi", "html": "<p>Hello</p>",
	}, "")
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Success   bool   `json:"success"`
		MessageID string `json:"messageId"`
	}
	s.decode(w, &resp)
	s.True(resp.Success)
	s.Equal("msg-1", resp.MessageID)
	s.Require().Len(s.sender.sent, 1)
	s.Equal([]string{"a@example.com", "b@example.com"}, []string(s.sender.sent[0].To))
}

func (s *RouterTestSuite) TestSendEmailTransportFailure() {
	s.sender.err = errors.New("smtp: 421 try later")
	w := s.do(http.MethodPost, "/send-email", map[string]any{
		"to": "a@example.com", "subject": "Hi", "text": "Hello",
	}, "")
	s.Equal(http.StatusInternalServerError, w.Code)

	var resp map[string]any
	s.decode(w, &resp)
	s.Equal(false, resp["success"])
	s.Equal("smtp: 421 try later", resp["error"])
}

func (s *RouterTestSuite) TestSendEmailRejectsInvalidMessage() {
	w := s.do(http.MethodPost, "/send-email", map[string]any{"to": "a@example.com"}, "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestUpdateOTDRAndStats() {
	w := s.do(http.MethodPost, "/update-otdr", map[string]any{
		"projectId":     "p-1",
		"projectName":   "Line 4 retrofit",
		"stageName":     "manufacturing",
		"dueDate":       "2025-01-20",
		"completed":     true,
		"completedDate": "2025-01-19",
	}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/otdr-stats", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var stats []otdr.Stat
	s.decode(w, &stats)
	s.Require().Len(stats, stage.Default.Len())
	m := stats[stage.Default.Index(stage.Manufacturing)]
	s.Equal(1, m.TotalProjects)
	s.Equal(100.0, m.OTDR)

	w = s.do(http.MethodGet, "/api/otdr/manufacturing", nil, "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestUpdateOTDRCompletedWithoutDate() {
	w := s.do(http.MethodPost, "/update-otdr", map[string]any{
		"projectId":   "p-1",
		"projectName": "Line 4 retrofit",
		"stageName":   "manufacturing",
		"dueDate":     "2025-01-20",
		"completed":   true,
	}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool        `json:"success"`
		Record  otdr.Record `json:"record"`
	}
	s.decode(w, &resp)
	s.True(resp.Success)
	s.Require().Len(resp.Record.Entries, 1)
	e := resp.Record.Entries[0]
	s.Require().NotNil(e.CompletedDate)
	s.Equal("2025-01-11", e.CompletedDate.String())
	s.Require().NotNil(e.OnTime)
	s.True(*e.OnTime)
	s.Equal(1, resp.Record.OnTimeProjects)
	s.Equal(100.0, resp.Record.OTDR)
}

func (s *RouterTestSuite) TestUpdateOTDRRejectsUnknownStage() {
	w := s.do(http.MethodPost, "/update-otdr", map[string]any{
		"projectId": "p-1", "stageName": "painting", "dueDate": "2025-01-20",
	}, "")
	s.Equal(http.StatusBadRequest, w.Code)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/otdr/painting", nil, "").Code)
}

func (s *RouterTestSuite) TestResetOTDRRequiresAdmin() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/reset-otdr", nil, "").Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/reset-otdr", nil, "garbage").Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/reset-otdr", nil, s.token(rbac.RoleViewer)).Code)
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/reset-otdr", nil, s.token(rbac.RoleAdmin)).Code)
}

func (s *RouterTestSuite) TestLogin() {
	w := s.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "ops", "password": "letmein"}, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	s.decode(w, &resp)

	claims, err := util.ParseJWT(resp.Token, testSecret)
	s.Require().NoError(err)
	s.Equal(rbac.RoleAdmin, claims.Role)

	w = s.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "ops", "password": "nope"}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestToggleStage() {
	w := s.do(http.MethodPost, "/api/projects/p-1/stages/mechanical-design/toggle", map[string]bool{"completed": true}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp project.ToggleStageResponse
	s.decode(w, &resp)
	s.Equal(stage.Manufacturing, resp.Project.CurrentStage)
	s.Equal(45, resp.Project.Progress)
	s.Require().NotNil(resp.OTDR)
	s.Equal(1, resp.OTDR.TotalProjects)
}

func (s *RouterTestSuite) TestToggleStageErrors() {
	s.Equal(http.StatusNotFound,
		s.do(http.MethodPost, "/api/projects/missing/stages/wiring/toggle", map[string]bool{"completed": true}, "").Code)
	s.Equal(http.StatusBadRequest,
		s.do(http.MethodPost, "/api/projects/p-1/stages/painting/toggle", map[string]bool{"completed": true}, "").Code)
	s.Equal(http.StatusBadRequest,
		s.do(http.MethodPost, "/api/projects/p-1/stages/wiring/toggle", map[string]string{}, "").Code)
}

func (s *RouterTestSuite) TestProjectReads() {
	w := s.do(http.MethodGet, "/api/projects?bu=all&search=retro", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var list []model.Project
	s.decode(w, &list)
	s.Require().Len(list, 1)
	s.Equal(stage.MechanicalDesign, list[0].CurrentStage)

	w = s.do(http.MethodGet, "/api/projects/summary", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var sum project.Summary
	s.decode(w, &sum)
	s.Equal(project.Summary{Total: 1, Active: 1, Overdue: 1}, sum)

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/projects/p-1", nil, "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/projects/nope", nil, "").Code)

	w = s.do(http.MethodGet, "/api/projects/p-1/timeline", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var steps []project.TimelineStep
	s.decode(w, &steps)
	s.Require().Len(steps, 2)
	s.True(steps[0].Overdue)
}

func (s *RouterTestSuite) TestExport() {
	w := s.do(http.MethodGet, "/api/projects/export", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/csv")
	s.True(strings.HasPrefix(w.Body.String(), "ID,Name,Description,Status"))
}

func (s *RouterTestSuite) TestStages() {
	w := s.do(http.MethodGet, "/api/stages", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var stages []stage.Stage
	s.decode(w, &stages)
	s.Equal(stage.Default.Stages(), stages)
}

func (s *RouterTestSuite) TestProjectWritesRequireAdmin() {
	draft := map[string]any{
		"name": "Cell", "description": "New cell", "assignee": "Lee",
		"projectType": "p-new", "bu": "ev",
	}
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/api/projects", draft, "").Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/api/projects", draft, s.token(rbac.RoleViewer)).Code)

	admin := s.token(rbac.RoleAdmin)
	w := s.do(http.MethodPost, "/api/projects", draft, admin)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created model.Project
	s.decode(w, &created)
	s.Equal("p-new", created.ID)
	s.Equal(model.StatusYetToStart, created.Status)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/projects", map[string]any{"name": "x"}, admin).Code)

	draft["name"] = "Cell B"
	s.Equal(http.StatusOK, s.do(http.MethodPut, "/api/projects/p-new", draft, admin).Code)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/projects/p-new", nil, admin).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/api/projects/p-new", nil, admin).Code)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
