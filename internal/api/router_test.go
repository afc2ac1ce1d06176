package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/gastos/internal/api/handlers"
	"github.com/dvloznov/gastos/internal/api/middleware"
	"github.com/dvloznov/gastos/internal/dispatcher"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/extraction"
	"github.com/dvloznov/gastos/internal/identity"
	"github.com/dvloznov/gastos/internal/infra/sqlstore"
	"github.com/dvloznov/gastos/internal/jobs"
	"github.com/dvloznov/gastos/internal/jobs/inmemory"
	"github.com/dvloznov/gastos/internal/telegram"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testAPIKey        = "service-key"
	testJWTSecret     = "jwt-secret"
	testWebhookSecret = "hook-secret"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []dispatcher.Event
}

func (r *recordingEvents) Handle(_ context.Context, ev dispatcher.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// scriptedExtractor logs every message as a lunch expense.
type scriptedExtractor struct{}

func (scriptedExtractor) ClassifyIntent(context.Context, string) (domain.Intent, error) {
	return domain.IntentLog, nil
}

func (scriptedExtractor) ExtractExpense(context.Context, extraction.Input) (map[string]any, error) {
	return map[string]any{"amount": json.Number("12.5"), "category": "Food", "description": "lunch"}, nil
}

func (scriptedExtractor) ExtractQuery(context.Context, string, time.Time) (map[string]any, error) {
	return map[string]any{}, nil
}

type recordingArchiver struct {
	archived []string
}

func (r *recordingArchiver) ArchiveExpense(_ context.Context, e *domain.Expense) error {
	r.archived = append(r.archived, e.ID)
	return nil
}

// RouterTestSuite drives the full HTTP surface against an in-memory SQLite
// store with real linking and HS256 identity tokens.
type RouterTestSuite struct {
	suite.Suite
	ctx      context.Context
	db       *sqlstore.DB
	linker   *identity.Linker
	jobStore *inmemory.Store
	events   *recordingEvents
	archiver *recordingArchiver
	handler  http.Handler
}

func (s *RouterTestSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := sqlstore.Open(s.ctx, sqlstore.DriverSQLite, ":memory:")
	require.NoError(s.T(), err)
	s.db = db

	log := zerolog.Nop()
	s.linker = identity.NewLinker(db, log)
	s.jobStore = inmemory.NewStore()
	s.events = &recordingEvents{}
	s.archiver = &recordingArchiver{}

	s.handler = NewRouter(RouterConfig{
		Expenses: handlers.NewExpensesHandler(db, s.linker, s.archiver, log),
		Link:     handlers.NewLinkHandler(s.linker, log),
		Webhook:  handlers.NewWebhookHandler(s.events, testWebhookSecret, log),
		Jobs:     handlers.NewJobsHandler(s.jobStore, log),
		Messages: handlers.NewMessagesHandler(dispatcher.New(dispatcher.Config{
			Extractor: scriptedExtractor{},
			Store:     db,
			Linker:    s.linker,
			Logger:    log,
		}), log),
		APIKey:   testAPIKey,
		Verifier: identity.NewJWTVerifier(testJWTSecret),
		Logger:   log,
	})
}

func (s *RouterTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *RouterTestSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *RouterTestSuite) withKey(method, path, body string) *httptest.ResponseRecorder {
	return s.do(method, path, body, map[string]string{middleware.APIKeyHeader: testAPIKey})
}

func (s *RouterTestSuite) bearer(accountID string) map[string]string {
	token, err := identity.SignDevToken(testJWTSecret, accountID, time.Hour)
	require.NoError(s.T(), err)
	return map[string]string{"Authorization": "Bearer " + token}
}

// link connects chatID to accountID through the code flow.
func (s *RouterTestSuite) link(chatID, accountID string) {
	code, err := s.linker.IssueCode(s.ctx, chatID)
	require.NoError(s.T(), err)
	rec := s.do(http.MethodPost, "/verify-telegram-code", `{"code":"`+code.Token+`"}`, s.bearer(accountID))
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](s *RouterTestSuite, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *RouterTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
	s.Equal("healthy", decode[map[string]string](s, rec)["status"])
}

func (s *RouterTestSuite) TestCORSPreflight() {
	rec := s.do(http.MethodOptions, "/expenses", "", nil)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func (s *RouterTestSuite) TestExpensesRequireAPIKey() {
	rec := s.do(http.MethodPost, "/expenses", `{"amount":1,"category":"Food","telegramUserId":"777"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/expenses?telegramUserId=777", "", map[string]string{middleware.APIKeyHeader: "wrong"})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterTestSuite) TestCreateExpenseUnlinked() {
	rec := s.withKey(http.MethodPost, "/expenses", `{"amount":12.5,"category":"Food","telegramUserId":"777"}`)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("User not linked", decode[map[string]string](s, rec)["error"])
}

func (s *RouterTestSuite) TestCreateExpenseValidation() {
	s.link("777", "acct-1")

	rec := s.withKey(http.MethodPost, "/expenses", `{"amount":-3,"category":"Clothing","telegramUserId":"777"}`)
	s.Equal(http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string              `json:"error"`
		Fields []domain.FieldError `json:"fields"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("Validation failed", body.Error)
	require.Len(s.T(), body.Fields, 2)
	s.Equal("amount", body.Fields[0].Field)
	s.Equal("category", body.Fields[1].Field)

	rec = s.withKey(http.MethodPost, "/expenses", `{"amount":3,"category":"Food"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "telegramUserId")

	rec = s.withKey(http.MethodPost, "/expenses", `[1,2]`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestExpenseLifecycle() {
	s.link("777", "acct-1")
	s.link("888", "acct-2")

	rec := s.withKey(http.MethodPost, "/expenses",
		`{"amount":12.5,"category":"Food","date":"2024-05-03","description":"lunch","telegramUserId":"777"}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Expense](s, rec)
	s.NotEmpty(created.ID)
	s.Equal("acct-1", created.OwnerID)
	s.Equal(12.5, created.Amount)
	s.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), created.Date)
	s.Equal([]string{created.ID}, s.archiver.archived)

	rec = s.withKey(http.MethodPost, "/expenses",
		`{"amount":40,"category":"Transportation","date":"2024-05-04","telegramUserId":"777"}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.withKey(http.MethodGet, "/expenses?telegramUserId=777&start_date=2024-05-01&end_date=2024-05-31&category=Food", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	listed := decode[[]domain.Expense](s, rec)
	s.Require().Len(listed, 1)
	s.Equal(created.ID, listed[0].ID)

	rec = s.withKey(http.MethodGet, "/expenses?telegramUserId=888", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("[]\n", rec.Body.String())

	// Another account cannot see the record.
	rec = s.withKey(http.MethodPut, "/expenses", `{"id":"`+created.ID+`","telegramUserId":"888","amount":1}`)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.withKey(http.MethodPut, "/expenses", `{"id":"`+created.ID+`","telegramUserId":"777","amount":15}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Expense](s, rec)
	s.Equal(15.0, updated.Amount)
	s.Equal("lunch", updated.Description)
	s.Equal(domain.CategoryFood, updated.Category)

	rec = s.withKey(http.MethodDelete, "/expenses", `{"id":"`+created.ID+`","telegramUserId":"888"}`)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.withKey(http.MethodDelete, "/expenses", `{"id":"`+created.ID+`","telegramUserId":"777"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Expense deleted successfully", decode[map[string]string](s, rec)["message"])

	rec = s.withKey(http.MethodDelete, "/expenses", `{"id":"`+created.ID+`","telegramUserId":"777"}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestUpdateRequiresID() {
	rec := s.withKey(http.MethodPut, "/expenses", `{"telegramUserId":"777","amount":1}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestListExpensesRejectsBadQuery() {
	rec := s.withKey(http.MethodGet, "/expenses?telegramUserId=777&start_date=yesterday&category=Snacks", "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "start_date")
	s.Contains(rec.Body.String(), "category")
}

func (s *RouterTestSuite) TestVerifyCode() {
	code, err := s.linker.IssueCode(s.ctx, "777")
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/verify-telegram-code", `{"code":"`+code.Token+`"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/verify-telegram-code", `{"code":"`+code.Token+`"}`,
		map[string]string{"Authorization": "Bearer not-a-jwt"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/verify-telegram-code", `{"code":"`+strings.ToUpper(code.Token)+`"}`, s.bearer("acct-1"))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, decode[map[string]any](s, rec)["success"])

	accountID, err := s.linker.Resolve(s.ctx, "777")
	s.Require().NoError(err)
	s.Equal("acct-1", accountID)

	rec = s.do(http.MethodPost, "/verify-telegram-code", `{"code":"`+code.Token+`"}`, s.bearer("acct-1"))
	s.Equal(http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](s, rec)
	s.Equal(false, body["success"])
	s.Equal("Invalid or expired code", body["message"])
}

func (s *RouterTestSuite) TestRedeemTokenFromQuery() {
	tok, err := s.linker.IssueToken(s.ctx, "999")
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/auth?token="+tok.Token, "", s.bearer("acct-9"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	accountID, err := s.linker.Resolve(s.ctx, "999")
	s.Require().NoError(err)
	s.Equal("acct-9", accountID)

	rec = s.do(http.MethodPost, "/auth", `{}`, s.bearer("acct-9"))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestWebhook() {
	update := `{"update_id":42,"message":{"message_id":1,"date":0,"from":{"id":777,"is_bot":false,"first_name":"A"},"chat":{"id":777,"type":"private"},"text":"lunch 12.50 food"}}`

	rec := s.do(http.MethodPost, "/webhooks/telegram", update, map[string]string{telegram.SecretTokenHeader: "nope"})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Empty(s.events.events)

	hdr := map[string]string{telegram.SecretTokenHeader: testWebhookSecret}
	rec = s.do(http.MethodPost, "/webhooks/telegram", update, hdr)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Update handled", decode[map[string]string](s, rec)["status"])
	s.Require().Len(s.events.events, 1)
	s.Equal(dispatcher.Event{UpdateID: 42, ChatID: 777, UserID: "777", Text: "lunch 12.50 food"}, s.events.events[0])

	for _, body := range []string{`not json`, `{"update_id":43}`} {
		rec = s.do(http.MethodPost, "/webhooks/telegram", body, hdr)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("Update handled", decode[map[string]string](s, rec)["status"])
	}
	s.Len(s.events.events, 1)
}

func (s *RouterTestSuite) TestJobs() {
	job := &jobs.Job{
		JobID:     "job-1",
		Type:      jobs.JobTypeArchiveExpense,
		ExpenseID: "exp-1",
		Status:    jobs.JobStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.jobStore.SaveJob(s.ctx, job))

	rec := s.withKey(http.MethodGet, "/api/jobs/job-1", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	got := decode[jobs.Job](s, rec)
	s.Equal(jobs.JobStatusCompleted, got.Status)
	s.Equal("exp-1", got.ExpenseID)

	rec = s.withKey(http.MethodGet, "/api/jobs/missing", "")
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.withKey(http.MethodGet, "/api/jobs?status=completed&limit=10", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.EqualValues(1, decode[map[string]any](s, rec)["count"])

	rec = s.do(http.MethodGet, "/api/jobs", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterTestSuite) TestMessages() {
	rec := s.do(http.MethodPost, "/api/messages", `{"telegramUserId":"42","message":"lunch 12.50"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	for _, body := range []string{`{"message":"lunch 12.50"}`, `{"telegramUserId":"42"}`, `{"telegramUserId":"42","message":"  "}`} {
		rec = s.withKey(http.MethodPost, "/api/messages", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Equal("Missing telegramUserId or message", decode[map[string]string](s, rec)["error"])
	}

	rec = s.withKey(http.MethodPost, "/api/messages", `{"telegramUserId":42,"message":"lunch 12.50"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(decode[map[string]string](s, rec)["reply"], "linked to an account yet")

	s.link("42", "acct-web")
	rec = s.withKey(http.MethodPost, "/api/messages", `{"telegramUserId":42,"message":"lunch 12.50"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(`Logged your spending of $12.50 on Food with description: "lunch".`, decode[map[string]string](s, rec)["reply"])

	stored, err := s.db.List(s.ctx, domain.Filter{OwnerID: "acct-web"})
	s.Require().NoError(err)
	s.Len(stored, 1)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
