package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"warden/internal/bootstrap"
	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                  testSecret,
		Port:                       "0",
		MaxOpenReports:             3,
		EscalationThreshold:        4,
		RestrictionFlagPrefix:      "restrict",
		DefaultRestrictTTLMin:      60,
		ReputationDecayRate:        0.8,
		ReputationDecayWindowHours: 72,
		StreamMaxLen:               1000,
		ScanIngressStream:          "moderation:ingress",
		ReportsStream:              "moderation:reports",
		AppealsStream:              "moderation:appeals",
		EscalationsStream:          "moderation:escalations",
		SubjectCacheSize:           100,
		SubjectCacheTTLSecond:      60,
	}
}

type testEnv struct {
	srv *Server
	app *fiber.App
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := database.OpenSQLiteMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)

	cfg := testConfig()
	middleware.InitMiddleware(cfg)
	engine, err := bootstrap.BuildEngine(cfg, db, rdb)
	require.NoError(t, err)

	srv := NewServer(engine)
	return &testEnv{srv: srv, app: srv.App(), mr: mr, rdb: rdb}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	env.mr.Close()
	resp, body = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	got := decode[map[string]any](t, body)
	assert.Equal(t, "unhealthy", got["checks"].(map[string]any)["redis"])
}

func TestReadinessReportsDatabaseFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	mr := miniredis.RunT(t)
	s := &Server{
		config: testConfig(),
		db:     db,
		redis:  redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
	app := fiber.New()
	app.Get("/health/ready", s.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["database"])
	assert.Equal(t, "healthy", checks["redis"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSecurityHeadersAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))

	resp, body := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		tok    string
		status int
	}{
		{"no token", http.MethodGet, "/api/cases", "", http.StatusUnauthorized},
		{"user cannot list cases", http.MethodGet, "/api/cases", token(t, "u1", "user"), http.StatusForbidden},
		{"moderator lists cases", http.MethodGet, "/api/cases", token(t, "m1", "moderator"), http.StatusOK},
		{"admin lists cases", http.MethodGet, "/api/cases", token(t, "a1", "admin"), http.StatusOK},
		{"user cannot ingest", http.MethodPost, "/api/events", token(t, "u1", ""), http.StatusForbidden},
		{"moderator cannot read flags", http.MethodGet, "/api/admin/feature-flags", token(t, "m1", "moderator"), http.StatusForbidden},
		{"admin reads flags", http.MethodGet, "/api/admin/feature-flags", token(t, "a1", "admin"), http.StatusOK},
		{"user reads own inbox", http.MethodGet, "/api/notifications", token(t, "u1", ""), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.tok, nil)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
		})
	}
}

func TestIngestEventEnforcesDecision(t *testing.T) {
	env := newTestEnv(t)
	svc := token(t, "content-svc", "service")
	mod := token(t, "m1", "moderator")

	resp, body := env.do(t, http.MethodPost, "/api/events", svc, IngestEventRequest{
		ActorID:     "author-1",
		SubjectType: "post",
		SubjectID:   "p-1",
		Text:        "this is bar content",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	res := decode[struct {
		Decision struct {
			Action   string `json:"action"`
			Severity int    `json:"severity"`
		} `json:"decision"`
		Case *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"case"`
	}](t, body)
	assert.Equal(t, "tombstone", res.Decision.Action)
	assert.Equal(t, 2, res.Decision.Severity)
	require.NotNil(t, res.Case)
	assert.Equal(t, "actioned", res.Case.Status)

	resp, body = env.do(t, http.MethodGet, "/api/cases/"+res.Case.ID, mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	detail := decode[struct {
		Actions []struct {
			Action string `json:"action"`
		} `json:"actions"`
	}](t, body)
	require.Len(t, detail.Actions, 1)
	assert.Equal(t, "tombstone", detail.Actions[0].Action)

	resp, body = env.do(t, http.MethodGet, "/api/cases/"+res.Case.ID+"/audit", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[[]map[string]any](t, body))

	resp, body = env.do(t, http.MethodGet, "/api/reputation/author-1", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[ReputationView](t, body)
	assert.Greater(t, view.Reputation.Score, 20)
	assert.NotEmpty(t, view.Events)
}

func TestIngestEventAsyncQueues(t *testing.T) {
	env := newTestEnv(t)
	svc := token(t, "content-svc", "service")

	resp, body := env.do(t, http.MethodPost, "/api/events?async=true", svc, IngestEventRequest{
		ID:          "ev-9",
		ActorID:     "author-1",
		SubjectType: "comment",
		SubjectID:   "c-1",
		Text:        "hello",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	got := decode[map[string]string](t, body)
	assert.Equal(t, "ev-9", got["event_id"])
	assert.NotEmpty(t, got["stream_id"])

	n, err := env.rdb.XLen(t.Context(), "moderation:ingress").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIngestEventValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := token(t, "content-svc", "service")

	resp, _ := env.do(t, http.MethodPost, "/api/events", svc, IngestEventRequest{SubjectType: "post", SubjectID: "p"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportActionAppealFlow(t *testing.T) {
	env := newTestEnv(t)
	reporter := token(t, "reporter-1", "")
	target := token(t, "u-target", "")
	mod := token(t, "m1", "moderator")

	report := map[string]string{"subject_type": "user", "subject_id": "u-target", "reason": "harassment"}
	resp, body := env.do(t, http.MethodPost, "/api/reports", reporter, report)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	caseID := decode[map[string]any](t, body)["case_id"].(string)

	resp, _ = env.do(t, http.MethodPost, "/api/reports", reporter, report)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// appeals are only open once the case is decided
	resp, _ = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/appeals", target, map[string]string{"note": "early"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/assign", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "m1", decode[map[string]any](t, body)["assigned_to"])

	resp, body = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/actions", mod, map[string]any{
		"action": "warn", "severity": 2, "reason": "harassment",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "actioned", decode[map[string]any](t, body)["status"])

	resp, body = env.do(t, http.MethodGet, "/api/reputation/u-target", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[ReputationView](t, body)
	assert.Equal(t, 40, view.Reputation.Score)
	assert.Equal(t, "watch", string(view.Reputation.Band))

	resp, body = env.do(t, http.MethodGet, "/api/reputation/reporter-1", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 51, decode[ReputationView](t, body).Trust)

	// only the subject's owner may appeal
	resp, _ = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/appeals", reporter, map[string]string{"note": "not mine"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/appeals", target, map[string]string{"note": "misread"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	appealID := decode[map[string]any](t, body)["id"].(string)

	resp, _ = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/appeals", target, map[string]string{"note": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/appeals/"+appealID+"/resolve", mod, map[string]any{"note": "missing accept"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/appeals/"+appealID+"/resolve", mod, map[string]any{"accept": true, "note": "agreed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "accepted", decode[map[string]any](t, body)["status"])

	resp, body = env.do(t, http.MethodGet, "/api/cases/"+caseID, mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", string(decode[CaseDetail](t, body).Case.Status))

	resp, body = env.do(t, http.MethodGet, "/api/notifications", target, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	kinds := map[string]bool{}
	for _, n := range decode[[]map[string]any](t, body) {
		kinds[n["kind"].(string)] = true
	}
	assert.True(t, kinds["moderation.warning"])
	assert.True(t, kinds["moderation.appeal_received"])
}

func TestCaseErrors(t *testing.T) {
	env := newTestEnv(t)
	mod := token(t, "m1", "moderator")

	resp, _ := env.do(t, http.MethodGet, "/api/cases/missing", mod, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/reports", token(t, "r1", ""), map[string]string{
		"subject_type": "post", "subject_id": "p-1", "reason": "spam",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	caseID := decode[map[string]any](t, body)["case_id"].(string)

	resp, _ = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/actions", mod, map[string]any{"action": "obliterate"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/actions", mod, map[string]any{"action": "mute"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/dismiss", mod, map[string]string{"note": "fine"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "dismissed", decode[map[string]any](t, body)["status"])

	resp, _ = env.do(t, http.MethodPost, "/api/cases/"+caseID+"/dismiss", mod, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRestrictionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mod := token(t, "m1", "moderator")

	resp, body := env.do(t, http.MethodPost, "/api/restrictions", mod, CreateRestrictionRequest{
		UserID: "u1", Scope: "post", Mode: "hard_block", TTLMinutes: 5, Reason: "raid",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	id := decode[map[string]any](t, body)["id"].(string)
	assert.Equal(t, float64(300), decode[map[string]any](t, body)["ttl_seconds"])

	resp, body = env.do(t, http.MethodGet, "/api/restrictions/u1/post", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flags := decode[map[string]bool](t, body)
	assert.True(t, flags["cooldown"])
	assert.True(t, flags["shadow_restrict"])
	assert.False(t, flags["captcha"])

	resp, body = env.do(t, http.MethodGet, "/api/restrictions/u1", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	resp, _ = env.do(t, http.MethodDelete, "/api/restrictions/"+id, mod, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/restrictions/u1/post", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[map[string]bool](t, body)["cooldown"])

	resp, body = env.do(t, http.MethodGet, "/api/restrictions/u1", mod, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]map[string]any](t, body))

	resp, _ = env.do(t, http.MethodDelete, "/api/restrictions/nope", mod, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/restrictions", mod, CreateRestrictionRequest{UserID: "u1", Scope: "post", Mode: "exile"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userID", "user ID"},
		{"appealId", "appeal ID"},
		{"scope", "scope"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		query  string
		limit  float64
		offset float64
	}{
		{"", 25, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?limit=1000&offset=-4", maxPaginationLimit, 0},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
		require.NoError(t, err)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		assert.Equal(t, tt.limit, body["limit"], tt.query)
		assert.Equal(t, tt.offset, body["offset"], tt.query)
	}
}
