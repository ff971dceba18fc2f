package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/user_service/internal/middleware"
	"github.com/Skotchmaster/user_service/internal/models"
	"github.com/Skotchmaster/user_service/internal/repo"
	"github.com/Skotchmaster/user_service/internal/service"
)

type fakeMailer struct {
	sent []string
	body string
}

func (m *fakeMailer) Send(_ context.Context, to, _, htmlContent string) error {
	m.sent = append(m.sent, to)
	m.body = htmlContent
	return nil
}

type testEnv struct {
	e      *echo.Echo
	svc    *service.AccountService
	mailer *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	mailer := &fakeMailer{}
	svc := &service.AccountService{
		Repo:      &repo.GormRepo{DB: db},
		Mailer:    mailer,
		JWTSecret: []byte("test-jwt-secret"),
		Hostname:  "http://localhost:8080",
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler:  &AuthHTTP{Svc: svc},
		UserHandler:  &UserHTTP{},
		EmailHandler: &EmailHTTP{Mailer: mailer},
		Guard:        middleware.NewRequireUser(svc),
	})

	return &testEnv{e: e, svc: svc, mailer: mailer}
}

func (env *testEnv) postJSON(path string, payload any) *httptest.ResponseRecorder {
	bodyBytes, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bodyBytes))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) get(path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// verificationToken pulls the token out of the last link the mailer saw.
func (env *testEnv) verificationToken(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(env.mailer.body)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/auth/register", map[string]string{
		"username":  "alice",
		"password":  "p1",
		"full_name": "Alice A",
		"email":     "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created["username"])
	assert.Equal(t, "a@x.com", created["email"])
	assert.Equal(t, false, created["verified_email"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "p1")

	// письмо с ссылкой отправлено на адрес пользователя
	require.Equal(t, []string{"a@x.com"}, env.mailer.sent)

	// same username, different email
	rec = env.postJSON("/auth/register", map[string]string{
		"username": "alice",
		"password": "p2",
		"email":    "other@x.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// same email, different username
	rec = env.postJSON("/auth/register", map[string]string{
		"username": "bob",
		"password": "p2",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{name: "missing email", payload: map[string]string{"username": "alice", "password": "p1"}},
		{name: "missing password", payload: map[string]string{"username": "alice", "email": "a@x.com"}},
		{name: "missing username", payload: map[string]string{"password": "p1", "email": "a@x.com"}},
		{name: "bad email", payload: map[string]string{"username": "alice", "password": "p1", "email": "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.postJSON("/auth/register", tt.payload)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestLoginAndCurrentUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/auth/register", map[string]string{
		"username": "alice",
		"password": "p1",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	form := url.Values{"username": {"alice"}, "password": {"p1"}}

	// login before verification
	rec = env.postForm("/auth/login", form)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.get("/auth/verify_email?token="+env.verificationToken(t), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.postForm("/auth/login", form)
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp["access_token"])
	assert.Equal(t, "bearer", loginResp["token_type"])

	rec = env.get("/users/me", loginResp["access_token"])
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, "a@x.com", me["email"])
	assert.NotContains(t, rec.Body.String(), "password")

	// wrong password stays 401 even when verified
	rec = env.postForm("/auth/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyEmailEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/auth/register", map[string]string{
		"username": "alice",
		"password": "p1",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := env.verificationToken(t)

	rec = env.get("/auth/verify_email?token="+token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var user map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, true, user["verified_email"])

	// second call still succeeds
	rec = env.get("/auth/verify_email?token="+token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.get("/auth/verify_email?token=garbage", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.get("/auth/verify_email", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResendEmailVerificationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/auth/resend_email_verification", map[string]string{"username": "nobody"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postJSON("/auth/register", map[string]string{
		"username": "alice",
		"password": "p1",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.postJSON("/auth/resend_email_verification", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
	require.Equal(t, []string{"a@x.com", "a@x.com"}, env.mailer.sent)

	token := env.verificationToken(t)
	rec = env.get("/auth/verify_email?token="+token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.postJSON("/auth/resend_email_verification", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsersMe_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/users/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.get("/users/me", "not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersMe_Inactive(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/auth/register", map[string]string{
		"username": "alice",
		"password": "p1",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	user, err := env.svc.Repo.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	token, err := env.svc.GenerateAccessToken(user)
	require.NoError(t, err)

	err = env.svc.Repo.DB.Model(&models.User{}).
		Where("username = ?", "alice").
		Update("is_active", false).Error
	require.NoError(t, err)

	rec = env.get("/users/me", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEmailEndpoint(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{"to": "b@x.com", "subject": "hi", "content": "hello"}

	rec := env.postJSON("/email", payload)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.postJSON("/auth/register", map[string]string{
		"username": "alice",
		"password": "p1",
		"email":    "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.get("/auth/verify_email?token="+env.verificationToken(t), "")
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := env.svc.Repo.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	token, err := env.svc.GenerateAccessToken(user)
	require.NoError(t, err)

	bodyBytes, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/email", bytes.NewReader(bodyBytes))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	recorder := httptest.NewRecorder()
	env.e.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, env.mailer.sent, "b@x.com")
}
