package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/internal/users"
	"github.com/fastsns/sns-backend/pkg/auth"
	"github.com/fastsns/sns-backend/pkg/config"
	"github.com/fastsns/sns-backend/pkg/db/models"
	"github.com/fastsns/sns-backend/pkg/logger"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "controller-test-secret",
	Issuer:            "sns-test",
	ExpirationMinutes: 15,
}

func newUsersRepo(t *testing.T) *users.Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return users.NewRepository(conn)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterUserIssuesToken(t *testing.T) {
	repo := newUsersRepo(t)
	handler := RegisterUser(repo, testJWTConfig, logger.NewNop())

	rec := postJSON(t, handler, "/api/v1/users", `{"user_name":"alice","password":"long-enough-pass"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			Token string         `json:"token"`
			User  *users.UserDTO `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Token == "" {
		t.Fatalf("expected access token in response")
	}
	if envelope.Data.User == nil || envelope.Data.User.UserName != "alice" {
		t.Fatalf("unexpected user %+v", envelope.Data.User)
	}
	if strings.Contains(rec.Body.String(), "long-enough-pass") {
		t.Fatalf("password leaked into response")
	}

	claims, err := auth.ParseAccessToken(testJWTConfig, envelope.Data.Token)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.UserName != "alice" {
		t.Fatalf("unexpected token claims %+v", claims)
	}
}

func TestRegisterUserDuplicateName(t *testing.T) {
	repo := newUsersRepo(t)
	handler := RegisterUser(repo, testJWTConfig, logger.NewNop())

	first := postJSON(t, handler, "/api/v1/users", `{"user_name":"bob","password":"long-enough-pass"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", first.Code)
	}

	second := postJSON(t, handler, "/api/v1/users", `{"user_name":"bob","password":"long-enough-pass"}`)
	if second.Code != http.StatusConflict {
		t.Fatalf("unexpected status %d: %s", second.Code, second.Body.String())
	}
}

func TestRegisterUserRejectsShortPassword(t *testing.T) {
	handler := RegisterUser(newUsersRepo(t), testJWTConfig, logger.NewNop())

	rec := postJSON(t, handler, "/api/v1/users", `{"user_name":"carol","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginUser(t *testing.T) {
	repo := newUsersRepo(t)
	register := RegisterUser(repo, testJWTConfig, logger.NewNop())
	login := LoginUser(repo, testJWTConfig, logger.NewNop())

	if rec := postJSON(t, register, "/api/v1/users", `{"user_name":"dave","password":"long-enough-pass"}`); rec.Code != http.StatusCreated {
		t.Fatalf("register failed with %d", rec.Code)
	}

	rec := postJSON(t, login, "/api/v1/auth/login", `{"user_name":"dave","password":"long-enough-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatalf("expected token in response")
	}

	rec = postJSON(t, login, "/api/v1/auth/login", `{"user_name":"dave","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	rec = postJSON(t, login, "/api/v1/auth/login", `{"user_name":"nobody","password":"whatever"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
