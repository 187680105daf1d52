package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"finwatch/internal/config"
	"finwatch/internal/models"
)

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
	})
	return r
}

func signClaims(t *testing.T, claims *JWTClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	config.Set(&config.Config{JWTSecret: "test-secret", JWTExpirationDur: time.Hour})
	user := &models.User{Base: models.Base{ID: "0190a8b2-7c4e-7000-8000-000000000001"}, Email: "a@test.com"}

	valid, err := GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	refresh := signClaims(t, &JWTClaims{
		UserID:    user.ID,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, "test-secret")
	expired := signClaims(t, &JWTClaims{
		UserID:    user.ID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, "test-secret")
	wrongKey := signClaims(t, &JWTClaims{
		UserID:    user.ID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, "other-secret")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid_token", "Bearer " + valid, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Basic " + valid, http.StatusUnauthorized},
		{"refresh_token_rejected", "Bearer " + refresh, http.StatusUnauthorized},
		{"expired_token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong_signing_key", "Bearer " + wrongKey, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			setupAuthRouter().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := parseBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				if body["user_id"] != user.ID {
					t.Errorf("user_id = %v, want %s", body["user_id"], user.ID)
				}
				return
			}
			errObj, ok := body["error"].(map[string]interface{})
			if !ok || errObj["code"] != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED error, got %v", body)
			}
		})
	}
}

func TestRequestLogging_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	t.Run("generates_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
	})

	t.Run("keeps_valid_incoming_id", func(t *testing.T) {
		const id = "0190a8b2-7c4e-7000-8000-000000000002"
		req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != id {
			t.Errorf("X-Request-ID = %q, want %q", got, id)
		}
	})
}
