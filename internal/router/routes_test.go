package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/turmeric-buyers/internal/auth"
	"github.com/octobees/turmeric-buyers/internal/config"
	"github.com/octobees/turmeric-buyers/internal/handler"
)

func TestRegisterEnforcesRoles(t *testing.T) {
	e := echo.New()
	manager := auth.NewJWTManager("secret", time.Hour)
	Register(e, config.RateLimitConfig{Requests: 5, Interval: time.Minute}, manager, Handlers{
		Auth:   &handler.AuthHandler{},
		Buyers: &handler.BuyersHandler{},
	})

	viewerToken, err := manager.GenerateToken("viewer@buyers.test", auth.RoleViewer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := map[string]struct {
		method     string
		target     string
		token      string
		expectCode int
	}{
		"health is public": {
			method:     http.MethodGet,
			target:     "/healthz",
			expectCode: http.StatusOK,
		},
		"buyers needs a token": {
			method:     http.MethodGet,
			target:     "/buyers",
			expectCode: http.StatusUnauthorized,
		},
		"collect needs operator": {
			method:     http.MethodPost,
			target:     "/collect",
			token:      viewerToken,
			expectCode: http.StatusForbidden,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.token != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.expectCode {
				t.Fatalf("expected %d, got %d", tt.expectCode, rec.Code)
			}
		})
	}
}
