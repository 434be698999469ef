package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newRequestIDRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"requestId": RequestIDFromContext(c)})
	})
	return router
}

func TestRequestIDEchoesCallerHeader(t *testing.T) {
	router := newRequestIDRouter()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-Id", "caller-id-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("X-Request-Id"); got != "caller-id-42" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
}

func TestRequestIDGeneratesWhenMissingOrOversized(t *testing.T) {
	router := newRequestIDRouter()

	cases := map[string]string{
		"missing":   "",
		"blank":     "   ",
		"oversized": strings.Repeat("x", maxRequestIDLen+1),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if header != "" {
				req.Header.Set("X-Request-Id", header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			got := resp.Header().Get("X-Request-Id")
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected generated uuid, got %q: %v", got, err)
			}
		})
	}
}
