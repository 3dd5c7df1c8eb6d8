package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLoginRouter(l *LoginLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/auth/login", l.Middleware(), func(c *gin.Context) {
		var req struct {
			Phone string `json:"phone" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400})
			return
		}
		c.String(http.StatusOK, req.Phone)
	})
	return router
}

func postLogin(router *gin.Engine, ip, phone string) *httptest.ResponseRecorder {
	body := `{"phone":"` + phone + `","password":"wrong"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoginLimiter_BlocksRepeatedPhone(t *testing.T) {
	router := newLoginRouter(newLoginLimiter(0.01, 3))

	for i := 0; i < 3; i++ {
		w := postLogin(router, "10.0.0.1", "0712345678")
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, w.Code)
		}
		if w.Body.String() != "0712345678" {
			t.Fatalf("handler did not receive the body, got %q", w.Body.String())
		}
	}

	w := postLogin(router, "10.0.0.1", "0712345678")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if !strings.Contains(w.Body.String(), `"code":429`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	// the same phone from another site office is unaffected
	if w := postLogin(router, "10.0.0.2", "0712345678"); w.Code != http.StatusOK {
		t.Errorf("expected other IP to pass, got %d", w.Code)
	}
	// another phone from the same IP is unaffected
	if w := postLogin(router, "10.0.0.1", "0798765432"); w.Code != http.StatusOK {
		t.Errorf("expected other phone to pass, got %d", w.Code)
	}
}

func TestLoginLimiter_CapsPhoneRotation(t *testing.T) {
	router := newLoginRouter(newLoginLimiter(0.01, 2))

	// each IP may spend four times the per-phone burst
	for i := 0; i < 8; i++ {
		phone := "07000000" + string(rune('a'+i))
		if w := postLogin(router, "10.0.0.9", phone); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, w.Code)
		}
	}
	if w := postLogin(router, "10.0.0.9", "0700000099"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the IP ceiling is spent, got %d", w.Code)
	}
}

func TestLoginLimiter_SweepForgetsIdleClients(t *testing.T) {
	l := newLoginLimiter(1, 1)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.reserve("10.0.0.1", "0712345678")
	l.reserve("10.0.0.2", "0712345678")
	if got := l.size(); got != 4 {
		t.Fatalf("expected 4 buckets, got %d", got)
	}

	now = now.Add(limiterIdleAfter - time.Second)
	l.reserve("10.0.0.2", "0712345678")
	now = now.Add(2 * time.Second)
	l.sweep()

	if got := l.size(); got != 2 {
		t.Errorf("expected only the recent client to remain, got %d buckets", got)
	}
}
