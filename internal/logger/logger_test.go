package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/response"
)

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(log))
	r.GET("/quizzes/:quiz_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/quizzes/abc", nil)
	req.Header.Set("X-Request-ID", "req-000042")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["path"] != "/quizzes/:quiz_id" || line["request_id"] != "req-000042" {
		t.Fatalf("log line = %v", line)
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Fatalf("status = %v", line["status"])
	}
}
